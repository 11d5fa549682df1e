package dateutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		name  string
		day   int
		month string
		year  int
		want  time.Time
		ok    bool
	}{
		{"full month name", 24, "June", 1862, time.Date(1862, time.June, 24, 0, 0, 0, 0, time.UTC), true},
		{"abbreviated month", 25, "Dec", 1900, time.Date(1900, time.December, 25, 0, 0, 0, 0, time.UTC), true},
		{"numeric month", 3, "5", 2022, time.Date(2022, time.May, 3, 0, 0, 0, 0, time.UTC), true},
		{"invalid day rolls over, rejected", 31, "February", 2021, time.Time{}, false},
		{"month out of range", 1, "13", 2021, time.Time{}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := ParseDate(c.day, c.month, c.year)
			require.Equal(t, c.ok, ok)
			if ok {
				assert.True(t, c.want.Equal(got))
			}
		})
	}
}

func TestParseWordNumber(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"99", 99, true},
		{"~99", 99, true},
		{"1,866", 1866, true},
		{"ninety", 90, true},
		{"ninety nine", 0, false},
		{"", 0, false},
	}

	for _, c := range cases {
		got, ok := ParseWordNumber(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		if ok {
			assert.Equal(t, c.want, got, c.in)
		}
	}
}

func TestParseFractionalYears(t *testing.T) {
	v, ok := ParseFractionalYears("97 3/4")
	require.True(t, ok)
	assert.InDelta(t, 97.75, v, 0.0001)

	v, ok = ParseFractionalYears("10 and a half")
	require.True(t, ok)
	assert.InDelta(t, 10.5, v, 0.0001)

	v, ok = ParseFractionalYears("10 and a quarter")
	require.True(t, ok)
	assert.InDelta(t, 10.25, v, 0.0001)

	v, ok = ParseFractionalYears("99")
	require.True(t, ok)
	assert.InDelta(t, 99.0, v, 0.0001)
}

func TestResolveSpecialDay(t *testing.T) {
	got, ok := ResolveSpecialDay("Christmas Day", 1900)
	require.True(t, ok)
	assert.True(t, time.Date(1900, time.December, 25, 0, 0, 0, 0, time.UTC).Equal(got))

	got, ok = ResolveSpecialDay("midsummer", 1862)
	require.True(t, ok)
	assert.True(t, time.Date(1862, time.June, 24, 0, 0, 0, 0, time.UTC).Equal(got))

	_, ok = ResolveSpecialDay("epiphany", 1900)
	assert.False(t, ok)
}

func TestParseDOL(t *testing.T) {
	got, ok := ParseDOL("16-10-1866")
	require.True(t, ok)
	assert.True(t, time.Date(1866, time.October, 16, 0, 0, 0, 0, time.UTC).Equal(got))

	got, ok = ParseDOL("24/06/1862")
	require.True(t, ok)
	assert.True(t, time.Date(1862, time.June, 24, 0, 0, 0, 0, time.UTC).Equal(got))
}

func TestYearsBetween(t *testing.T) {
	start := time.Date(2022, time.May, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2047, time.May, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 25, YearsBetween(start, end, 30))

	start2 := time.Date(2020, time.June, 24, 0, 0, 0, 0, time.UTC)
	end2 := time.Date(2025, time.June, 23, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 5, YearsBetween(start2, end2, 30))
}

func TestAddYearsMonthsDaysClampsMonthEnd(t *testing.T) {
	start := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	got := AddYearsMonthsDays(start, 0, 1, 0)
	assert.True(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC).Equal(got))
}

func TestAddYearsMonthsDaysPlainAddition(t *testing.T) {
	start := time.Date(1862, time.June, 24, 0, 0, 0, 0, time.UTC)
	got := AddYearsMonthsDays(start, 99, 0, 0)
	assert.True(t, time.Date(1961, time.June, 24, 0, 0, 0, 0, time.UTC).Equal(got))
}

func TestAddYearsMonthsDaysAppliesDaysAfterClamping(t *testing.T) {
	start := time.Date(2023, time.January, 31, 0, 0, 0, 0, time.UTC)
	got := AddYearsMonthsDays(start, 0, 1, 1)
	assert.True(t, time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC).Equal(got))
}
