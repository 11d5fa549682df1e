package leaseterm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theodi/lease-data-foundation/dateutil"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExtractScenarios(t *testing.T) {
	cases := []struct {
		name        string
		term        string
		dol         *string
		wantStart   time.Time
		wantExpiry  time.Time
		wantTenure  float64
	}{
		{
			name:       "scenario 1",
			term:       "99 years from 24 June 1862",
			wantStart:  date(1862, time.June, 24),
			wantExpiry: date(1961, time.June, 24),
			wantTenure: 99,
		},
		{
			name:       "scenario 2",
			term:       "99 years less 3 days from 25 March 1868",
			wantStart:  date(1868, time.March, 25),
			wantExpiry: date(1967, time.March, 22),
			wantTenure: 99,
		},
		{
			name:       "scenario 3",
			term:       "From and including 24 June 2020 to and including 23 June 2025",
			wantStart:  date(2020, time.June, 24),
			wantExpiry: date(2025, time.June, 23),
			wantTenure: 5,
		},
		{
			name:       "scenario 4",
			term:       "97 3/4 years from 25 March 1866",
			wantStart:  date(1866, time.March, 25),
			wantExpiry: date(1963, time.December, 25),
			wantTenure: 97.75,
		},
		{
			name:       "scenario 5",
			term:       "99 years from Christmas Day 1900",
			wantStart:  date(1900, time.December, 25),
			wantExpiry: date(1999, time.December, 25),
			wantTenure: 99,
		},
		{
			name:       "scenario 6",
			term:       "999 years",
			dol:        strPtr("16-10-1866"),
			wantStart:  date(1866, time.October, 16),
			wantExpiry: date(2865, time.October, 16),
			wantTenure: 999,
		},
		{
			name:       "scenario 7",
			term:       "a term of years expiring on 23 June 2237",
			dol:        strPtr("24-06-1862"),
			wantStart:  date(1862, time.June, 24),
			wantExpiry: date(2237, time.June, 23),
			wantTenure: 375,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var dol *time.Time
			if c.dol != nil {
				d, ok := dateutil.ParseDOL(*c.dol)
				require.True(t, ok)
				dol = &d
			}

			got, ok := Extract(c.term, dol)
			require.True(t, ok, "expected a match for %q", c.term)
			assert.True(t, c.wantStart.Equal(got.StartDate), "start date mismatch")
			assert.True(t, c.wantExpiry.Equal(got.ExpiryDate), "expiry date mismatch")
			assert.InDelta(t, c.wantTenure, got.TenureYears, 0.01, "tenure mismatch")
			assert.Equal(t, SourceRegex, got.Source)
		})
	}
}

func TestExtractParenthesisFallback(t *testing.T) {
	got, ok := Extract("(99 years from 24 June 1862)", nil)
	require.True(t, ok)
	assert.True(t, date(1862, time.June, 24).Equal(got.StartDate))
}

func TestExtractNoMatch(t *testing.T) {
	_, ok := Extract("residential", nil)
	assert.False(t, ok)
}

func strPtr(s string) *string { return &s }
