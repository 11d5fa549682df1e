package refstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The SQL-execution paths in Match/matchByUPRN/matchByColumn require a live
// Postgres connection and are not exercised here, matching the teacher's own
// zero test coverage of its database-backed collectors. Only the pure-logic
// helpers are unit tested.

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"no commas", "7 Agnes Street", "7 Agnes Street"},
		{"one comma kept", "7 Agnes Street, London", "7 Agnes Street, London"},
		{"two commas strips first segment", "Flat 2, 7 Agnes Street, London", "7 Agnes Street, London"},
		{"three commas strips only first", "Flat 2, Block A, 7 Agnes Street, London", "Block A, 7 Agnes Street, London"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, NormalizeAddress(c.in))
		})
	}
}

func TestNormalizeHouseNumber(t *testing.T) {
	assert.Equal(t, "153", NormalizeHouseNumber("153-157"))
	assert.Equal(t, "7", NormalizeHouseNumber(" 7 "))
	assert.Equal(t, "85A", NormalizeHouseNumber("85A"))
}

func TestExtractBaseNumber(t *testing.T) {
	assert.Equal(t, "153", ExtractBaseNumber("153-157"))
	assert.Equal(t, "85", ExtractBaseNumber("85A"))
	assert.Equal(t, "7", ExtractBaseNumber("7"))
	assert.Equal(t, "", ExtractBaseNumber("A"))
}

func TestPostProcessDuplicateUIDs(t *testing.T) {
	found := []MatchResult{
		{UID: "u1", OriginalAddress: "7 Agnes Street", Priority: PriorityExactNumber, Row: ReferenceAddress{UPRN: 100}},
	}
	notFound := []NotFoundResult{
		{UID: "u1", APDOriginal: "Flat 2, 7 Agnes Street"},
		{UID: "u2", APDOriginal: "Somewhere Unmatched"},
	}

	moved, remaining := PostProcessDuplicateUIDs(found, notFound)

	if assert.Len(t, moved, 1) {
		assert.Equal(t, "u1", moved[0].UID)
		assert.Equal(t, "Flat 2, 7 Agnes Street", moved[0].OriginalAddress)
		assert.Equal(t, int64(100), moved[0].Row.UPRN)
	}
	if assert.Len(t, remaining, 1) {
		assert.Equal(t, "u2", remaining[0].UID)
	}
}

func TestPostProcessDuplicateUIDsNoMatches(t *testing.T) {
	notFound := []NotFoundResult{{UID: "u1"}, {UID: "u2"}}
	moved, remaining := PostProcessDuplicateUIDs(nil, notFound)
	assert.Empty(t, moved)
	assert.Len(t, remaining, 2)
}
