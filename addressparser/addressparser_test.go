package addressparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSimpleAddress(t *testing.T) {
	p := NewRuleBasedParser()
	c := p.Parse("7 Agnes Street, London E14 7DG")
	assert.Equal(t, "7", c.HouseNumber)
	assert.Equal(t, "AGNES STREET", c.Road)
	assert.Equal(t, "LONDON", c.City)
	assert.Equal(t, "E14 7DG", c.Postcode)
}

func TestParseBuildingNameLine(t *testing.T) {
	p := NewRuleBasedParser()
	c := p.Parse("Time & Life Building, 153-157 New Bond Street, London W1S 2TY")
	assert.Equal(t, "153-157", c.HouseNumber)
	assert.Equal(t, "NEW BOND STREET", c.Road)
	assert.Equal(t, "TIME & LIFE BUILDING", c.House)
	assert.Equal(t, "LONDON", c.City)
}

func TestApplyBuildingKeywordSplit(t *testing.T) {
	c := Components{Road: "TIME LIFE BUILDING NEW BOND STREET"}
	got := ApplyBuildingKeywordSplit(c)
	assert.Equal(t, "TIME LIFE BUILDING", got.House)
	assert.Equal(t, "NEW BOND STREET", got.Road)
}

func TestApplyBuildingKeywordSplitPrependsHouseNumber(t *testing.T) {
	c := Components{HouseNumber: "12", Road: "DOVER COURT HIGH STREET"}
	got := ApplyBuildingKeywordSplit(c)
	assert.Equal(t, "12 DOVER COURT", got.House)
	assert.Equal(t, "HIGH STREET", got.Road)
	assert.Equal(t, "", got.HouseNumber)
}

func TestApplyBuildingKeywordSplitExistingHouseLeavesUnchanged(t *testing.T) {
	c := Components{House: "EXISTING", Road: "SOME COURT ROAD"}
	got := ApplyBuildingKeywordSplit(c)
	assert.Equal(t, "EXISTING", got.House)
	assert.Equal(t, "SOME COURT ROAD", got.Road)
}
