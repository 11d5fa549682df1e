package termnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"99 years  from 24th June, 1862",
		"Residue of 99 years les 3 days frm 25 March 1868",
		"From: 1 of January 1900 To: 31 December 1999",
		"A term therein mentioned hereof",
		"12:06:1900 midnight on commencement",
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		assert.Equal(t, once, twice, "normalize must be idempotent for %q", in)
	}
}

func TestNormalizeSpellingFixes(t *testing.T) {
	assert.Contains(t, Normalize("99 years les 3 days"), "less")
	assert.Contains(t, Normalize("frm 25 March"), "from 25 March")
	assert.Contains(t, Normalize("form 25 March"), "from 25 March")
	assert.Contains(t, Normalize("rom 25 March"), "from 25 March")
	assert.Contains(t, Normalize("25 Jnuary 1900"), "January")
	assert.Contains(t, Normalize("25 Feburary 1900"), "February")
}

func TestNormalizeOrdinalsAndOf(t *testing.T) {
	assert.Equal(t, "1 January 1900", Normalize("1st of January 1900"))
	assert.Equal(t, "24 June 1862", Normalize("24th June 1862"))
}

func TestNormalizeStripsResidueAndTrailing(t *testing.T) {
	assert.Equal(t, "99 years from 1 January 1900", Normalize("Residue of 99 years from 1 January 1900 hereof"))
}
