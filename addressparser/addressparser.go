// Package addressparser wraps the external statistical address parser
// referenced by SPEC_FULL.md §4.F. The real parser (a libpostal-backed
// statistical model) is out of scope (spec.md §1) and has no Go binding
// available in this module's dependency pack; Parser is the seam a real
// binding would be wired in through, and RuleBasedParser is a rule-based
// stand-in grounded in the SeamusWaldron UK-address tokenizing rules
// (other_examples/...normalize-address.go) so the rest of the pipeline has
// something concrete to run against. It is documented here as a stand-in,
// not a claim of parity with a real statistical parser.
package addressparser

import (
	"regexp"
	"strings"
)

// Components mirrors the semantic labels spec.md §3 names, values
// uppercased.
type Components struct {
	HouseNumber string
	House       string
	Unit        string
	Road        string
	City        string
	Postcode    string
}

// Parser is the external statistical address parser boundary.
type Parser interface {
	Parse(address string) Components
}

var (
	rePostcode    = regexp.MustCompile(`(?i)\b([A-Za-z]{1,2}\d[\dA-Za-z]?\s*\d[A-Za-z]{2})\b`)
	reHouseNumber = regexp.MustCompile(`^\s*(\d+[A-Za-z]?(?:-\d+[A-Za-z]?)?)\b`)
	reFlatUnit    = regexp.MustCompile(`(?i)\b(FLAT|UNIT|APARTMENT|APT)\s+([0-9A-Z]+)\b`)
)

// RuleBasedParser is a regex/token-based stand-in for the external
// statistical parser named in SPEC_FULL.md §4.F.
type RuleBasedParser struct{}

// NewRuleBasedParser constructs the stand-in parser.
func NewRuleBasedParser() *RuleBasedParser { return &RuleBasedParser{} }

// Parse extracts house number, unit, postcode and the remaining free text
// (treated as road/city) from a raw address line, uppercasing every value
// per the label contract in spec.md §4.F.
func (p *RuleBasedParser) Parse(address string) Components {
	addr := strings.ToUpper(strings.TrimSpace(address))
	var c Components

	if m := rePostcode.FindString(addr); m != "" {
		c.Postcode = normalizeSpaces(m)
		addr = strings.TrimSpace(strings.Replace(addr, m, "", 1))
	}

	if m := reFlatUnit.FindStringSubmatch(addr); m != nil {
		c.Unit = strings.TrimSpace(m[2])
		addr = strings.TrimSpace(strings.Replace(addr, m[0], "", 1))
	}

	addr = strings.Trim(addr, ", ")

	parts := splitComma(addr)
	if len(parts) == 0 {
		return ApplyBuildingKeywordSplit(c)
	}

	lines := parts
	if len(parts) > 1 {
		c.City = strings.TrimSpace(parts[len(parts)-1])
		lines = parts[:len(parts)-1]
	}

	// Among the remaining address lines, the one carrying a leading house
	// number is the street line; any other lines are building/sub-building
	// name segments, joined in order.
	streetIdx := -1
	for i, line := range lines {
		if reHouseNumber.MatchString(line) {
			streetIdx = i
			break
		}
	}

	if streetIdx >= 0 {
		var buildingParts []string
		for i, line := range lines {
			if i == streetIdx {
				continue
			}
			if t := strings.TrimSpace(line); t != "" {
				buildingParts = append(buildingParts, t)
			}
		}
		if len(buildingParts) > 0 {
			c.House = strings.Join(buildingParts, " ")
		}

		streetLine := lines[streetIdx]
		if m := reHouseNumber.FindStringSubmatch(streetLine); m != nil {
			c.HouseNumber = m[1]
			streetLine = strings.TrimSpace(streetLine[len(m[0]):])
		}
		c.Road = strings.TrimSpace(streetLine)
	} else if len(lines) > 0 {
		// No line carried a leading number; treat the first line as the
		// road, leaving the keyword post-process below to recover an
		// embedded building name.
		c.Road = strings.TrimSpace(lines[0])
	}

	return ApplyBuildingKeywordSplit(c)
}

func splitComma(s string) []string {
	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if t := strings.TrimSpace(r); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func normalizeSpaces(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	if len(s) > 3 {
		return s[:len(s)-3] + " " + s[len(s)-3:]
	}
	return s
}

// buildingKeywords is the fixed set named in SPEC_FULL.md §4.F, grounded
// directly on original_source/src/addressbase/address_parser.py's
// BUILDING_KEYWORDS list.
var buildingKeywords = []string{
	"COURT", "LODGE", "HOUSE", "HALL", "MANOR", "TOWERS", "TOWER", "PLACE",
	"BUILDINGS", "BUILDING", "MANSIONS", "MANSION", "CHAMBERS", "ARCADE",
	"CENTRE", "CENTER",
}

// ApplyBuildingKeywordSplit implements SPEC_FULL.md §4.F's post-processing:
// the external parser sometimes conflates a building name with the street
// in Road. If Road matches "^(.+? KEYWORD) (.+)$" and House is absent, the
// prefix becomes House (prepended with any existing HouseNumber, which is
// then cleared) and the suffix becomes the new Road.
func ApplyBuildingKeywordSplit(c Components) Components {
	if c.House != "" || c.Road == "" {
		return c
	}

	for _, kw := range buildingKeywords {
		re := regexp.MustCompile(`(?i)^(.+?\s` + kw + `)\s+(.+)$`)
		m := re.FindStringSubmatch(c.Road)
		if m == nil {
			continue
		}

		buildingName := strings.TrimSpace(m[1])
		streetName := strings.TrimSpace(m[2])

		if c.HouseNumber != "" {
			c.House = strings.TrimSpace(c.HouseNumber + " " + buildingName)
			c.HouseNumber = ""
		} else {
			c.House = buildingName
		}
		c.Road = streetName
		return c
	}

	return c
}
