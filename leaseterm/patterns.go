package leaseterm

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/theodi/lease-data-foundation/dateutil"
	"github.com/theodi/lease-data-foundation/termnorm"
)

// roundWithinDays is the tolerance SPEC_FULL.md §9 resolves the "rounding
// up" open question with: a year delta within this many days of the next
// full year rounds up rather than truncating.
const roundWithinDays = 30

// pattern is one entry of the prioritized cascade. Patterns are tried in
// slice order; the first whose regex matches AND whose extract function
// succeeds wins. A pattern that matches syntactically but whose captured
// numbers fail to parse is treated as no match, and the cascade continues
// (SPEC_FULL.md §4.C "Failure semantics").
type pattern struct {
	description string
	needsDOL    bool
	regex       *regexp.Regexp
	extract     func(m []string, dol *time.Time) (*Term, bool)
}

const monthFrag = `([A-Za-z]+)`
const dateFrag = `(\d{1,2})\s+` + monthFrag + `\s+(\d{4})`
const specialFrag = `((?:Christmas|Midsummer|Lady|Michaelmas)(?:\s+Day)?)`

func parseDateGroup(day, month, year string) (time.Time, bool) {
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, false
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	return dateutil.ParseDate(d, month, y)
}

func makeTerm(start, expiry time.Time, tenure float64) (*Term, bool) {
	if !start.Before(expiry) || tenure <= 0 {
		return nil, false
	}
	return &Term{StartDate: start, ExpiryDate: expiry, TenureYears: tenure, Source: SourceRegex}, true
}

// patterns is the ordered cascade described by SPEC_FULL.md §4.C. Groups
// are ordered 1 (most specific: explicit start+end with explicit years)
// through 6 (DOL-dependent fallbacks), per the engine's documented ordering
// rationale. Adding a pattern means adding one entry; resist collapsing
// these into a single mega-regex.
var patterns = []pattern{
	// --- Group 1: years with both endpoints explicit ---
	{
		description: "years + explicit start date + explicit end date",
		regex: regexp.MustCompile(`(?i)(\d+)\s+years?\s+(?:from|commencing|beginning|starting)(?:\s+on)?(?:\s+and\s+including)?\s+` +
			dateFrag + `\s+(?:to|until|up to|ending|expiring|terminating)(?:\s+on)?(?:\s+and\s+including)?\s+` + dateFrag),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			years, ok := dateutil.ParseWordNumber(m[1])
			if !ok {
				return nil, false
			}
			start, ok := parseDateGroup(m[2], m[3], m[4])
			if !ok {
				return nil, false
			}
			expiry, ok := parseDateGroup(m[5], m[6], m[7])
			if !ok {
				return nil, false
			}
			return makeTerm(start, expiry, float64(years))
		},
	},

	// --- Group 2: bare date range, tenure derived ---
	{
		description: "from D1 to D2 (tenure derived)",
		regex:        regexp.MustCompile(`(?i)^from(?:\s+and\s+including)?\s+` + dateFrag + `\s+to(?:\s+and\s+including)?\s+` + dateFrag + `$`),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			start, ok := parseDateGroup(m[1], m[2], m[3])
			if !ok {
				return nil, false
			}
			expiry, ok := parseDateGroup(m[4], m[5], m[6])
			if !ok {
				return nil, false
			}
			years := dateutil.YearsBetween(start, expiry, roundWithinDays)
			return makeTerm(start, expiry, float64(years))
		},
	},
	{
		description: "numeric D1 to D2 (tenure derived)",
		regex:        regexp.MustCompile(`(?i)^from\s+(\d{1,2})[/.](\d{1,2})[/.](\d{4})\s+to\s+(\d{1,2})[/.](\d{1,2})[/.](\d{4})$`),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			start, ok := parseDateGroup(m[1], m[2], m[3])
			if !ok {
				return nil, false
			}
			expiry, ok := parseDateGroup(m[4], m[5], m[6])
			if !ok {
				return nil, false
			}
			years := dateutil.YearsBetween(start, expiry, roundWithinDays)
			return makeTerm(start, expiry, float64(years))
		},
	},
	{
		description: "from D1 for a term expiring on D2 (tenure derived)",
		regex:        regexp.MustCompile(`(?i)from\s+` + dateFrag + `\s+for\s+a\s+term\s+.*?expiring\s+on\s+` + dateFrag),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			start, ok := parseDateGroup(m[1], m[2], m[3])
			if !ok {
				return nil, false
			}
			expiry, ok := parseDateGroup(m[4], m[5], m[6])
			if !ok {
				return nil, false
			}
			years := dateutil.YearsBetween(start, expiry, roundWithinDays)
			return makeTerm(start, expiry, float64(years))
		},
	},

	// --- Group 3: years with modifiers (fractional precedes integer so
	// "97 3/4" is not consumed as "97" with "3/4" left dangling) ---
	{
		description: "fractional years from D",
		regex:       regexp.MustCompile(`(?i)(\d+\s+\d+/\d+)\s+years?\s+from\s+` + dateFrag),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			years, ok := dateutil.ParseFractionalYears(m[1])
			if !ok {
				return nil, false
			}
			start, ok := parseDateGroup(m[2], m[3], m[4])
			if !ok {
				return nil, false
			}
			expiry := addFractionalYears(start, years)
			return makeTerm(start, expiry, years)
		},
	},
	{
		description: "years less N days from D",
		regex:       regexp.MustCompile(`(?i)(\d+)\s+years?\s+less\s+(\d+)\s+days?\s+from\s+` + dateFrag),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			years, ok := dateutil.ParseWordNumber(m[1])
			if !ok {
				return nil, false
			}
			lessDays, ok := dateutil.ParseWordNumber(m[2])
			if !ok {
				return nil, false
			}
			start, ok := parseDateGroup(m[3], m[4], m[5])
			if !ok {
				return nil, false
			}
			expiry := dateutil.AddYearsMonthsDays(start, years, 0, -lessDays)
			return makeTerm(start, expiry, float64(years))
		},
	},
	{
		description: "years plus/and N days from D",
		regex:       regexp.MustCompile(`(?i)(\d+)\s+years?\s+(?:plus|and)\s+(\d+)\s+days?\s+from\s+` + dateFrag),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			years, ok := dateutil.ParseWordNumber(m[1])
			if !ok {
				return nil, false
			}
			plusDays, ok := dateutil.ParseWordNumber(m[2])
			if !ok {
				return nil, false
			}
			start, ok := parseDateGroup(m[3], m[4], m[5])
			if !ok {
				return nil, false
			}
			expiry := dateutil.AddYearsMonthsDays(start, years, 0, plusDays)
			return makeTerm(start, expiry, float64(years))
		},
	},
	{
		description: "years less N months from D",
		regex:       regexp.MustCompile(`(?i)(\d+)\s+years?\s+less\s+(\d+)\s+months?\s+from\s+` + dateFrag),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			years, ok := dateutil.ParseWordNumber(m[1])
			if !ok {
				return nil, false
			}
			lessMonths, ok := dateutil.ParseWordNumber(m[2])
			if !ok {
				return nil, false
			}
			start, ok := parseDateGroup(m[3], m[4], m[5])
			if !ok {
				return nil, false
			}
			expiry := dateutil.AddYearsMonthsDays(start, years, -lessMonths, 0)
			return makeTerm(start, expiry, float64(years))
		},
	},
	{
		description: "years and M months from D",
		regex:       regexp.MustCompile(`(?i)(\d+)\s+years?\s+and\s+(\d+)\s+months?\s+from\s+` + dateFrag),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			years, ok := dateutil.ParseWordNumber(m[1])
			if !ok {
				return nil, false
			}
			months, ok := dateutil.ParseWordNumber(m[2])
			if !ok {
				return nil, false
			}
			start, ok := parseDateGroup(m[3], m[4], m[5])
			if !ok {
				return nil, false
			}
			expiry := dateutil.AddYearsMonthsDays(start, years, months, 0)
			tenure := float64(years) + float64(months)/12.0
			return makeTerm(start, expiry, tenure)
		},
	},
	{
		description: "years from special quarter day + year",
		regex:       regexp.MustCompile(`(?i)(\d+)\s+years?\s+from\s+` + specialFrag + `\s+(\d{4})`),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			years, ok := dateutil.ParseWordNumber(m[1])
			if !ok {
				return nil, false
			}
			year, err := strconv.Atoi(m[3])
			if err != nil {
				return nil, false
			}
			start, ok := dateutil.ResolveSpecialDay(m[2], year)
			if !ok {
				return nil, false
			}
			expiry := dateutil.AddYearsMonthsDays(start, years, 0, 0)
			return makeTerm(start, expiry, float64(years))
		},
	},

	// --- Group 4: years + start only ---
	{
		description: "years from D",
		regex:       regexp.MustCompile(`(?i)^(?:(?:a\s+)?term\s+of\s+)?(\d+)\s+years?\s+from\s+` + dateFrag + `$`),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			years, ok := dateutil.ParseWordNumber(m[1])
			if !ok {
				return nil, false
			}
			start, ok := parseDateGroup(m[2], m[3], m[4])
			if !ok {
				return nil, false
			}
			expiry := dateutil.AddYearsMonthsDays(start, years, 0, 0)
			return makeTerm(start, expiry, float64(years))
		},
	},
	{
		description: "from D for a term of N years",
		regex:       regexp.MustCompile(`(?i)from\s+` + dateFrag + `\s+for\s+a\s+term\s+of\s+(\d+)\s+years?`),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			start, ok := parseDateGroup(m[1], m[2], m[3])
			if !ok {
				return nil, false
			}
			years, ok := dateutil.ParseWordNumber(m[4])
			if !ok {
				return nil, false
			}
			expiry := dateutil.AddYearsMonthsDays(start, years, 0, 0)
			return makeTerm(start, expiry, float64(years))
		},
	},
	{
		description: "years expiring/to D (start derived by subtraction)",
		regex:       regexp.MustCompile(`(?i)^(\d+)\s+years?\s+(?:expiring|to)(?:\s+on)?\s+` + dateFrag + `$`),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			years, ok := dateutil.ParseWordNumber(m[1])
			if !ok {
				return nil, false
			}
			expiry, ok := parseDateGroup(m[2], m[3], m[4])
			if !ok {
				return nil, false
			}
			start := dateutil.AddYearsMonthsDays(expiry, -years, 0, 0)
			return makeTerm(start, expiry, float64(years))
		},
	},
	{
		description: "starts on D and expires N years thereafter",
		regex:       regexp.MustCompile(`(?i)starts?\s+on\s+` + dateFrag + `\s+and\s+expires?\s+(\d+)\s+years?\s+thereafter`),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			start, ok := parseDateGroup(m[1], m[2], m[3])
			if !ok {
				return nil, false
			}
			years, ok := dateutil.ParseWordNumber(m[4])
			if !ok {
				return nil, false
			}
			expiry := dateutil.AddYearsMonthsDays(start, years, 0, 0)
			return makeTerm(start, expiry, float64(years))
		},
	},
	{
		description: "years from Month Year (day defaults to 1)",
		regex:       regexp.MustCompile(`(?i)^(\d+)\s+years?\s+from\s+([A-Za-z]+)\s+(\d{4})$`),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			years, ok := dateutil.ParseWordNumber(m[1])
			if !ok {
				return nil, false
			}
			start, ok := parseDateGroup("1", m[2], m[3])
			if !ok {
				return nil, false
			}
			expiry := dateutil.AddYearsMonthsDays(start, years, 0, 0)
			return makeTerm(start, expiry, float64(years))
		},
	},

	// --- Group 5: fallback for missing keywords ---
	{
		description: "years D (missing 'from')",
		regex:       regexp.MustCompile(`(?i)^(\d+)\s+years?\s+` + dateFrag + `$`),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			years, ok := dateutil.ParseWordNumber(m[1])
			if !ok {
				return nil, false
			}
			start, ok := parseDateGroup(m[2], m[3], m[4])
			if !ok {
				return nil, false
			}
			expiry := dateutil.AddYearsMonthsDays(start, years, 0, 0)
			return makeTerm(start, expiry, float64(years))
		},
	},
	{
		description: "N from D (missing 'years')",
		regex:       regexp.MustCompile(`(?i)^(\d+)\s+from\s+` + dateFrag + `$`),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			years, ok := dateutil.ParseWordNumber(m[1])
			if !ok {
				return nil, false
			}
			start, ok := parseDateGroup(m[2], m[3], m[4])
			if !ok {
				return nil, false
			}
			expiry := dateutil.AddYearsMonthsDays(start, years, 0, 0)
			return makeTerm(start, expiry, float64(years))
		},
	},

	// --- Group 6: DOL-dependent (only tried when dol is present) ---
	{
		description: "years from the date of the lease",
		needsDOL:    true,
		regex:       regexp.MustCompile(`(?i)^(\d+)\s+years?\s+from\s+the\s+date\s+of\s+the\s+lease$`),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			years, ok := dateutil.ParseWordNumber(m[1])
			if !ok {
				return nil, false
			}
			expiry := dateutil.AddYearsMonthsDays(*dol, years, 0, 0)
			return makeTerm(*dol, expiry, float64(years))
		},
	},
	{
		description: "term expiring/ending on D (start from DOL, tenure derived)",
		needsDOL:    true,
		regex:       regexp.MustCompile(`(?i)^(?:a\s+)?term(?:\s+of\s+years?)?\s+(?:expiring|ending)\s+on\s+` + dateFrag + `$`),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			expiry, ok := parseDateGroup(m[1], m[2], m[3])
			if !ok {
				return nil, false
			}
			years := dateutil.YearsBetween(*dol, expiry, roundWithinDays)
			return makeTerm(*dol, expiry, float64(years))
		},
	},
	{
		description: "expiring on D alone (start from DOL, tenure derived)",
		needsDOL:    true,
		regex:       regexp.MustCompile(`(?i)^expiring\s+on\s+` + dateFrag + `$`),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			expiry, ok := parseDateGroup(m[1], m[2], m[3])
			if !ok {
				return nil, false
			}
			years := dateutil.YearsBetween(*dol, expiry, roundWithinDays)
			return makeTerm(*dol, expiry, float64(years))
		},
	},
	{
		description: "years alone (start from DOL)",
		needsDOL:    true,
		regex:       regexp.MustCompile(`(?i)^(\d+)\s+years?$`),
		extract: func(m []string, dol *time.Time) (*Term, bool) {
			years, ok := dateutil.ParseWordNumber(m[1])
			if !ok {
				return nil, false
			}
			expiry := dateutil.AddYearsMonthsDays(*dol, years, 0, 0)
			return makeTerm(*dol, expiry, float64(years))
		},
	},
}

func addFractionalYears(start time.Time, years float64) time.Time {
	whole := int(years)
	fraction := years - float64(whole)
	months := int(fraction*12 + 0.5) // round to nearest whole month
	return dateutil.AddYearsMonthsDays(start, whole, months, 0)
}

// Extract runs the prioritized cascade over term, returning the first
// pattern's result that matches and parses cleanly. dol is consulted only
// by Group 6 patterns. On total failure, if the normalized term contains
// parenthesized text, one level of parentheses is stripped and the cascade
// is retried once (SPEC_FULL.md §4.C "Final fallback").
func Extract(term string, dol *time.Time) (*Term, bool) {
	normalized := termnorm.Normalize(term)
	if t, ok := extractOnce(normalized, dol); ok {
		return t, true
	}

	if strings.Contains(normalized, "(") && strings.Contains(normalized, ")") {
		stripped := stripOneParenLevel(normalized)
		if stripped != normalized {
			if t, ok := extractOnce(termnorm.Normalize(stripped), dol); ok {
				return t, true
			}
		}
	}

	return nil, false
}

var parenRe = regexp.MustCompile(`\(([^()]*)\)`)

func stripOneParenLevel(s string) string {
	return parenRe.ReplaceAllString(s, "$1")
}

func extractOnce(normalized string, dol *time.Time) (*Term, bool) {
	for _, p := range patterns {
		if p.needsDOL && dol == nil {
			continue
		}
		m := p.regex.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		if t, ok := p.extract(m, dol); ok {
			return t, true
		}
	}
	return nil, false
}
