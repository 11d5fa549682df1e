// Package termnorm implements the single pure normalization pass that runs
// over a raw lease term string before the pattern engine (leaseterm) sees
// it. It exists to shrink the combinatorial space of spellings and phrasing
// the regex cascade has to handle; it must be idempotent.
package termnorm

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun  = regexp.MustCompile(`[ \t\n\r\f\v\x{00A0}]+`)
	stripChars     = strings.NewReplacer("´", "", "~", "", "¨", "", ",", "")
	residueOfRe    = regexp.MustCompile(`(?i)^residue of\s+`)
	midnightOnRe   = regexp.MustCompile(`(?i)\s+midnight on\b`)
	midnightRe     = regexp.MustCompile(`(?i)\s+midnight\b`)
	andAndRe       = regexp.MustCompile(`(?i)\band and\b`)
	nineHundredRe  = regexp.MustCompile(`(?i)nine hundred and ninety nine`)
	vulgarFracRe   = regexp.MustCompile(`[\x{00BC}\x{00BD}\x{00BE}]`)
	ordinalRe      = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	ofBetweenDate  = regexp.MustCompile(`(?i)\b(\d{1,2})\s+of\s+(January|February|March|April|May|June|July|August|September|October|November|December)\b`)
	colonDateRe    = regexp.MustCompile(`\b(\d{1,2}):(\d{1,2}):(\d{4})\b`)
	fromDigitGapRe = regexp.MustCompile(`(?i)\bfrom(\d)`)
	trailingHereof = regexp.MustCompile(`(?i)\s+(hereof|thereof)\s*$`)
)

type connectiveFix struct {
	pattern *regexp.Regexp
	repl    string
}

var connectiveFixes = []connectiveFix{
	{regexp.MustCompile(`(?i)including on`), "including"},
	{regexp.MustCompile(`(?i)to and expiring`), "expiring"},
	{regexp.MustCompile(`(?i)an including`), "and including"},
	{regexp.MustCompile(`(?i)beginning in`), "beginning on"},
	{regexp.MustCompile(`(?i)\bCommences\b`), "commencing"},
	{regexp.MustCompile(`(?i)\bexpires\b`), "expiring"},
	{regexp.MustCompile(`(?i)^From:`), "From"},
	{regexp.MustCompile(`(?i)\bTo:`), "to"},
}

type spellingFix struct {
	pattern *regexp.Regexp
	repl    string
}

// Order matters: the more specific "including/from" must be checked after
// the simpler individual fixes, matching the source dictionary's intent of
// repairing common OCR/typist errors one at a time rather than as a single
// combined substitution.
var spellingFixes = []spellingFix{
	{regexp.MustCompile(`(?i)\bles\b`), "less"},
	{regexp.MustCompile(`(?i)\brom\b`), "from"},
	{regexp.MustCompile(`(?i)\bfrm\b`), "from"},
	{regexp.MustCompile(`(?i)\bform\b`), "from"},
	{regexp.MustCompile(`(?i)\bJnuary\b`), "January"},
	{regexp.MustCompile(`(?i)\bJanuaryu\b`), "January"},
	{regexp.MustCompile(`(?i)\bFeburary\b`), "February"},
	{regexp.MustCompile(`(?i)\bFebuary\b`), "February"},
	{regexp.MustCompile(`(?i)\bSeptmber\b`), "September"},
	{regexp.MustCompile(`(?i)\bNovmber\b`), "November"},
	{regexp.MustCompile(`(?i)\bDecmber\b`), "December"},
	{regexp.MustCompile(`(?i)therein mentioned`), "the lease"},
	{regexp.MustCompile(`(?i)as the lease`), "of the lease"},
	{regexp.MustCompile(`(?i)including/from`), "including"},
}

// Normalize runs the ordered cleanup pipeline documented in SPEC_FULL.md
// §4.B. It must be idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(term string) string {
	s := term

	// 1. collapse whitespace, trim.
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	// 2. strip non-semantic characters.
	s = stripChars.Replace(s)

	// 3. strip "Residue of " prefix.
	s = residueOfRe.ReplaceAllString(s, "")

	// 4. delete " midnight on"/" midnight".
	s = midnightOnRe.ReplaceAllString(s, "")
	s = midnightRe.ReplaceAllString(s, "")

	// 5. phrase duplications / word-number collapse / vulgar fractions.
	s = andAndRe.ReplaceAllString(s, "and")
	s = nineHundredRe.ReplaceAllString(s, "999")
	s = vulgarFracRe.ReplaceAllString(s, "")

	// 6. strip ordinal suffixes on 1-2 digit numbers.
	s = ordinalRe.ReplaceAllString(s, "$1")

	// 7. elide "of" between day and month.
	s = ofBetweenDate.ReplaceAllString(s, "$1 $2")

	// 8. canonicalize connective typos.
	for _, fix := range connectiveFixes {
		s = fix.pattern.ReplaceAllString(s, fix.repl)
	}

	// 9. colon date separators -> dots.
	s = colonDateRe.ReplaceAllString(s, "$1.$2.$3")

	// 10. fixed spelling-error dictionary.
	for _, fix := range spellingFixes {
		s = fix.pattern.ReplaceAllString(s, fix.repl)
	}

	// 11. insert missing space between "from" and a following digit.
	s = fromDigitGapRe.ReplaceAllString(s, "from $1")

	// 12. strip trailing " hereof"/" thereof".
	s = trailingHereof.ReplaceAllString(s, "")

	// re-collapse whitespace introduced by the substitutions above, keeping
	// the final result idempotent under a second pass.
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	return s
}
