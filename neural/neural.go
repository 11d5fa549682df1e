// Package neural implements the contract-level neural fallback extractor
// (SPEC_FULL.md §4.E). The actual sequence-to-sequence model is an external
// artifact out of scope for this repository (spec.md §1); ModelClient is
// the seam a real model is wired in through, and Extractor implements
// everything around that seam: prompt formatting, output parsing (reusing
// the dateutil primitives so neural output undergoes the same calendar
// semantics as regex output), DOL substitution, and missing-leg fill.
package neural

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/theodi/lease-data-foundation/dateutil"
	"github.com/theodi/lease-data-foundation/leaseterm"
)

// ModelClient is the external seq2seq model boundary. Generate takes one
// formatted input string per record and returns one decoded output string
// per record, in the same order. A real implementation would tokenize,
// batch, and call model.generate(); none is shipped here (spec.md §1).
type ModelClient interface {
	Generate(ctx context.Context, inputs []string) ([]string, error)
}

// NullModelClient is the default ModelClient when no real backend is
// configured: every call fails, and ExtractBatch attributes that failure to
// each record rather than crashing the driver loop. It exists so
// cmd/neural-extractor has something concrete to run against until a real
// model binding is wired in behind ModelClient.
type NullModelClient struct{}

func (NullModelClient) Generate(ctx context.Context, inputs []string) ([]string, error) {
	return nil, fmt.Errorf("no neural backend configured (%d inputs undelivered)", len(inputs))
}

// Record is the minimal shape Extractor needs from a raw lease record.
type Record struct {
	UID  string
	Term string
	DOL  *string
}

// Result is attached back onto a Record after a batch completes.
type Result struct {
	UID   string
	Term  *leaseterm.Term
	Valid bool
	Error string
}

// Extractor drives ModelClient per SPEC_FULL.md §4.E's seven-step
// algorithm.
type Extractor struct {
	Client        ModelClient
	ReferenceDate time.Time
	ToleranceDays int
}

// NewExtractor constructs an Extractor whose validation uses today (UTC) as
// the reference date and a 10-day tolerance, the same tolerance the regex
// phase in package driver passes to leaseterm.IsValid.
func NewExtractor(client ModelClient) *Extractor {
	return &Extractor{Client: client, ReferenceDate: time.Now().UTC(), ToleranceDays: 10}
}

// ExtractBatch runs the full batch: format, generate, parse, validate. A
// Generate error is attributed to every record in the batch as a
// t5_parse_error-equivalent Result, and does not propagate as a Go error —
// the batch driver must keep going (SPEC_FULL.md §4.E "Failure semantics").
func (e *Extractor) ExtractBatch(ctx context.Context, records []Record) []Result {
	if len(records) == 0 {
		return nil
	}

	inputs := make([]string, len(records))
	for i, r := range records {
		inputs[i] = fmt.Sprintf("parse lease: %s", r.Term)
	}

	outputs, err := e.Client.Generate(ctx, inputs)
	if err != nil {
		results := make([]Result, len(records))
		for i, r := range records {
			results[i] = Result{UID: r.UID, Valid: false, Error: err.Error()}
		}
		return results
	}

	results := make([]Result, len(records))
	for i, r := range records {
		var output string
		if i < len(outputs) {
			output = outputs[i]
		}
		results[i] = e.parseOne(r, output)
	}
	return results
}

func (e *Extractor) parseOne(r Record, output string) Result {
	parsed := parseOutput(output)

	if parsed.start == nil && r.DOL != nil {
		if dol, ok := dateutil.ParseDOL(*r.DOL); ok {
			parsed.start = &dol
			if parsed.start != nil && parsed.tenure != nil && parsed.expiry == nil {
				expiry := dateutil.AddYearsMonthsDays(*parsed.start, int(*parsed.tenure), 0, 0)
				parsed.expiry = &expiry
			}
		}
	}

	fillMissingLeg(&parsed)

	if parsed.start == nil || parsed.expiry == nil || parsed.tenure == nil {
		return Result{UID: r.UID, Valid: false, Error: "insufficient data extracted"}
	}

	term := &leaseterm.Term{
		StartDate:   *parsed.start,
		ExpiryDate:  *parsed.expiry,
		TenureYears: *parsed.tenure,
		Source:      leaseterm.SourceNeural,
	}

	validation := leaseterm.Validate(term, e.ReferenceDate, e.ToleranceDays)
	if !validation.IsValid() {
		return Result{UID: r.UID, Valid: false, Error: "validation failed"}
	}

	return Result{UID: r.UID, Term: term, Valid: true}
}

type parsedOutput struct {
	start  *time.Time
	expiry *time.Time
	tenure *float64
}

var datePattern = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
var tenurePattern = regexp.MustCompile(`(?i)(\d+)\s*years?`)
var specialYearPattern = regexp.MustCompile(`(?i)(Christmas|Midsummer|Lady|Michaelmas)(?:\s+Day)?\s+(\d{4})`)

// parseOutput implements SPEC_FULL.md §4.E step 3-4: the decoded string
// concatenates start/expiry/tenure with no separator, any of which may read
// "Not specified". Grounded on
// original_source/src/utils/t5_extractor.py::_parse_t5_output.
func parseOutput(output string) parsedOutput {
	var result parsedOutput
	output = strings.TrimSpace(output)
	if output == "" {
		return result
	}

	dates := datePattern.FindAllString(output, -1)
	if len(dates) >= 1 {
		if d, ok := parseSlashDate(dates[0]); ok {
			result.start = &d
		}
	}
	if len(dates) >= 2 {
		if d, ok := parseSlashDate(dates[1]); ok {
			result.expiry = &d
		}
	}

	remaining := datePattern.ReplaceAllString(output, "")
	remaining = strings.TrimSpace(strings.ReplaceAll(remaining, "Not specified", ""))
	if remaining != "" {
		if m := tenurePattern.FindStringSubmatch(remaining); m != nil {
			if n, ok := dateutil.ParseWordNumber(m[1]); ok {
				v := float64(n)
				result.tenure = &v
			}
		}
	}

	if len(dates) == 0 && result.start == nil && result.expiry == nil {
		if m := tenurePattern.FindStringSubmatch(output); m != nil {
			if n, ok := dateutil.ParseWordNumber(m[1]); ok {
				v := float64(n)
				result.tenure = &v
			}
		}

		if m := specialYearPattern.FindStringSubmatch(output); m != nil {
			var year int
			fmt.Sscanf(m[2], "%d", &year)
			if d, ok := dateutil.ResolveSpecialDay(m[1], year); ok {
				result.start = &d
			}
		}
	}

	return result
}

func parseSlashDate(s string) (time.Time, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	return dateutil.ParseDate(atoiSafe(parts[0]), parts[1], atoiSafe(parts[2]))
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// fillMissingLeg implements step 6: when exactly two of {start, expiry,
// tenure} are known, derive the third.
func fillMissingLeg(p *parsedOutput) {
	switch {
	case p.start != nil && p.tenure != nil && p.expiry == nil:
		expiry := dateutil.AddYearsMonthsDays(*p.start, int(*p.tenure), 0, 0)
		p.expiry = &expiry
	case p.start != nil && p.expiry != nil && p.tenure == nil:
		years := dateutil.YearsBetween(*p.start, *p.expiry, 30)
		v := float64(years)
		p.tenure = &v
	case p.expiry != nil && p.tenure != nil && p.start == nil:
		start := dateutil.AddYearsMonthsDays(*p.expiry, -int(*p.tenure), 0, 0)
		p.start = &start
	}
}
