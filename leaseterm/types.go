// Package leaseterm holds the shared LeaseTerm type, the prioritized regex
// pattern engine (component C) and the validator (component D).
package leaseterm

import "time"

// Term is the target of extraction: a resolved lease start date, expiry
// date and tenure, tagged with the extractor that produced it.
type Term struct {
	StartDate   time.Time
	ExpiryDate  time.Time
	TenureYears float64
	Source      string // "regex" or "neural"
}

const (
	SourceRegex  = "regex"
	SourceNeural = "neural"
)
