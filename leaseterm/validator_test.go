package leaseterm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateNil(t *testing.T) {
	result := Validate(nil, time.Now(), 10)
	assert.False(t, result.IsValid())
	assert.Equal(t, CodeNullData, result.Errors[0].Code)
}

func TestValidateHappyPath(t *testing.T) {
	term := &Term{
		StartDate:   date(1862, time.June, 24),
		ExpiryDate:  date(1961, time.June, 24),
		TenureYears: 99,
		Source:      SourceRegex,
	}
	result := Validate(term, date(2024, time.January, 1), 10)
	assert.True(t, result.IsValid())
	assert.Contains(t, codesOf(result.Warnings), CodeLeaseExpired)
}

func TestValidateInvalidOrder(t *testing.T) {
	term := &Term{
		StartDate:   date(2000, time.January, 1),
		ExpiryDate:  date(1999, time.January, 1),
		TenureYears: 10,
	}
	result := Validate(term, date(2024, time.January, 1), 10)
	assert.False(t, result.IsValid())
	assert.Contains(t, codesOf(result.Errors), CodeInvalidDateOrder)
}

func TestValidateInvalidTenure(t *testing.T) {
	term := &Term{
		StartDate:  date(1990, time.January, 1),
		ExpiryDate: date(2000, time.January, 1),
	}
	result := Validate(term, date(2024, time.January, 1), 10)
	assert.False(t, result.IsValid())
	assert.Contains(t, codesOf(result.Errors), CodeInvalidTenure)
}

func TestValidateWarnings(t *testing.T) {
	term := &Term{
		StartDate:   date(1700, time.January, 1),
		ExpiryDate:  date(3000, time.January, 1),
		TenureYears: 1300,
	}
	result := Validate(term, date(2024, time.January, 1), 10)
	assert.True(t, result.IsValid())
	codes := codesOf(result.Warnings)
	assert.Contains(t, codes, CodeUnreasonableStartDate)
	assert.Contains(t, codes, CodeExcessiveTenure)
}

func codesOf(issues []ValidationIssue) []string {
	codes := make([]string, 0, len(issues))
	for _, i := range issues {
		codes = append(codes, i.Code)
	}
	return codes
}
