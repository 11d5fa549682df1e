package neural

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theodi/lease-data-foundation/leaseterm"
)

type stubClient struct {
	outputs []string
	err     error
}

func (s *stubClient) Generate(ctx context.Context, inputs []string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.outputs, nil
}

func TestExtractBatchHappyPath(t *testing.T) {
	client := &stubClient{outputs: []string{"24/06/1862Not specified99 years"}}
	extractor := NewExtractor(client)
	extractor.ReferenceDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	results := extractor.ExtractBatch(context.Background(), []Record{{UID: "1", Term: "99 years from 24 June 1862"}})
	require.Len(t, results, 1)
	require.True(t, results[0].Valid)
	assert.Equal(t, leaseterm.SourceNeural, results[0].Term.Source)
	assert.Equal(t, 1862, results[0].Term.StartDate.Year())
	assert.InDelta(t, 99.0, results[0].Term.TenureYears, 0.01)
}

func TestExtractBatchModelError(t *testing.T) {
	client := &stubClient{err: errors.New("model unavailable")}
	extractor := NewExtractor(client)

	results := extractor.ExtractBatch(context.Background(), []Record{{UID: "1", Term: "x"}, {UID: "2", Term: "y"}})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Valid)
		assert.Equal(t, "model unavailable", r.Error)
	}
}

func TestExtractBatchDOLFallback(t *testing.T) {
	client := &stubClient{outputs: []string{"Not specifiedNot specified999 years"}}
	extractor := NewExtractor(client)
	extractor.ReferenceDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	dol := "16-10-1866"
	results := extractor.ExtractBatch(context.Background(), []Record{{UID: "1", Term: "999 years", DOL: &dol}})
	require.Len(t, results, 1)
	require.True(t, results[0].Valid)
	assert.Equal(t, 1866, results[0].Term.StartDate.Year())
	assert.Equal(t, 2865, results[0].Term.ExpiryDate.Year())
}

func TestExtractBatchEmpty(t *testing.T) {
	extractor := NewExtractor(&stubClient{})
	assert.Nil(t, extractor.ExtractBatch(context.Background(), nil))
}
