package enrich

import (
	"context"
	"database/sql"
	"testing"

	"github.com/theodi/lease-data-foundation/postcode"
	"github.com/theodi/lease-data-foundation/refstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestIsResidential(t *testing.T) {
	assert.True(t, IsResidential("R"))
	assert.True(t, IsResidential("x"))
	assert.True(t, IsResidential("Park House"))
	assert.False(t, IsResidential("C"))
	assert.False(t, IsResidential(""))
}

func TestWriteMatchedResidentialProducesUpdate(t *testing.T) {
	records := []MatchedRecord{
		{
			UID: "uid-1",
			Row: refstore.ReferenceAddress{
				UPRN:         100,
				Class:        sql.NullString{String: "RD", Valid: true},
				Postcode:     sql.NullString{String: "E14 7DG", Valid: true},
				Thoroughfare: sql.NullString{String: "AGNES STREET", Valid: true},
				Latitude:     sql.NullFloat64{Float64: 51.5, Valid: true},
				Longitude:    sql.NullFloat64{Float64: -0.01, Valid: true},
			},
		},
	}

	ops := WriteMatched(records)
	require.Len(t, ops, 1)
	assert.False(t, ops[0].Delete)
	assert.Equal(t, "uid-1", ops[0].UID)
	assert.Equal(t, "RD", ops[0].Set["class"])

	loc, ok := ops[0].Set["location"].(bson.M)
	require.True(t, ok)
	coords, ok := loc["coordinates"].([]float64)
	require.True(t, ok)
	assert.InDelta(t, -0.01, coords[0], 0.0001)
	assert.InDelta(t, 51.5, coords[1], 0.0001)
}

func TestWriteMatchedNonResidentialProducesDelete(t *testing.T) {
	records := []MatchedRecord{
		{UID: "uid-2", Row: refstore.ReferenceAddress{Class: sql.NullString{String: "C", Valid: true}}},
	}
	ops := WriteMatched(records)
	require.Len(t, ops, 1)
	assert.True(t, ops[0].Delete)
	assert.Equal(t, "uid-2", ops[0].UID)
}

func TestWriteMatchedWithoutCoordinatesOmitsLocation(t *testing.T) {
	records := []MatchedRecord{
		{UID: "uid-3", Row: refstore.ReferenceAddress{Class: sql.NullString{String: "R", Valid: true}}},
	}
	ops := WriteMatched(records)
	require.Len(t, ops, 1)
	_, hasLocation := ops[0].Set["location"]
	assert.False(t, hasLocation)
}

type stubPostcodeClient struct {
	results map[string]postcode.Result
	calls   int
}

func (s *stubPostcodeClient) Lookup(ctx context.Context, postcodes []string) (map[string]postcode.Result, error) {
	s.calls++
	out := map[string]postcode.Result{}
	for _, pc := range postcodes {
		if r, ok := s.results[postcode.NormalizeKey(pc)]; ok {
			out[postcode.NormalizeKey(pc)] = r
		}
	}
	return out, nil
}

func TestGeocodeUnmatchedUsesCacheBeforeQuerying(t *testing.T) {
	cache, err := postcode.LoadCache(t.TempDir() + "/cache.json")
	require.NoError(t, err)
	cache.Put("E14 7DG", postcode.Result{Latitude: 51.5, Longitude: -0.01, Found: true})

	client := &stubPostcodeClient{results: map[string]postcode.Result{}}
	records := []UnmatchedRecord{{UID: "uid-4", Postcode: "E14 7DG"}}

	ops, err := GeocodeUnmatched(context.Background(), client, cache, records, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, client.calls)
	require.Len(t, ops, 1)
	assert.Equal(t, "uid-4", ops[0].UID)
}

func TestGeocodeUnmatchedQueriesMissingPostcodes(t *testing.T) {
	cache, err := postcode.LoadCache(t.TempDir() + "/cache.json")
	require.NoError(t, err)

	client := &stubPostcodeClient{results: map[string]postcode.Result{
		"E147DG": {Latitude: 51.5, Longitude: -0.01, Found: true},
	}}
	records := []UnmatchedRecord{{UID: "uid-5", Postcode: "E14 7DG"}}

	ops, err := GeocodeUnmatched(context.Background(), client, cache, records, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls)
	require.Len(t, ops, 1)
	assert.Equal(t, "uid-5", ops[0].UID)
}

func TestGeocodeUnmatchedSkipsUnresolvedPostcodes(t *testing.T) {
	cache, err := postcode.LoadCache(t.TempDir() + "/cache.json")
	require.NoError(t, err)

	client := &stubPostcodeClient{results: map[string]postcode.Result{}}
	records := []UnmatchedRecord{{UID: "uid-6", Postcode: "ZZ99 9ZZ"}}

	ops, err := GeocodeUnmatched(context.Background(), client, cache, records, nil)
	require.NoError(t, err)
	assert.Empty(t, ops)
}
