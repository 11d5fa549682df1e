package driver

import (
	"context"
	"testing"

	"github.com/theodi/lease-data-foundation/docstore"
	"github.com/theodi/lease-data-foundation/neural"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type fakeStore struct {
	docs       []docstore.Document
	writes     [][]docstore.WriteOp
	geoIndexed bool
}

func (f *fakeStore) BulkWrite(ctx context.Context, ops []docstore.WriteOp) (int, int, error) {
	f.writes = append(f.writes, ops)
	updates, deletes := 0, 0
	for _, op := range ops {
		if op.Delete {
			deletes++
		} else {
			updates++
		}
	}
	return updates, deletes, nil
}

func (f *fakeStore) EnsureGeoIndex(ctx context.Context) error {
	f.geoIndexed = true
	return nil
}

func (f *fakeStore) IterateSince(ctx context.Context, lastID interface{}, batchSize int, fn func(docstore.Document) error) error {
	return f.IterateFiltered(ctx, bson.M{}, lastID, batchSize, fn)
}

func (f *fakeStore) IterateFiltered(ctx context.Context, filter bson.M, lastID interface{}, batchSize int, fn func(docstore.Document) error) error {
	for _, d := range f.docs {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) CountFiltered(ctx context.Context, filter bson.M) (int64, error) {
	return int64(len(f.docs)), nil
}

func (f *fakeStore) Close(ctx context.Context) error { return nil }

type fakeCheckpoint struct {
	saved   string
	deleted bool
}

func (c *fakeCheckpoint) Load() (string, error) { return c.saved, nil }
func (c *fakeCheckpoint) Save(id string) error  { c.saved = id; return nil }
func (c *fakeCheckpoint) Delete() error         { c.deleted = true; c.saved = ""; return nil }

func TestRunRegexPhaseValidTerm(t *testing.T) {
	store := &fakeStore{docs: []docstore.Document{
		{ID: "1", UID: "uid-1", Term: "a term of 99 years from 24th June 1862"},
	}}
	checkpoint := &fakeCheckpoint{}
	stats, err := RunRegexPhase(context.Background(), store, checkpoint, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Valid)
	require.Len(t, store.writes, 1)
	require.Len(t, store.writes[0], 1)
	assert.Equal(t, true, store.writes[0][0].Set["regex_is_valid"])
	assert.True(t, checkpoint.deleted, "checkpoint should be deleted on clean completion")
}

func TestRunRegexPhaseMissingTerm(t *testing.T) {
	store := &fakeStore{docs: []docstore.Document{{ID: "1", UID: "uid-1", Term: ""}}}
	stats, err := RunRegexPhase(context.Background(), store, &fakeCheckpoint{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Invalid)
	assert.Equal(t, "No term field found", store.writes[0][0].Set["regex_parse_error"])
}

func TestRunRegexPhaseUnparseableTerm(t *testing.T) {
	store := &fakeStore{docs: []docstore.Document{{ID: "1", UID: "uid-1", Term: "complete gibberish not a lease term"}}}
	stats, err := RunRegexPhase(context.Background(), store, &fakeCheckpoint{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Invalid)
	assert.Equal(t, false, store.writes[0][0].Set["regex_is_valid"])
}

type stubModelClient struct {
	outputs []string
}

func (s *stubModelClient) Generate(ctx context.Context, inputs []string) ([]string, error) {
	return s.outputs, nil
}

func TestRunNeuralPhaseFlushesResults(t *testing.T) {
	store := &fakeStore{docs: []docstore.Document{
		{ID: "1", UID: "uid-1", Term: "ninety nine years"},
	}}
	client := &stubModelClient{outputs: []string{"24/06/1862Not specified99 years"}}
	extractor := neural.NewExtractor(client)

	stats, err := RunNeuralPhase(context.Background(), store, extractor, &fakeCheckpoint{}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	require.Len(t, store.writes, 1)
	assert.Equal(t, true, store.writes[0][0].Set["t5_is_valid"])
}

func TestFakeStoreEnsureGeoIndexSucceeds(t *testing.T) {
	store := &fakeStore{}
	// WaitForStoresReady itself needs a live *sql.DB, so it is not called
	// here; only the document-store check it relies on (EnsureGeoIndex) is.
	require.NoError(t, store.EnsureGeoIndex(context.Background()))
	assert.True(t, store.geoIndexed)
}

func TestStatsString(t *testing.T) {
	s := Stats{Processed: 10, Valid: 8, Invalid: 2}
	assert.Contains(t, s.String(), "processed=10")
	assert.Contains(t, s.String(), "80.0%")
}
