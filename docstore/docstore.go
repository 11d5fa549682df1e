// Package docstore wraps the document store (MongoDB) the enrichment
// pipeline writes leases into. It is grounded on
// original_source/src/utils/mongo_client.py's connection/collection wrapper
// shape and original_source/src/enricher/update_mongo_from_csv.py's bulk
// write and 2dsphere index conventions, realized with the real
// go.mongodb.org/mongo-driver rather than a stand-in, since a working Mongo
// client is available in this module's dependency pack.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LocationField is the GeoJSON field enrich writes lat/lon points into,
// matching update_mongo_from_csv.py's LOCATION_FIELD.
const LocationField = "location"

// WriteOp is one pending mutation against the lease collection: either a
// field update (residential, matched) or a full delete (non-residential).
type WriteOp struct {
	UID    string
	Delete bool
	Set    bson.M
}

// Document is a single lease record as read back from the store, keyed by
// its Mongo ObjectID for cursor pagination. Term/DOL carry the raw fields
// the extraction phases consume; RegexIsValid/T5IsValid mirror the flags
// process_record/process_all_records read and write in the Python original.
// APD/PC/UPRN are the address-matcher's inputs, named after spec.md §6's
// document shape (apd = address as parsed-descriptor, pc = postcode).
type Document struct {
	ID           interface{} `bson:"_id"`
	UID          string      `bson:"uid"`
	Term         string      `bson:"term"`
	DOL          *string     `bson:"dol,omitempty"`
	RegexIsValid *bool       `bson:"regex_is_valid,omitempty"`
	T5IsValid    *bool       `bson:"t5_is_valid,omitempty"`
	APD          string      `bson:"apd,omitempty"`
	PC           string      `bson:"pc,omitempty"`
	UPRN         *int64      `bson:"uprn,omitempty"`
}

// UnmatchedFilter selects documents that still need address matching: no
// uprn has been resolved for them yet. Grounded on
// match_addresses.py::get_unmatched_documents's query_filter.
func UnmatchedFilter() bson.M {
	return bson.M{"ab_uprn": bson.M{"$exists": false}}
}

// TermField and DOLField name the lease-term source fields, matching
// main_regex_extractor.py's TERM_FIELD/DOL_FIELD constants.
const (
	TermField = "term"
	DOLField  = "dol"
)

// RegexPhaseFilter selects documents eligible for regex extraction: not
// already regex-valid, not already T5-valid, and carrying a non-empty term.
// Matches main_regex_extractor.py::process_all_records's query_filter.
func RegexPhaseFilter() bson.M {
	return bson.M{
		"regex_is_valid": bson.M{"$ne": true},
		"t5_is_valid":    bson.M{"$ne": true},
		TermField:        bson.M{"$exists": true, "$ne": ""},
	}
}

// NeuralPhaseFilter selects documents eligible for the neural fallback
// phase: regex extraction failed, a term is present, and T5 has not already
// processed this record. Matches main_t5_extractor.py::process_t5_records's
// query_filter.
func NeuralPhaseFilter() bson.M {
	return bson.M{
		"regex_is_valid": false,
		TermField:        bson.M{"$exists": true, "$ne": ""},
		"t5_is_valid":    bson.M{"$exists": false},
	}
}

// Store is the document-store boundary the enrichment driver depends on.
type Store interface {
	BulkWrite(ctx context.Context, ops []WriteOp) (updates, deletes int, err error)
	EnsureGeoIndex(ctx context.Context) error
	IterateSince(ctx context.Context, lastID interface{}, batchSize int, fn func(Document) error) error
	IterateFiltered(ctx context.Context, filter bson.M, lastID interface{}, batchSize int, fn func(Document) error) error
	CountFiltered(ctx context.Context, filter bson.M) (int64, error)
	Close(ctx context.Context) error
}

// Mongo is the real Store implementation.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Dial connects to MongoDB and resolves the target collection, retrying the
// initial ping the way the teacher's shared.OpenDatabase retries Postgres
// connectivity on startup.
func Dial(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	const maxRetries = 10
	var pingErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		pingErr = client.Ping(ctx, nil)
		if pingErr == nil {
			break
		}
		if attempt == maxRetries {
			break
		}
		time.Sleep(5 * time.Second)
	}
	if pingErr != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb not reachable after %d attempts: %w", maxRetries, pingErr)
	}

	return &Mongo{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

// BulkWrite executes an unordered bulk write, matching
// update_mongo_from_csv.py::process_chunk's ordered=False bulk_write call:
// one operation's failure does not abort the others.
func (m *Mongo) BulkWrite(ctx context.Context, ops []WriteOp) (updates, deletes int, err error) {
	if len(ops) == 0 {
		return 0, 0, nil
	}

	models := make([]mongo.WriteModel, 0, len(ops))
	for _, op := range ops {
		filter := bson.M{"uid": op.UID}
		if op.Delete {
			models = append(models, mongo.NewDeleteOneModel().SetFilter(filter))
			deletes++
			continue
		}
		models = append(models, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(bson.M{"$set": op.Set}))
		updates++
	}

	_, err = m.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		// A partial BulkWriteException still means some operations
		// succeeded; log it but do not treat it as fatal to the caller's
		// batch loop, matching the Python original's "warning, not raise".
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) {
			log.Printf("bulk write completed with %d write errors: %v", len(bwe.WriteErrors), err)
			return updates, deletes, nil
		}
		return updates, deletes, fmt.Errorf("bulk write: %w", err)
	}
	return updates, deletes, nil
}

// EnsureGeoIndex creates the 2dsphere index on LocationField if absent,
// matching update_mongo_from_csv.py::ensure_2dsphere_index.
func (m *Mongo) EnsureGeoIndex(ctx context.Context) error {
	cursor, err := m.collection.Indexes().List(ctx)
	if err != nil {
		return fmt.Errorf("list indexes: %w", err)
	}
	defer cursor.Close(ctx)

	indexName := LocationField + "_2dsphere"
	for cursor.Next(ctx) {
		var idx bson.M
		if err := cursor.Decode(&idx); err != nil {
			return fmt.Errorf("decode index: %w", err)
		}
		if name, ok := idx["name"].(string); ok && name == indexName {
			return nil
		}
	}

	_, err = m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: LocationField, Value: "2dsphere"}},
		Options: options.Index().SetName(indexName),
	})
	if err != nil {
		return fmt.Errorf("create 2dsphere index: %w", err)
	}
	return nil
}

// IterateSince pages through the collection in ascending _id order starting
// strictly after lastID (nil means from the beginning), matching
// main_regex_extractor.py::process_all_records's no-timeout cursor plus
// BATCH_SIZE paging, generalized to resumable _id-keyed pagination since
// Go's mongo-driver has no direct no_cursor_timeout-and-resume equivalent
// that survives process restarts.
func (m *Mongo) IterateSince(ctx context.Context, lastID interface{}, batchSize int, fn func(Document) error) error {
	return m.IterateFiltered(ctx, bson.M{}, lastID, batchSize, fn)
}

// IterateFiltered pages through documents matching filter in ascending _id
// order, optionally resuming strictly after lastID. batchSize controls how
// many documents MongoDB returns per round-trip, matching main_regex_extractor.py's
// BATCH_SIZE-as-cursor-batch_size idiom.
func (m *Mongo) IterateFiltered(ctx context.Context, filter bson.M, lastID interface{}, batchSize int, fn func(Document) error) error {
	combined := bson.M{}
	for k, v := range filter {
		combined[k] = v
	}
	if lastID != nil {
		combined["_id"] = bson.M{"$gt": lastID}
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetBatchSize(int32(batchSize))
	cursor, err := m.collection.Find(ctx, combined, opts)
	if err != nil {
		return fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc Document
		if err := cursor.Decode(&doc); err != nil {
			return fmt.Errorf("decode document: %w", err)
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return cursor.Err()
}

// CountFiltered returns the number of documents matching filter, used to
// drive the progress-bar-equivalent stats the teacher logs via plain
// log.Printf instead of tqdm.
func (m *Mongo) CountFiltered(ctx context.Context, filter bson.M) (int64, error) {
	n, err := m.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
