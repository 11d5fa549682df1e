// Package driver implements the batch processing loop (component J) that
// drives the regex and neural extraction phases over the document store:
// resumable paging, batch flush thresholds, checkpoint persistence, and
// graceful cancellation. Grounded on
// original_source/src/main_regex_extractor.py::process_all_records and
// main_t5_extractor.py::process_t5_records's cursor/batch/flush/stats
// structure, combined with the teacher's cmd/reports/main.go
// signal.NotifyContext cancellation idiom.
package driver

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/theodi/lease-data-foundation/dateutil"
	"github.com/theodi/lease-data-foundation/docstore"
	"github.com/theodi/lease-data-foundation/leaseterm"
	"github.com/theodi/lease-data-foundation/neural"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BatchSize, T5BatchSize and DBBatchSize are the default flush thresholds
// named in SPEC_FULL.md §4.J; callers may override via config.Config.
const (
	BatchSize   = 1000
	T5BatchSize = 32
	DBBatchSize = 500
)

// validationToleranceDays matches lease_term_validator.py's tolerance_days
// default and neural.Extractor's own default, so the regex phase's validity
// check is not stricter than the neural phase's for the same tenure
// arithmetic.
const validationToleranceDays = 10

// Stats tallies one phase's run, mirroring process_all_records' stats dict.
type Stats struct {
	Processed int
	Valid     int
	Invalid   int
	Errors    int
}

func (s Stats) String() string {
	rate := 0.0
	if s.Processed > 0 {
		rate = 100 * float64(s.Valid) / float64(s.Processed)
	}
	return fmt.Sprintf("processed=%d valid=%d (%.1f%%) invalid=%d errors=%d", s.Processed, s.Valid, rate, s.Invalid, s.Errors)
}

// RunRegexPhase streams every document matching docstore.RegexPhaseFilter
// through the regex extraction cascade, flushing bulk updates every
// batchSize documents and rewriting the checkpoint after each flush.
// Grounded on main_regex_extractor.py::process_record / process_all_records.
func RunRegexPhase(ctx context.Context, store docstore.Store, checkpoint Checkpoint, batchSize int) (Stats, error) {
	var stats Stats
	var pending []docstore.WriteOp
	var lastID interface{}

	lastSaved, err := checkpoint.Load()
	if err != nil {
		return stats, fmt.Errorf("load checkpoint: %w", err)
	}
	if lastSaved != "" {
		lastID = resumeID(lastSaved)
	}

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if _, _, err := store.BulkWrite(ctx, pending); err != nil {
			return err
		}
		pending = pending[:0]
		if lastID != nil {
			if err := checkpoint.Save(checkpointID(lastID)); err != nil {
				log.Printf("checkpoint save failed: %v", err)
			}
		}
		return nil
	}

	err = store.IterateFiltered(ctx, docstore.RegexPhaseFilter(), lastID, batchSize, func(doc docstore.Document) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		op, valid := regexExtractOp(doc)
		pending = append(pending, op)
		stats.Processed++
		if valid {
			stats.Valid++
		} else {
			stats.Invalid++
		}
		lastID = doc.ID

		if len(pending) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		stats.Errors++
		return stats, fmt.Errorf("regex phase: %w", err)
	}

	if flushErr := flush(); flushErr != nil {
		return stats, fmt.Errorf("regex phase final flush: %w", flushErr)
	}

	if err := checkpoint.Delete(); err != nil {
		log.Printf("checkpoint delete failed: %v", err)
	}

	return stats, nil
}

func regexExtractOp(doc docstore.Document) (docstore.WriteOp, bool) {
	if doc.Term == "" {
		return docstore.WriteOp{
			UID: doc.UID,
			Set: bson.M{"regex_is_valid": false, "regex_parse_error": "No term field found"},
		}, false
	}

	var dol *time.Time
	if doc.DOL != nil {
		if parsed, ok := dateutil.ParseDOL(*doc.DOL); ok {
			dol = &parsed
		}
	}

	term, ok := leaseterm.Extract(doc.Term, dol)
	if !ok {
		return docstore.WriteOp{
			UID: doc.UID,
			Set: bson.M{"regex_is_valid": false, "regex_parse_error": "Failed to parse term"},
		}, false
	}

	if !leaseterm.IsValid(term, time.Now(), validationToleranceDays) {
		return docstore.WriteOp{
			UID: doc.UID,
			Set: bson.M{"regex_is_valid": false, "regex_parse_error": "Validation failed"},
		}, false
	}

	return docstore.WriteOp{
		UID: doc.UID,
		Set: bson.M{
			"regex_is_valid": true,
			"start_date":     term.StartDate,
			"expiry_date":    term.ExpiryDate,
			"tenure_years":   term.TenureYears,
		},
	}, true
}

// RunNeuralPhase streams every document matching docstore.NeuralPhaseFilter
// through the neural fallback extractor in batches of batchSize, flushing
// to the document store every dbBatchSize extracted results. Grounded on
// main_t5_extractor.py::process_t5_records's record-batch-then-db-batch
// double buffering (T5_BATCH_SIZE for model forward passes, a larger cursor
// batch_size to keep the pipeline full).
func RunNeuralPhase(ctx context.Context, store docstore.Store, extractor *neural.Extractor, checkpoint Checkpoint, batchSize, dbBatchSize int) (Stats, error) {
	var stats Stats
	var recordBatch []neural.Record
	var docBatch []docstore.Document
	var pending []docstore.WriteOp
	var lastID interface{}

	lastSaved, err := checkpoint.Load()
	if err != nil {
		return stats, fmt.Errorf("load checkpoint: %w", err)
	}
	if lastSaved != "" {
		lastID = resumeID(lastSaved)
	}

	flushWrites := func() error {
		if len(pending) == 0 {
			return nil
		}
		if _, _, err := store.BulkWrite(ctx, pending); err != nil {
			return err
		}
		pending = pending[:0]
		if lastID != nil {
			if err := checkpoint.Save(checkpointID(lastID)); err != nil {
				log.Printf("checkpoint save failed: %v", err)
			}
		}
		return nil
	}

	runModel := func() error {
		if len(recordBatch) == 0 {
			return nil
		}
		results := extractor.ExtractBatch(ctx, recordBatch)
		for i, r := range results {
			uid := docBatch[i].UID
			stats.Processed++
			if r.Error != "" {
				stats.Errors++
				pending = append(pending, docstore.WriteOp{UID: uid, Set: bson.M{"t5_is_valid": false, "t5_parse_error": r.Error}})
				continue
			}
			if !r.Valid {
				stats.Invalid++
				pending = append(pending, docstore.WriteOp{UID: uid, Set: bson.M{"t5_is_valid": false}})
				continue
			}
			stats.Valid++
			pending = append(pending, docstore.WriteOp{
				UID: uid,
				Set: bson.M{
					"t5_is_valid":  true,
					"start_date":   r.Term.StartDate,
					"expiry_date":  r.Term.ExpiryDate,
					"tenure_years": r.Term.TenureYears,
				},
			})
		}
		recordBatch = recordBatch[:0]
		docBatch = docBatch[:0]

		if len(pending) >= dbBatchSize {
			return flushWrites()
		}
		return nil
	}

	err = store.IterateFiltered(ctx, docstore.NeuralPhaseFilter(), lastID, batchSize*4, func(doc docstore.Document) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		recordBatch = append(recordBatch, neural.Record{UID: doc.UID, Term: doc.Term, DOL: doc.DOL})
		docBatch = append(docBatch, doc)
		lastID = doc.ID

		if len(recordBatch) >= batchSize {
			return runModel()
		}
		return nil
	})
	if err != nil {
		stats.Errors++
		return stats, fmt.Errorf("neural phase: %w", err)
	}

	if modelErr := runModel(); modelErr != nil {
		return stats, fmt.Errorf("neural phase final model pass: %w", modelErr)
	}
	if flushErr := flushWrites(); flushErr != nil {
		return stats, fmt.Errorf("neural phase final flush: %w", flushErr)
	}

	if err := checkpoint.Delete(); err != nil {
		log.Printf("checkpoint delete failed: %v", err)
	}

	return stats, nil
}

// Checkpoint is the resume-token boundary the driver depends on, satisfied
// by progress.Token. Delete is called once a phase sweeps through to
// completion with no error, per spec.md §3's "deleted on clean completion":
// there is no longer a meaningful resume point until the next document
// arrives.
type Checkpoint interface {
	Load() (string, error)
	Save(id string) error
	Delete() error
}

// resumeID converts a saved checkpoint string back into the document _id
// type Mongo expects for a "$gt" comparison. Lease documents use the
// default ObjectID _id, so a hex-decodable checkpoint is restored as an
// ObjectID; anything else is passed through as a raw string for collections
// seeded with a different _id scheme.
func resumeID(saved string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(saved); err == nil {
		return oid
	}
	return saved
}

// checkpointID is the inverse of resumeID: an ObjectID is saved as its hex
// string, anything else via fmt.Sprint.
func checkpointID(id interface{}) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(id)
}

// WaitForStoresReady checks both stores (EnsureGeoIndex on the document
// store, PingContext on the reference store) before the processing loop starts,
// logging and retrying transient connection failures rather than failing
// fast, matching the teacher's WaitForTablesReady (cmd/reports) treatment
// of its own upstream-table dependency during container startup.
func WaitForStoresReady(ctx context.Context, doc docstore.Store, ref *sql.DB, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		docErr := doc.EnsureGeoIndex(ctx)
		refErr := ref.PingContext(ctx)
		if docErr == nil && refErr == nil {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("stores not ready after %s: docstore error=%v, refstore error=%v", timeout, docErr, refErr)
		}

		log.Printf("waiting for stores to become ready (docstore error=%v, refstore error=%v)", docErr, refErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
