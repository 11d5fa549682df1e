// Command enricher runs the document-store enrichment pass (component I):
// it reads the matcher's found_addresses.csv / not_found.csv output and
// writes the results back onto the lease documents, matching and
// deleting non-residential matches, or falling back to a postcodes.io
// geocode-only update for unmatched-but-postcoded rows. Grounded on
// original_source/src/enricher/update_mongo_from_csv.py's runnable
// __main__, which drives the same CSV-in, Mongo-bulk-write-out shape.
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/theodi/lease-data-foundation/config"
	"github.com/theodi/lease-data-foundation/docstore"
	"github.com/theodi/lease-data-foundation/enrich"
	"github.com/theodi/lease-data-foundation/postcode"
	"github.com/theodi/lease-data-foundation/refstore"
)

// bulkWriteBatchSize is spec.md §4.I's "written unordered, in batches of a
// few thousand" bulk write size.
const bulkWriteBatchSize = 2000

// foundColumns mirrors cmd/matcher's column order for found_addresses.csv;
// the two commands must stay in step since one writes what the other reads.
var foundColumns = []string{
	"uprn", "udprn", "organisation_name", "department_name", "sub_building_name",
	"building_name", "building_number", "dependent_thoroughfare", "thoroughfare",
	"post_town", "double_dependent_locality", "dependent_locality", "postcode",
	"postcode_type", "x_coordinate", "y_coordinate", "latitude", "longitude",
	"rpc", "country", "change_type", "la_start_date", "rm_start_date",
	"last_update_date", "class",
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startHTTPServer(ctx, cfg.Port, "enricher")

	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	store, err := docstore.Dial(dialCtx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	cancel()
	if err != nil {
		log.Fatalf("failed to connect to document store: %v", err)
	}
	defer store.Close(context.Background())

	if err := store.EnsureGeoIndex(ctx); err != nil {
		log.Fatalf("failed to ensure geo index: %v", err)
	}

	cache, err := postcode.LoadCache("data/postcode_cache.json")
	if err != nil {
		log.Fatalf("load postcode cache: %v", err)
	}
	client := postcode.NewHTTPClient()

	runPass := func() {
		log.Print("starting document-store enrichment pass")

		matched, unmatched, err := runEnrichment(ctx, store, client, cache)
		if err != nil {
			log.Printf("enrichment pass failed: %v", err)
		}

		if flushErr := cache.Flush(); flushErr != nil {
			log.Printf("postcode cache flush failed: %v", flushErr)
		}

		log.Printf("enrichment pass complete: matched=%d geocoded=%d", matched, unmatched)
	}

	if cfg.RunOnce {
		runPass()
		log.Print("RUN_ONCE enabled; exiting after one pass")
		return
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Print("enricher shutting down")
			return
		default:
		}

		runPass()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runEnrichment reads found_addresses.csv and not_found.csv, writes matched
// records first (they are cheaper: no external HTTP call), then geocodes
// the unmatched-but-postcoded rows, flushing each side to the document
// store in bulkWriteBatchSize chunks.
func runEnrichment(ctx context.Context, store docstore.Store, client postcode.Client, cache *postcode.Cache) (matched, geocoded int, err error) {
	matchedCount, err := processFoundCSV(ctx, "found_addresses.csv", store)
	if err != nil {
		return matchedCount, 0, err
	}

	unmatched, err := readUnmatchedCSV("not_found.csv")
	if err != nil {
		return matchedCount, 0, err
	}

	ops, geocodeErr := enrich.GeocodeUnmatched(ctx, client, cache, unmatched, nil)
	if writeErr := bulkWriteBatched(ctx, store, ops); writeErr != nil {
		return matchedCount, len(ops), writeErr
	}
	if geocodeErr != nil {
		return matchedCount, len(ops), geocodeErr
	}

	return matchedCount, len(ops), nil
}

// processFoundCSV streams found_addresses.csv, converting rows back into
// MatchedRecord batches and flushing each to the document store as it
// fills, so the whole file is never held in memory at once.
func processFoundCSV(ctx context.Context, path string, store docstore.Store) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("%s not found; skipping matched-record enrichment", path)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	index := columnIndex(header)

	var batch []enrich.MatchedRecord
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		ops := enrich.WriteMatched(batch)
		if err := bulkWriteBatched(ctx, store, ops); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, err
		}

		record, ok := parseMatchedRow(row, index)
		if !ok {
			continue
		}
		batch = append(batch, record)
		if len(batch) >= bulkWriteBatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}

	return total, nil
}

// readUnmatchedCSV reads not_found.csv in full: rows are needed together so
// GeocodeUnmatched can dedupe postcodes across the whole batch before
// calling the external lookup.
func readUnmatchedCSV(path string) ([]enrich.UnmatchedRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("%s not found; skipping geocode-only enrichment", path)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	index := columnIndex(header)
	uidCol, uidOK := index["uid"]
	pcCol, pcOK := index["pc"]
	if !uidOK || !pcOK {
		return nil, errors.New("not_found.csv missing uid or pc column")
	}

	var records []enrich.UnmatchedRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if uidCol >= len(row) || pcCol >= len(row) {
			continue
		}
		pc := row[pcCol]
		if pc == "" {
			continue
		}
		records = append(records, enrich.UnmatchedRecord{UID: row[uidCol], Postcode: pc})
	}
	return records, nil
}

func columnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	return index
}

// parseMatchedRow reconstructs one MatchedRecord from a found_addresses.csv
// row, reversing cmd/matcher's writeFoundRow column layout.
func parseMatchedRow(row []string, index map[string]int) (enrich.MatchedRecord, bool) {
	uidCol, ok := index["uid"]
	if !ok || uidCol >= len(row) {
		return enrich.MatchedRecord{}, false
	}
	uid := row[uidCol]
	if uid == "" {
		return enrich.MatchedRecord{}, false
	}

	get := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	uprn, err := strconv.ParseInt(get("uprn"), 10, 64)
	if err != nil {
		return enrich.MatchedRecord{}, false
	}

	return enrich.MatchedRecord{
		UID: uid,
		Row: refstore.ReferenceAddress{
			UPRN:                    uprn,
			UDPRN:                   parseNullInt32(get("udprn")),
			OrganisationName:        parseNullString(get("organisation_name")),
			DepartmentName:          parseNullString(get("department_name")),
			SubBuildingName:         parseNullString(get("sub_building_name")),
			BuildingName:            parseNullString(get("building_name")),
			BuildingNumber:          parseNullString(get("building_number")),
			DependentThoroughfare:   parseNullString(get("dependent_thoroughfare")),
			Thoroughfare:            parseNullString(get("thoroughfare")),
			PostTown:                parseNullString(get("post_town")),
			DoubleDependentLocality: parseNullString(get("double_dependent_locality")),
			DependentLocality:       parseNullString(get("dependent_locality")),
			Postcode:                parseNullString(get("postcode")),
			PostcodeType:            parseNullString(get("postcode_type")),
			XCoordinate:             parseNullFloat64(get("x_coordinate")),
			YCoordinate:             parseNullFloat64(get("y_coordinate")),
			Latitude:                parseNullFloat64(get("latitude")),
			Longitude:               parseNullFloat64(get("longitude")),
			RPC:                     parseNullString(get("rpc")),
			Country:                 parseNullString(get("country")),
			ChangeType:              parseNullString(get("change_type")),
			LAStartDate:             parseNullString(get("la_start_date")),
			RMStartDate:             parseNullString(get("rm_start_date")),
			LastUpdateDate:          parseNullString(get("last_update_date")),
			Class:                   parseNullString(get("class")),
		},
	}, true
}

func parseNullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func parseNullInt32(v string) sql.NullInt32 {
	if v == "" {
		return sql.NullInt32{}
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(n), Valid: true}
}

func parseNullFloat64(v string) sql.NullFloat64 {
	if v == "" {
		return sql.NullFloat64{}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

// bulkWriteBatched flushes ops to store in chunks of bulkWriteBatchSize,
// per spec.md §4.I's documented bulk write batch size.
func bulkWriteBatched(ctx context.Context, store docstore.Store, ops []docstore.WriteOp) error {
	for start := 0; start < len(ops); start += bulkWriteBatchSize {
		end := start + bulkWriteBatchSize
		if end > len(ops) {
			end = len(ops)
		}
		if _, _, err := store.BulkWrite(ctx, ops[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func startHTTPServer(ctx context.Context, port, name string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("%s http server shutdown error: %v", name, err)
		}
	}()

	go func() {
		log.Printf("%s HTTP server listening on :%s", name, port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("%s http server failed: %v", name, err)
		}
	}()
}
