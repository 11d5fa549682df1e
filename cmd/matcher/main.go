// Command matcher runs the tiered address matcher (SPEC_FULL.md §4.H) over
// every document that has not yet had a UPRN resolved, and writes its
// results to found_addresses.csv / not_found.csv per spec.md §6's documented
// schemas. Progress is resumable via a plain-text uid token, matching
// match_addresses.py's matching_progress.txt.
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/theodi/lease-data-foundation/addressparser"
	"github.com/theodi/lease-data-foundation/config"
	"github.com/theodi/lease-data-foundation/docstore"
	"github.com/theodi/lease-data-foundation/progress"
	"github.com/theodi/lease-data-foundation/refstore"
	"github.com/theodi/lease-data-foundation/shared"

	_ "github.com/lib/pq"
)

const matchBatchSize = 1000

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
	ctx := context.Background()

	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	store, err := docstore.Dial(dialCtx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	cancel()
	if err != nil {
		log.Fatalf("failed to connect to document store: %v", err)
	}
	defer store.Close(ctx)

	db, err := shared.OpenDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open reference store: %v", err)
	}
	defer db.Close()

	foundFile, err := openCSVAppend("found_addresses.csv")
	if err != nil {
		log.Fatalf("open found_addresses.csv: %v", err)
	}
	defer foundFile.Close()
	notFoundFile, err := openCSVAppend("not_found.csv")
	if err != nil {
		log.Fatalf("open not_found.csv: %v", err)
	}
	defer notFoundFile.Close()

	foundWriter := csv.NewWriter(foundFile)
	notFoundWriter := csv.NewWriter(notFoundFile)
	defer foundWriter.Flush()
	defer notFoundWriter.Flush()

	if err := writeHeaderIfEmpty(foundFile, foundWriter, append([]string{"uid", "original_apd", "uprn"}, foundColumns...)); err != nil {
		log.Fatalf("write found_addresses.csv header: %v", err)
	}
	if err := writeHeaderIfEmpty(notFoundFile, notFoundWriter, []string{"uid", "apd_original", "apd", "pc", "uprn"}); err != nil {
		log.Fatalf("write not_found.csv header: %v", err)
	}

	parser := addressparser.NewRuleBasedParser()
	checkpoint := progress.Open("matching_progress.txt")

	lastSaved, err := checkpoint.Load()
	if err != nil {
		log.Fatalf("load progress token: %v", err)
	}
	var lastID interface{}
	if lastSaved != "" {
		lastID = lastSaved
	}

	var batch []refstore.MatchCandidate
	var lastUID string
	var totalMatched, totalUnmatched int

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		found, notFound, err := refstore.Match(ctx, db, batch)
		if err != nil {
			return err
		}
		moved, remaining := refstore.PostProcessDuplicateUIDs(found, notFound)
		found = append(found, moved...)
		notFound = remaining

		for _, f := range found {
			if err := writeFoundRow(foundWriter, f); err != nil {
				return err
			}
			totalMatched++
		}
		for _, nf := range notFound {
			if err := writeNotFoundRow(notFoundWriter, nf); err != nil {
				return err
			}
			totalUnmatched++
		}
		foundWriter.Flush()
		notFoundWriter.Flush()
		batch = batch[:0]

		if lastUID != "" {
			if err := checkpoint.Save(lastUID); err != nil {
				log.Printf("checkpoint save failed: %v", err)
			}
		}
		return nil
	}

	err = store.IterateFiltered(ctx, docstore.UnmatchedFilter(), lastID, 5000, func(doc docstore.Document) error {
		lastID = doc.ID
		lastUID = doc.UID

		if doc.APD == "" {
			return nil
		}

		components := parser.Parse(refstore.NormalizeAddress(doc.APD))
		batch = append(batch, refstore.MatchCandidate{
			UID:             doc.UID,
			InputUPRN:       doc.UPRN,
			HouseNumber:     components.HouseNumber,
			Road:            components.Road,
			Postcode:        doc.PC,
			City:            components.City,
			OriginalAddress: doc.APD,
		})

		if len(batch) >= matchBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		log.Fatalf("matcher loop failed: %v", err)
	}
	if err := flush(); err != nil {
		log.Fatalf("final match flush failed: %v", err)
	}

	log.Printf("matcher complete: matched=%d unmatched=%d", totalMatched, totalUnmatched)
}

func openCSVAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
}

func writeHeaderIfEmpty(f *os.File, w *csv.Writer, header []string) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() > 0 {
		return nil
	}
	if err := w.Write(header); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func writeFoundRow(w *csv.Writer, f refstore.MatchResult) error {
	row := []string{f.UID, f.OriginalAddress, uprnString(f.InputUPRN)}
	r := f.Row
	row = append(row,
		strconv.FormatInt(r.UPRN, 10),
		nullString(r.UDPRN),
		nullStr(r.OrganisationName),
		nullStr(r.DepartmentName),
		nullStr(r.SubBuildingName),
		nullStr(r.BuildingName),
		nullStr(r.BuildingNumber),
		nullStr(r.DependentThoroughfare),
		nullStr(r.Thoroughfare),
		nullStr(r.PostTown),
		nullStr(r.DoubleDependentLocality),
		nullStr(r.DependentLocality),
		nullStr(r.Postcode),
		nullStr(r.PostcodeType),
		nullFloat(r.XCoordinate),
		nullFloat(r.YCoordinate),
		nullFloat(r.Latitude),
		nullFloat(r.Longitude),
		nullStr(r.RPC),
		nullStr(r.Country),
		nullStr(r.ChangeType),
		nullStr(r.LAStartDate),
		nullStr(r.RMStartDate),
		nullStr(r.LastUpdateDate),
		nullStr(r.Class),
	)
	return w.Write(row)
}

func writeNotFoundRow(w *csv.Writer, nf refstore.NotFoundResult) error {
	return w.Write([]string{nf.UID, nf.APDOriginal, nf.APD, nf.PC, uprnString(nf.UPRN)})
}

func uprnString(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func nullStr(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

func nullString(v sql.NullInt32) string {
	if !v.Valid {
		return ""
	}
	return strconv.Itoa(int(v.Int32))
}

func nullFloat(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}
