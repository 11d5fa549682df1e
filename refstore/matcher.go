package refstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// Match tiers, in priority order, per SPEC_FULL.md §4.H.
const (
	PriorityExactNumber = 1
	PriorityExactName   = 2
	PriorityFuzzyNumber = 3
	PriorityFuzzyName   = 4
)

// uprnBatchSize and postcodeBatchSize mirror match_addresses.py's
// execute_values(page_size=...) tuning: 1,000 UPRNs per temp-table insert,
// 5,000 tuples for the postcode/city tiers.
const (
	uprnBatchSize     = 1000
	postcodeBatchSize = 5000
)

// MatchCandidate is one address to resolve against the reference store,
// already parsed into components by addressparser.
type MatchCandidate struct {
	UID             string
	InputUPRN       *int64
	HouseNumber     string
	Road            string
	Postcode        string
	City            string
	OriginalAddress string
}

// MatchResult is a successful resolution: the matched reference row plus
// bookkeeping carried through from the input, per spec.md §3's MatchResult
// type.
type MatchResult struct {
	UID             string
	OriginalAddress string
	InputUPRN       *int64
	Priority        int
	Row             ReferenceAddress
}

// NotFoundResult mirrors not_found.csv's fixed 5-column schema
// (spec.md §6).
type NotFoundResult struct {
	UID         string
	APDOriginal string
	APD         string
	PC          string
	UPRN        *int64
}

var baseNumberRe = regexp.MustCompile(`^(\d+)`)

// NormalizeAddress implements SPEC_FULL.md §4.H's address normalization:
// if the address contains more than one comma, everything before the first
// comma is dropped (this strips flat-number prefixes that otherwise
// confuse the parser). Grounded on match_addresses.py::normalise_address.
func NormalizeAddress(address string) string {
	if strings.Count(address, ",") > 1 {
		idx := strings.Index(address, ",")
		return strings.TrimSpace(address[idx+1:])
	}
	return address
}

// NormalizeHouseNumber keeps only the left side of a ranged house number
// ("153-157" -> "153"), trimmed. Grounded on
// match_addresses.py::normalise_house_number.
func NormalizeHouseNumber(houseNumber string) string {
	if idx := strings.Index(houseNumber, "-"); idx >= 0 {
		return strings.TrimSpace(houseNumber[:idx])
	}
	return strings.TrimSpace(houseNumber)
}

// ExtractBaseNumber extracts the leading digit run from a house number for
// the fuzzy tiers ("85A" -> "85", "153-157" -> "153"). Grounded on
// match_addresses.py::extract_base_number.
func ExtractBaseNumber(houseNumber string) string {
	if idx := strings.Index(houseNumber, "-"); idx >= 0 {
		houseNumber = houseNumber[:idx]
	}
	m := baseNumberRe.FindStringSubmatch(houseNumber)
	if m == nil {
		return ""
	}
	return m[1]
}

// Match performs the tiered batch lookup described in SPEC_FULL.md §4.H.
// Reference-store errors roll back the open transaction and propagate;
// per-candidate parse/lookup misses are reported as NotFoundResult, never
// as an error.
func Match(ctx context.Context, db *sql.DB, batch []MatchCandidate) (found []MatchResult, notFound []NotFoundResult, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin match transaction: %w", err)
	}
	defer tx.Rollback()

	remaining := make([]MatchCandidate, 0, len(batch))
	for _, c := range batch {
		c.HouseNumber = NormalizeHouseNumber(c.HouseNumber)
		c.OriginalAddress = NormalizeAddress(c.OriginalAddress)

		if c.InputUPRN != nil {
			remaining = append(remaining, c)
			continue
		}
		if c.HouseNumber == "" || c.Road == "" {
			notFound = append(notFound, toNotFound(c))
			continue
		}
		remaining = append(remaining, c)
	}

	// Tier 1: UPRN exact.
	var uprnCandidates []MatchCandidate
	var rest []MatchCandidate
	for _, c := range remaining {
		if c.InputUPRN != nil {
			uprnCandidates = append(uprnCandidates, c)
		} else {
			rest = append(rest, c)
		}
	}

	uprnFound, uprnMisses, err := matchByUPRN(ctx, tx, uprnCandidates)
	if err != nil {
		return nil, nil, err
	}
	found = append(found, uprnFound...)
	rest = append(rest, uprnMisses...)

	// Tier 2-5: split postcode-bearing vs. town-bearing vs. neither.
	var postcodeBearing, townBearing []MatchCandidate
	for _, c := range rest {
		switch {
		case c.Postcode != "":
			postcodeBearing = append(postcodeBearing, c)
		case c.City != "":
			townBearing = append(townBearing, c)
		default:
			notFound = append(notFound, toNotFound(c))
		}
	}

	pcFound, pcMisses, err := matchByColumn(ctx, tx, postcodeBearing, "postcode", func(c MatchCandidate) string { return c.Postcode })
	if err != nil {
		return nil, nil, err
	}
	found = append(found, pcFound...)
	for _, m := range pcMisses {
		notFound = append(notFound, toNotFound(m))
	}

	cityFound, cityMisses, err := matchByColumn(ctx, tx, townBearing, "post_town", func(c MatchCandidate) string { return c.City })
	if err != nil {
		return nil, nil, err
	}
	found = append(found, cityFound...)
	for _, m := range cityMisses {
		notFound = append(notFound, toNotFound(m))
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit match transaction: %w", err)
	}

	return found, notFound, nil
}

func toNotFound(c MatchCandidate) NotFoundResult {
	return NotFoundResult{
		UID:         c.UID,
		APDOriginal: c.OriginalAddress,
		APD:         strings.TrimSpace(c.HouseNumber + " " + c.Road),
		PC:          c.Postcode,
		UPRN:        c.InputUPRN,
	}
}

// matchByUPRN implements tier 1: join input UPRNs against ab_plus.uprn via
// a session-scoped temp table, truncated between calls. Grounded on
// match_addresses.py::_batch_lookup_by_uprn.
func matchByUPRN(ctx context.Context, tx *sql.Tx, candidates []MatchCandidate) (found []MatchResult, misses []MatchCandidate, err error) {
	if len(candidates) == 0 {
		return nil, nil, nil
	}

	if _, err := tx.ExecContext(ctx, `CREATE TEMP TABLE IF NOT EXISTS lookup_batch_uprn (uprn BIGINT) ON COMMIT DELETE ROWS`); err != nil {
		return nil, nil, fmt.Errorf("create lookup_batch_uprn: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `TRUNCATE lookup_batch_uprn`); err != nil {
		return nil, nil, fmt.Errorf("truncate lookup_batch_uprn: %w", err)
	}

	byUPRN := map[int64][]MatchCandidate{}
	uprns := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		byUPRN[*c.InputUPRN] = append(byUPRN[*c.InputUPRN], c)
		uprns = append(uprns, *c.InputUPRN)
	}
	uniqueUPRNs := dedupeInt64(uprns)

	for _, page := range chunkInt64(uniqueUPRNs, uprnBatchSize) {
		if err := bulkInsertInt64(ctx, tx, "lookup_batch_uprn", "uprn", page); err != nil {
			return nil, nil, err
		}
	}

	rows, err := tx.QueryContext(ctx, selectColumnsSQL(`
		SELECT %s FROM ab_plus ab
		JOIN lookup_batch_uprn lb ON ab.uprn = lb.uprn`))
	if err != nil {
		return nil, nil, fmt.Errorf("query lookup_batch_uprn join: %w", err)
	}
	defer rows.Close()

	matchedUPRNs := map[int64]bool{}
	for rows.Next() {
		ref, scanErr := scanReferenceAddress(rows)
		if scanErr != nil {
			return nil, nil, fmt.Errorf("scan ab_plus row: %w", scanErr)
		}
		matchedUPRNs[ref.UPRN] = true
		for _, c := range byUPRN[ref.UPRN] {
			found = append(found, MatchResult{
				UID: c.UID, OriginalAddress: c.OriginalAddress, InputUPRN: c.InputUPRN,
				Priority: PriorityExactNumber, Row: ref,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	for uprn, group := range byUPRN {
		if !matchedUPRNs[uprn] {
			misses = append(misses, group...)
		}
	}

	return found, misses, nil
}

// matchByColumn implements tiers 2-5 for either the postcode or post_town
// join column: a ranked CTE over a temp lookup table returns, per lookup
// key, the row of minimum match_priority. Grounded on
// match_addresses.py::_batch_lookup_by_postcode / _batch_lookup_by_city.
func matchByColumn(ctx context.Context, tx *sql.Tx, candidates []MatchCandidate, joinColumn string, key func(MatchCandidate) string) (found []MatchResult, misses []MatchCandidate, err error) {
	if len(candidates) == 0 {
		return nil, nil, nil
	}

	tempTable := "lookup_batch_" + joinColumn
	createStmt := fmt.Sprintf(`CREATE TEMP TABLE IF NOT EXISTS %s (
		lookup_uid TEXT, house_number TEXT, base_number TEXT, road TEXT, %s TEXT
	) ON COMMIT DELETE ROWS`, tempTable, joinColumn)
	if _, err := tx.ExecContext(ctx, createStmt); err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", tempTable, err)
	}
	if _, err := tx.ExecContext(ctx, "TRUNCATE "+tempTable); err != nil {
		return nil, nil, fmt.Errorf("truncate %s: %w", tempTable, err)
	}

	rowsToInsert := make([]genericRow, 0, len(candidates))
	byUID := map[string]MatchCandidate{}
	for _, c := range candidates {
		byUID[c.UID] = c
		rowsToInsert = append(rowsToInsert, genericRow{
			uid: c.UID, houseNumber: c.HouseNumber, baseNumber: ExtractBaseNumber(c.HouseNumber),
			road: c.Road, joinValue: key(c),
		})
	}

	for _, page := range chunkRows(rowsToInsert, postcodeBatchSize) {
		values := make([]string, 0, len(page))
		args := make([]interface{}, 0, len(page)*5)
		for i, r := range page {
			base := i * 5
			values = append(values, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4, base+5))
			args = append(args, r.uid, r.houseNumber, r.baseNumber, r.road, r.joinValue)
		}
		stmt := fmt.Sprintf("INSERT INTO %s (lookup_uid, house_number, base_number, road, %s) VALUES %s",
			tempTable, joinColumn, strings.Join(values, ","))
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return nil, nil, fmt.Errorf("insert into %s: %w", tempTable, err)
		}
	}

	query := fmt.Sprintf(`
WITH ranked AS (
	SELECT
		lb.lookup_uid,
		%s,
		CASE
			WHEN UPPER(ab.building_number) = UPPER(lb.house_number) THEN %d
			WHEN UPPER(ab.building_name) = UPPER(lb.house_number) THEN %d
			WHEN UPPER(ab.building_number) = UPPER(lb.base_number) OR UPPER(ab.building_number) LIKE UPPER(lb.base_number) || '%%%%' THEN %d
			WHEN UPPER(ab.building_name) = UPPER(lb.base_number) OR UPPER(ab.building_name) LIKE UPPER(lb.base_number) || '%%%%' THEN %d
		END AS match_priority
	FROM %s lb
	JOIN ab_plus ab
		ON UPPER(ab.thoroughfare) = UPPER(lb.road)
		AND UPPER(ab.%s) = UPPER(lb.%s)
		AND (
			UPPER(ab.building_number) = UPPER(lb.house_number)
			OR UPPER(ab.building_name) = UPPER(lb.house_number)
			OR UPPER(ab.building_number) = UPPER(lb.base_number)
			OR UPPER(ab.building_number) LIKE UPPER(lb.base_number) || '%%%%'
			OR UPPER(ab.building_name) = UPPER(lb.base_number)
			OR UPPER(ab.building_name) LIKE UPPER(lb.base_number) || '%%%%'
		)
)
SELECT DISTINCT ON (lookup_uid) lookup_uid, %s
FROM ranked
WHERE match_priority IS NOT NULL
ORDER BY lookup_uid, match_priority;`,
		refColumnsAliased(), PriorityExactNumber, PriorityExactName, PriorityFuzzyNumber, PriorityFuzzyName,
		tempTable, joinColumn, joinColumn, strings.Join(Columns[:len(Columns)-1], ", ")+", match_priority")

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("query %s match: %w", tempTable, err)
	}
	defer rows.Close()

	matchedUIDs := map[string]bool{}
	for rows.Next() {
		var uid string
		ref, priority, scanErr := scanRankedReferenceAddress(rows, &uid)
		if scanErr != nil {
			return nil, nil, fmt.Errorf("scan ranked row: %w", scanErr)
		}
		matchedUIDs[uid] = true
		c := byUID[uid]
		found = append(found, MatchResult{
			UID: c.UID, OriginalAddress: c.OriginalAddress, InputUPRN: c.InputUPRN,
			Priority: priority, Row: ref,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	for _, c := range candidates {
		if !matchedUIDs[c.UID] {
			misses = append(misses, c)
		}
	}

	return found, misses, nil
}

func dedupeInt64(in []int64) []int64 {
	seen := map[int64]bool{}
	out := make([]int64, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func chunkInt64(in []int64, size int) [][]int64 {
	var out [][]int64
	for i := 0; i < len(in); i += size {
		end := i + size
		if end > len(in) {
			end = len(in)
		}
		out = append(out, in[i:end])
	}
	return out
}

type genericRow = struct {
	uid, houseNumber, baseNumber, road, joinValue string
}

func chunkRows(in []genericRow, size int) [][]genericRow {
	var out [][]genericRow
	for i := 0; i < len(in); i += size {
		end := i + size
		if end > len(in) {
			end = len(in)
		}
		out = append(out, in[i:end])
	}
	return out
}

func bulkInsertInt64(ctx context.Context, tx *sql.Tx, table, column string, values []int64) error {
	if len(values) == 0 {
		return nil
	}
	placeholders := make([]string, len(values))
	args := make([]interface{}, len(values))
	for i, v := range values {
		placeholders[i] = fmt.Sprintf("($%d)", i+1)
		args[i] = v
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, column, strings.Join(placeholders, ","))
	_, err := tx.ExecContext(ctx, stmt, args...)
	return err
}

func selectColumnsSQL(template string) string {
	return fmt.Sprintf(template, refColumnsAliased())
}

func refColumnsAliased() string {
	cols := make([]string, len(Columns)-1) // drop geom, matched rows don't need to round-trip geometry through Go scanning
	for i, c := range Columns[:len(Columns)-1] {
		cols[i] = "ab." + c
	}
	return strings.Join(cols, ", ")
}

func scanReferenceAddress(rows *sql.Rows) (ReferenceAddress, error) {
	var ref ReferenceAddress
	var toid sql.NullString
	err := rows.Scan(
		&ref.UPRN, &toid, &ref.UDPRN, &ref.OrganisationName, &ref.DepartmentName,
		new(sql.NullString), &ref.SubBuildingName, &ref.BuildingName, &ref.BuildingNumber,
		&ref.DependentThoroughfare, &ref.Thoroughfare, &ref.PostTown,
		&ref.DoubleDependentLocality, &ref.DependentLocality, &ref.Postcode, &ref.PostcodeType,
		&ref.XCoordinate, &ref.YCoordinate, &ref.Latitude, &ref.Longitude, &ref.RPC, &ref.Country,
		&ref.ChangeType, &ref.LAStartDate, &ref.RMStartDate, &ref.LastUpdateDate, &ref.Class,
	)
	return ref, err
}

func scanRankedReferenceAddress(rows *sql.Rows, uid *string) (ReferenceAddress, int, error) {
	var ref ReferenceAddress
	var toid sql.NullString
	var priority int
	err := rows.Scan(
		uid,
		&ref.UPRN, &toid, &ref.UDPRN, &ref.OrganisationName, &ref.DepartmentName,
		new(sql.NullString), &ref.SubBuildingName, &ref.BuildingName, &ref.BuildingNumber,
		&ref.DependentThoroughfare, &ref.Thoroughfare, &ref.PostTown,
		&ref.DoubleDependentLocality, &ref.DependentLocality, &ref.Postcode, &ref.PostcodeType,
		&ref.XCoordinate, &ref.YCoordinate, &ref.Latitude, &ref.Longitude, &ref.RPC, &ref.Country,
		&ref.ChangeType, &ref.LAStartDate, &ref.RMStartDate, &ref.LastUpdateDate, &ref.Class,
		&priority,
	)
	return ref, priority, err
}

// PostProcessDuplicateUIDs implements §4.H's "duplicate UID absorption":
// when the same uid appears in both found and notFound (different source
// documents for the same property gave different address strings), the
// not-found entry is reattached by copying the matched row and substituting
// the unmatched address into its original-address field. Grounded on
// match_addresses.py::post_process_duplicate_uids.
func PostProcessDuplicateUIDs(found []MatchResult, notFound []NotFoundResult) (movedToFound []MatchResult, remainingNotFound []NotFoundResult) {
	byUID := map[string]MatchResult{}
	for _, f := range found {
		if _, exists := byUID[f.UID]; !exists {
			byUID[f.UID] = f
		}
	}

	for _, nf := range notFound {
		if match, ok := byUID[nf.UID]; ok {
			moved := match
			moved.OriginalAddress = nf.APDOriginal
			movedToFound = append(movedToFound, moved)
			continue
		}
		remainingNotFound = append(remainingNotFound, nf)
	}

	return movedToFound, remainingNotFound
}
