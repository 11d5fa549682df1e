package refstore

import (
	"context"
	"database/sql"
	"fmt"
)

// Denormalize runs the one-time bulk SQL expansion of ranged building
// numbers and "ST." thoroughfare variants described in SPEC_FULL.md §4.G.
// It is safe to re-run: both expansions carry a WHERE NOT EXISTS guard
// (SPEC_FULL.md §9, resolving the Python original's open question about
// duplicate accumulation on repeated runs).
func Denormalize(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin denormalize transaction: %w", err)
	}
	defer tx.Rollback()

	if err := expandBuildingNumberRanges(ctx, tx); err != nil {
		return fmt.Errorf("expand building number ranges: %w", err)
	}

	if err := expandThoroughfareSTVariants(ctx, tx); err != nil {
		return fmt.Errorf("expand thoroughfare ST. variants: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit denormalize transaction: %w", err)
	}

	// VACUUM ANALYZE cannot run inside a transaction block; issue it
	// directly on the pool, matching the teacher's bare db.Exec DDL calls.
	if _, err := db.ExecContext(ctx, "VACUUM ANALYZE ab_plus"); err != nil {
		return fmt.Errorf("vacuum analyze ab_plus: %w", err)
	}

	return nil
}

// expandBuildingNumberRanges inserts one row per integer in a
// "building_name ~ '^[0-9]+-[0-9]+$'" range, building_number set to the
// expanded value and building_name cleared, per SPEC_FULL.md §4.G. The
// synthetic UPRN sequence starts one below the minimum existing negative
// UPRN (or at -1 if none exist), assigned via ROW_NUMBER() over the
// expansion, matching post_process_denormalizer.py::expand_building_number_ranges.
func expandBuildingNumberRanges(ctx context.Context, tx *sql.Tx) error {
	const stmt = `
WITH synthetic_start AS (
	SELECT COALESCE(MIN(uprn), 0) - 1 AS start_uprn FROM ab_plus WHERE uprn < 0
),
expanded AS (
	SELECT
		ab.*,
		gs.expanded_number,
		ROW_NUMBER() OVER () AS rn
	FROM ab_plus ab
	CROSS JOIN LATERAL generate_series(
		SPLIT_PART(ab.building_name, '-', 1)::INTEGER,
		SPLIT_PART(ab.building_name, '-', 2)::INTEGER
	) AS gs(expanded_number)
	WHERE ab.building_name ~ '^[0-9]+-[0-9]+$'
	AND NOT EXISTS (
		SELECT 1 FROM ab_plus dup
		WHERE dup.uprn = ab.uprn
		AND dup.building_number = gs.expanded_number::TEXT
		AND dup.building_name IS NULL
	)
)
INSERT INTO ab_plus (
	uprn, os_address_toid, udprn, organisation_name, department_name,
	po_box_number, sub_building_name, building_name, building_number,
	dependent_thoroughfare, thoroughfare, post_town,
	double_dependent_locality, dependent_locality, postcode, postcode_type,
	x_coordinate, y_coordinate, latitude, longitude, rpc, country,
	change_type, la_start_date, rm_start_date, last_update_date, class, geom
)
SELECT
	(SELECT start_uprn FROM synthetic_start) - expanded.rn + 1,
	expanded.os_address_toid, expanded.udprn, expanded.organisation_name,
	expanded.department_name, expanded.po_box_number, expanded.sub_building_name,
	NULL, expanded.expanded_number::TEXT, expanded.dependent_thoroughfare,
	expanded.thoroughfare, expanded.post_town, expanded.double_dependent_locality,
	expanded.dependent_locality, expanded.postcode, expanded.postcode_type,
	expanded.x_coordinate, expanded.y_coordinate, expanded.latitude,
	expanded.longitude, expanded.rpc, expanded.country, expanded.change_type,
	expanded.la_start_date, expanded.rm_start_date, expanded.last_update_date,
	expanded.class, expanded.geom
FROM expanded;`

	_, err := tx.ExecContext(ctx, stmt)
	return err
}

// expandThoroughfareSTVariants inserts one row per original (positive-UPRN)
// row whose thoroughfare contains "ST.", with "ST." replaced by "ST" and
// every other field (including building_name, unlike the range-expansion
// case) copied unchanged. Matches
// post_process_denormalizer.py::expand_thoroughfare_st_variants.
func expandThoroughfareSTVariants(ctx context.Context, tx *sql.Tx) error {
	const stmt = `
WITH synthetic_start AS (
	SELECT COALESCE(MIN(uprn), 0) - 1 AS start_uprn FROM ab_plus WHERE uprn < 0
),
candidates AS (
	SELECT ab.*, ROW_NUMBER() OVER () AS rn
	FROM ab_plus ab
	WHERE ab.thoroughfare LIKE '%ST.%' AND ab.uprn > 0
	AND NOT EXISTS (
		SELECT 1 FROM ab_plus dup
		WHERE dup.uprn = ab.uprn
		AND dup.thoroughfare = REPLACE(ab.thoroughfare, 'ST.', 'ST')
	)
)
INSERT INTO ab_plus (
	uprn, os_address_toid, udprn, organisation_name, department_name,
	po_box_number, sub_building_name, building_name, building_number,
	dependent_thoroughfare, thoroughfare, post_town,
	double_dependent_locality, dependent_locality, postcode, postcode_type,
	x_coordinate, y_coordinate, latitude, longitude, rpc, country,
	change_type, la_start_date, rm_start_date, last_update_date, class, geom
)
SELECT
	(SELECT start_uprn FROM synthetic_start) - candidates.rn + 1,
	candidates.os_address_toid, candidates.udprn, candidates.organisation_name,
	candidates.department_name, candidates.po_box_number, candidates.sub_building_name,
	candidates.building_name, candidates.building_number, candidates.dependent_thoroughfare,
	REPLACE(candidates.thoroughfare, 'ST.', 'ST'), candidates.post_town,
	candidates.double_dependent_locality, candidates.dependent_locality,
	candidates.postcode, candidates.postcode_type, candidates.x_coordinate,
	candidates.y_coordinate, candidates.latitude, candidates.longitude,
	candidates.rpc, candidates.country, candidates.change_type,
	candidates.la_start_date, candidates.rm_start_date, candidates.last_update_date,
	candidates.class, candidates.geom
FROM candidates;`

	_, err := tx.ExecContext(ctx, stmt)
	return err
}
