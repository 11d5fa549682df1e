// Package refstore implements the PostGIS-capable relational reference
// store: its schema bootstrap, the one-time denormalization pass (§4.G),
// and the tiered address matcher (§4.H). It is grounded on the teacher's
// shared.OpenDatabase/EnsurePostGISExtension conventions and on
// original_source/src/addressbase/{post_process_denormalizer,match_addresses}.py.
package refstore

import (
	"context"
	"database/sql"
	"fmt"
)

// ReferenceAddress mirrors one row of ab_plus, the national address
// reference table, per spec.md §6's documented column set.
type ReferenceAddress struct {
	ID                      int64
	UPRN                    int64
	UDPRN                   sql.NullInt32
	OrganisationName        sql.NullString
	DepartmentName          sql.NullString
	SubBuildingName         sql.NullString
	BuildingName            sql.NullString
	BuildingNumber          sql.NullString
	DependentThoroughfare   sql.NullString
	Thoroughfare            sql.NullString
	PostTown                sql.NullString
	DoubleDependentLocality sql.NullString
	DependentLocality       sql.NullString
	Postcode                sql.NullString
	PostcodeType            sql.NullString
	XCoordinate             sql.NullFloat64
	YCoordinate             sql.NullFloat64
	Latitude                sql.NullFloat64
	Longitude               sql.NullFloat64
	RPC                     sql.NullString
	Country                 sql.NullString
	ChangeType              sql.NullString
	LAStartDate             sql.NullString
	RMStartDate             sql.NullString
	LastUpdateDate          sql.NullString
	Class                   sql.NullString
}

// Columns is the full ab_plus column list, in the order the denormalizer's
// INSERT ... SELECT statements rely on. Grounded on
// post_process_denormalizer.py's column list.
var Columns = []string{
	"uprn", "os_address_toid", "udprn", "organisation_name", "department_name",
	"po_box_number", "sub_building_name", "building_name", "building_number",
	"dependent_thoroughfare", "thoroughfare", "post_town",
	"double_dependent_locality", "dependent_locality", "postcode",
	"postcode_type", "x_coordinate", "y_coordinate", "latitude", "longitude",
	"rpc", "country", "change_type", "la_start_date", "rm_start_date",
	"last_update_date", "class", "geom",
}

const createTableSQL = `CREATE TABLE IF NOT EXISTS ab_plus (
	id BIGSERIAL PRIMARY KEY,
	uprn BIGINT NOT NULL,
	os_address_toid TEXT,
	udprn INTEGER,
	organisation_name TEXT,
	department_name TEXT,
	po_box_number TEXT,
	sub_building_name TEXT,
	building_name TEXT,
	building_number TEXT,
	dependent_thoroughfare TEXT,
	thoroughfare TEXT,
	post_town TEXT,
	double_dependent_locality TEXT,
	dependent_locality TEXT,
	postcode TEXT,
	postcode_type CHAR(1),
	x_coordinate DOUBLE PRECISION,
	y_coordinate DOUBLE PRECISION,
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	rpc CHAR(1),
	country TEXT,
	change_type CHAR(1),
	la_start_date DATE,
	rm_start_date DATE,
	last_update_date DATE,
	class TEXT,
	geom GEOMETRY(Point, 4326)
);`

// EnsureSchema creates ab_plus if absent. Mirrors the teacher's bare
// db.Exec DDL idiom (collectors/geo-collector.go's "create table if not
// exists"), extended with the geometry column the teacher's civic-data
// schema never needed.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("ensure ab_plus schema: %w", err)
	}
	return nil
}

// EnsureExtensions ensures PostGIS and pg_trgm are installed, the two
// extensions spec.md §6 requires. Grounded on the teacher's
// shared.EnsurePostGISExtension, generalized to a second extension.
func EnsureExtensions(db *sql.DB) error {
	for _, ext := range []string{"postgis", "pg_trgm"} {
		var available bool
		err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM pg_available_extensions WHERE name = $1)`, ext).Scan(&available)
		if err != nil {
			return fmt.Errorf("checking availability of extension %s: %w", ext, err)
		}
		if !available {
			return fmt.Errorf("required extension %s is not available on this server", ext)
		}
		if _, err := db.Exec(fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS %s", ext)); err != nil {
			return fmt.Errorf("creating extension %s: %w", ext, err)
		}
	}
	return nil
}

// indexStatements is the set named in spec.md §6: GiST over geometry, btree
// over postcode and UPRN, trigram GIN over thoroughfare, case-folded
// composite indexes over (building_number, thoroughfare, postcode) and
// (building_name, thoroughfare, postcode), plus post_town variants, plus
// (postcode, thoroughfare). Grounded on
// match_addresses.py::create_postgres_index.
var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_ab_plus_geom ON ab_plus USING GIST (geom)`,
	`CREATE INDEX IF NOT EXISTS idx_ab_plus_postcode ON ab_plus (postcode)`,
	`CREATE INDEX IF NOT EXISTS idx_ab_plus_uprn ON ab_plus (uprn)`,
	`CREATE INDEX IF NOT EXISTS idx_ab_plus_thoroughfare_trgm ON ab_plus USING GIN (thoroughfare gin_trgm_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_ab_plus_building_number_lookup ON ab_plus (UPPER(building_number), UPPER(thoroughfare), UPPER(postcode))`,
	`CREATE INDEX IF NOT EXISTS idx_ab_plus_building_name_lookup ON ab_plus (UPPER(building_name), UPPER(thoroughfare), UPPER(postcode))`,
	`CREATE INDEX IF NOT EXISTS idx_ab_plus_building_number_city_lookup ON ab_plus (UPPER(building_number), UPPER(thoroughfare), UPPER(post_town))`,
	`CREATE INDEX IF NOT EXISTS idx_ab_plus_building_name_city_lookup ON ab_plus (UPPER(building_name), UPPER(thoroughfare), UPPER(post_town))`,
	`CREATE INDEX IF NOT EXISTS idx_ab_plus_postcode_road ON ab_plus (UPPER(postcode), UPPER(thoroughfare))`,
}

// EnsureIndexes creates every required index, idempotently. A failure on
// one index is logged by the caller and does not abort the others — the
// Python original wraps this in a try/except that treats index creation
// failure as a warning, not fatal (match_addresses.py::create_postgres_index).
func EnsureIndexes(ctx context.Context, db *sql.DB) []error {
	var errs []error
	for _, stmt := range indexStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", stmt, err))
		}
	}
	return errs
}
