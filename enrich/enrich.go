// Package enrich implements the document-store enrichment pass (component
// I): for each matched reference-store row it writes address fields onto
// the corresponding lease document or deletes it if the matched property is
// non-residential; for unmatched-but-postcoded rows it falls back to a
// geocode-only update via the external postcode service. Grounded on
// original_source/src/enricher/update_mongo_from_csv.py (residential
// policy, field mapping, GeoJSON point, bulk write) and spec.md §6's
// postcodes.io contract for the geocode-only path, which the Python
// original never implemented.
package enrich

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/theodi/lease-data-foundation/docstore"
	"github.com/theodi/lease-data-foundation/postcode"
	"github.com/theodi/lease-data-foundation/refstore"

	"go.mongodb.org/mongo-driver/bson"
)

// residentialClasses mirrors update_mongo_from_csv.py's RESIDENTIAL_CLASSES.
var residentialClasses = map[byte]bool{'R': true, 'X': true, 'P': true}

// IsResidential implements spec.md §4.I's residential policy: the first
// character of class, uppercased, in {R, X, P}.
func IsResidential(class string) bool {
	if class == "" {
		return false
	}
	c := class[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	return residentialClasses[c]
}

// geocodeBatchSize and geocodeBatchDelay match spec.md §4.I's documented
// geocode-only enrichment cadence.
const (
	geocodeBatchSize  = 100
	geocodeBatchDelay = 50 * time.Millisecond
)

// postcodeCacheFlushInterval is how often, in processed records,
// PostcodeCache is flushed to disk during a long geocode-only pass, per
// spec.md §4.I.
const postcodeCacheFlushInterval = 100_000

// MatchedRecord is one matched property ready to be written into the
// document store.
type MatchedRecord struct {
	UID string
	Row refstore.ReferenceAddress
}

// UnmatchedRecord is an unresolved record that still carries a postcode and
// is eligible for geocode-only enrichment.
type UnmatchedRecord struct {
	UID      string
	Postcode string
}

// WriteMatched builds one WriteOp per matched record: an UpdateOne with the
// mapped address fields (plus a GeoJSON location point, when lat/lon are
// present) for residential properties, or a DeleteOne for non-residential
// ones. Grounded on update_mongo_from_csv.py::process_chunk.
func WriteMatched(records []MatchedRecord) []docstore.WriteOp {
	ops := make([]docstore.WriteOp, 0, len(records))
	for _, r := range records {
		class := ""
		if r.Row.Class.Valid {
			class = r.Row.Class.String
		}

		if !IsResidential(class) {
			ops = append(ops, docstore.WriteOp{UID: r.UID, Delete: true})
			continue
		}

		set := bson.M{
			"ab_uprn": r.Row.UPRN,
			"class":   class,
		}
		if r.Row.UDPRN.Valid {
			set["udprn"] = r.Row.UDPRN.Int32
		}
		if r.Row.BuildingName.Valid {
			set["building_name"] = r.Row.BuildingName.String
		}
		if r.Row.BuildingNumber.Valid {
			set["building_number"] = r.Row.BuildingNumber.String
		}
		if r.Row.Thoroughfare.Valid {
			set["thoroughfare"] = r.Row.Thoroughfare.String
		}
		if r.Row.PostTown.Valid {
			set["post_town"] = r.Row.PostTown.String
		}
		if r.Row.Postcode.Valid {
			set["ab_postcode"] = r.Row.Postcode.String
		}
		if r.Row.XCoordinate.Valid {
			set["x_coordinate"] = r.Row.XCoordinate.Float64
		}
		if r.Row.YCoordinate.Valid {
			set["y_coordinate"] = r.Row.YCoordinate.Float64
		}
		if r.Row.Latitude.Valid {
			set["latitude"] = r.Row.Latitude.Float64
		}
		if r.Row.Longitude.Valid {
			set["longitude"] = r.Row.Longitude.Float64
		}
		if r.Row.Latitude.Valid && r.Row.Longitude.Valid {
			// GeoJSON Point coordinate order is [longitude, latitude] —
			// never the reverse.
			set[docstore.LocationField] = bson.M{
				"type":        "Point",
				"coordinates": []float64{r.Row.Longitude.Float64, r.Row.Latitude.Float64},
			}
		}

		ops = append(ops, docstore.WriteOp{UID: r.UID, Set: set})
	}
	return ops
}

// GeocodeUnmatched resolves postcodes for unmatched-but-postcoded records
// in batches of geocodeBatchSize, pausing geocodeBatchDelay between HTTP
// calls, consulting and populating cache so a postcode is never looked up
// twice across the life of the cache file. It returns one WriteOp per
// record whose postcode resolved to a location.
func GeocodeUnmatched(ctx context.Context, client postcode.Client, cache *postcode.Cache, records []UnmatchedRecord, onCacheGrowth func(size int)) ([]docstore.WriteOp, error) {
	var ops []docstore.WriteOp

	for start := 0; start < len(records); start += geocodeBatchSize {
		end := start + geocodeBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		var toQuery []string
		queried := map[string]bool{}
		for _, r := range batch {
			if _, cached := cache.Get(r.Postcode); cached {
				continue
			}
			key := postcode.NormalizeKey(r.Postcode)
			if !queried[key] {
				queried[key] = true
				toQuery = append(toQuery, r.Postcode)
			}
		}

		if len(toQuery) > 0 {
			results, err := client.Lookup(ctx, toQuery)
			if err != nil {
				return ops, fmt.Errorf("geocode batch starting at record %d: %w", start, err)
			}
			for pc, res := range results {
				cache.Put(pc, res)
			}
		}
		if end/postcodeCacheFlushInterval > start/postcodeCacheFlushInterval {
			if err := cache.Flush(); err != nil {
				log.Printf("postcode cache flush failed: %v", err)
			}
			if onCacheGrowth != nil {
				onCacheGrowth(cache.Len())
			}
		}

		for _, r := range batch {
			res, ok := cache.Get(r.Postcode)
			if !ok || !res.Found {
				continue
			}
			set := bson.M{
				"latitude":  res.Latitude,
				"longitude": res.Longitude,
				docstore.LocationField: bson.M{
					"type":        "Point",
					"coordinates": []float64{res.Longitude, res.Latitude},
				},
			}
			if res.Eastings != 0 {
				set["eastings"] = res.Eastings
			}
			if res.Northings != 0 {
				set["northings"] = res.Northings
			}
			ops = append(ops, docstore.WriteOp{UID: r.UID, Set: set})
		}

		if end < len(records) {
			select {
			case <-ctx.Done():
				return ops, ctx.Err()
			case <-time.After(geocodeBatchDelay):
			}
		}
	}

	return ops, nil
}
