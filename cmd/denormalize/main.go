// Command denormalize bootstraps the reference store's schema and
// extensions, then runs the one-time denormalization pass (SPEC_FULL.md
// §4.G) that expands building-number ranges and "ST." thoroughfare variants.
// It is idempotent to rerun: schema/extension/index setup is
// create-if-missing, and the denormalization pass only inserts synthetic
// rows derived from rows that still match its expansion rules.
package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/theodi/lease-data-foundation/config"
	"github.com/theodi/lease-data-foundation/refstore"
	"github.com/theodi/lease-data-foundation/shared"

	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load()
	ctx := context.Background()

	db, err := shared.OpenDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open reference store: %v", err)
	}
	defer db.Close()

	if err := refstore.EnsureExtensions(db); err != nil {
		log.Fatalf("failed to ensure extensions: %v", err)
	}
	if err := refstore.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	log.Print("starting denormalization pass")
	if err := refstore.Denormalize(ctx, db); err != nil {
		log.Fatalf("denormalization pass failed: %v", err)
	}
	log.Print("denormalization pass complete")

	log.Print("ensuring indexes")
	for _, idxErr := range refstore.EnsureIndexes(ctx, db) {
		log.Printf("index creation warning: %v", idxErr)
	}
	log.Print("reference store ready")
}
