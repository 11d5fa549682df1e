package shared

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const DefaultConnectionString = "user=postgres dbname=address_base password=sql host=localhost sslmode=disable port=5432"

// OpenDatabase establishes a database connection and verifies connectivity
// with retries. Extension/schema bootstrap is the caller's responsibility
// (refstore.EnsureExtensions/EnsureSchema), since the reference store needs
// both PostGIS and pg_trgm and the document-matching commands don't all
// need the reference store at all.
func OpenDatabase(connStr string) (*sql.DB, error) {
	if connStr == "" {
		return nil, errors.New("database connection string is required")
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("could not open connection: %w", err)
	}

	const maxRetries = 10
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = db.Ping(); err == nil {
			break
		}
		if attempt == maxRetries {
			break
		}
		time.Sleep(5 * time.Second)
	}

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("database not reachable after %d attempts: %w", maxRetries, err)
	}

	return db, nil
}
