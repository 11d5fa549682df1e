package postcode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// cacheEntry is the on-disk representation of one cached lookup, including
// negative results (Found=false) so a postcode confirmed unresolvable is
// never re-queried.
type cacheEntry struct {
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Eastings  int     `json:"eastings,omitempty"`
	Northings int     `json:"northings,omitempty"`
	Found     bool    `json:"found"`
}

// Cache is a JSON-persisted, in-memory postcode lookup cache keyed by
// NormalizeKey(postcode). It is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	path    string
	entries map[string]cacheEntry
}

// LoadCache reads path if it exists, or starts empty. A missing file is not
// an error: the cache simply starts cold, matching the teacher's
// shared/spatial_datasets.go treatment of a missing cached dataset file.
func LoadCache(path string) (*Cache, error) {
	c := &Cache{path: path, entries: map[string]cacheEntry{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read postcode cache %s: %w", path, err)
	}
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("parse postcode cache %s: %w", path, err)
	}
	return c, nil
}

// Get returns the cached result for postcode, if present.
func (c *Cache) Get(postcode string) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[NormalizeKey(postcode)]
	if !ok {
		return Result{}, false
	}
	return Result{
		Postcode: postcode, Latitude: e.Latitude, Longitude: e.Longitude,
		Eastings: e.Eastings, Northings: e.Northings, Found: e.Found,
	}, true
}

// Put records a lookup result, positive or negative.
func (c *Cache) Put(postcode string, r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[NormalizeKey(postcode)] = cacheEntry{
		Latitude: r.Latitude, Longitude: r.Longitude,
		Eastings: r.Eastings, Northings: r.Northings, Found: r.Found,
	}
}

// Len reports how many postcodes are currently cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Flush writes the cache to disk via a temp-file-then-rename, matching the
// teacher's shared/spatial_datasets.go::ensureSpatialDataset atomic-write
// idiom (write to a sibling temp file, fsync, close, rename into place).
func (c *Cache) Flush() error {
	c.mu.RLock()
	data, err := json.Marshal(c.entries)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal postcode cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create postcode cache directory %s: %w", dir, err)
		}
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create postcode cache temp file: %w", err)
	}

	wrote := false
	defer func() {
		tmpFile.Close()
		if !wrote {
			os.Remove(tmpFile.Name())
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("write postcode cache contents: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("flush postcode cache: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close postcode cache temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), c.path); err != nil {
		return fmt.Errorf("move postcode cache into place: %w", err)
	}
	wrote = true

	return nil
}
