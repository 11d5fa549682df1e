// Package progress implements the resumable processing checkpoint used by
// the matcher and the extraction driver: a single-line file holding the last
// successfully processed record identifier. Grounded on
// original_source/src/addressbase/match_addresses.py's
// get_last_processed_uid/save_progress, with the write path adapted to the
// teacher's shared/spatial_datasets.go atomic-write idiom (the Python
// original's plain os.write is not safe against a crash mid-write).
package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Token is a checkpoint file holding one opaque identifier (a UID, an
// ObjectID hex string, or similar) between runs.
type Token struct {
	path string
}

// Open resolves a checkpoint file at path without reading it; call Load to
// fetch the last saved value.
func Open(path string) *Token {
	return &Token{path: path}
}

// Load returns the last saved identifier, or "" if the token file does not
// exist or is empty — both cases mean "start from the beginning", matching
// get_last_processed_uid's `return None` paths.
func (t *Token) Load() (string, error) {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read progress token %s: %w", t.path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save atomically writes id as the new checkpoint, via temp-file-then-
// rename, matching shared/spatial_datasets.go::ensureSpatialDataset's
// write+fsync+rename sequence.
func (t *Token) Save(id string) error {
	dir := filepath.Dir(t.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create progress directory %s: %w", dir, err)
		}
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(t.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create progress temp file: %w", err)
	}

	wrote := false
	defer func() {
		tmpFile.Close()
		if !wrote {
			os.Remove(tmpFile.Name())
		}
	}()

	if _, err := tmpFile.WriteString(id); err != nil {
		return fmt.Errorf("write progress token: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("flush progress token: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close progress temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), t.path); err != nil {
		return fmt.Errorf("move progress token into place: %w", err)
	}
	wrote = true

	return nil
}

// Delete removes the checkpoint file on clean completion (spec.md §3: the
// token is deleted once a pass finishes rather than left pointing at a
// uid the next run would otherwise resume after). A missing file is not
// an error.
func (t *Token) Delete() error {
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove progress token %s: %w", t.path, err)
	}
	return nil
}
