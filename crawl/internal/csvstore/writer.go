// CLAUDE:SUMMARY Append-only CSV store: UTF-8 BOM plus header written once, one row per call, serialized appends.
// Package csvstore persists accepted records to an append-only CSV table.
//
// The file is created with a UTF-8 byte-order mark and a fixed header row
// on first use, checked by existence with a single writer per path. Each
// Append opens the file, writes exactly one row, and closes it again, so
// a crash loses at most the in-flight record and a restarted run keeps
// appending to the same table without ever truncating it.
package csvstore

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Store is an append-only CSV table at a fixed path.
type Store struct {
	path   string
	header []string

	mu sync.Mutex // serializes appends from concurrent workers
}

// Open prepares a Store. The file itself is created lazily on the first
// Append, so opening a store is side-effect free.
func Open(path string, header []string) *Store {
	return &Store{path: path, header: header}
}

// Path returns the store's file path.
func (s *Store) Path() string { return s.path }

// Header returns the store's column names.
func (s *Store) Header() []string { return append([]string(nil), s.header...) }

// Append writes one record as one CSV row, creating the file with the
// BOM and header first if it does not exist yet. Record keys not in the
// header are dropped; header columns missing from the record are empty.
func (s *Store) Append(record map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureHeader(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("csvstore: open %s: %w", s.path, err)
	}
	defer f.Close()

	row := make([]string, len(s.header))
	for i, col := range s.header {
		row[i] = record[col]
	}

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("csvstore: write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csvstore: flush: %w", err)
	}
	return nil
}

// ensureHeader creates the file with BOM + header exactly once.
func (s *Store) ensureHeader() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("csvstore: stat %s: %w", s.path, err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("csvstore: mkdir %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("csvstore: create %s: %w", s.path, err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return fmt.Errorf("csvstore: write BOM: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(s.header); err != nil {
		return fmt.Errorf("csvstore: write header: %w", err)
	}
	w.Flush()
	return w.Error()
}
