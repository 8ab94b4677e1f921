package csvstore

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return rows
}

func TestAppend_CreatesHeaderOnce(t *testing.T) {
	// WHAT: N appends across store reopens yield one header and N rows.
	// WHY: Header creation must be idempotent across process restarts.
	path := filepath.Join(t.TempDir(), "IEA.csv")
	header := []string{"Policy", "Year", "Source"}

	s := Open(path, header)
	for i := 0; i < 3; i++ {
		if err := s.Append(map[string]string{"Policy": "P", "Year": "2022", "Source": "IEA"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	// Simulate a restart: a fresh Store against the same path.
	s2 := Open(path, header)
	if err := s2.Append(map[string]string{"Policy": "Q", "Year": "2023", "Source": "IEA"}); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}

	rows := readAll(t, path)
	if len(rows) != 5 {
		t.Fatalf("rows: got %d, want 5 (header + 4)", len(rows))
	}
	if rows[0][0] != "Policy" || rows[0][2] != "Source" {
		t.Errorf("header: got %v", rows[0])
	}
	if rows[4][0] != "Q" {
		t.Errorf("last row: got %v", rows[4])
	}
}

func TestAppend_WritesBOM(t *testing.T) {
	// WHAT: A fresh store starts with the UTF-8 byte-order mark.
	// WHY: Spreadsheet tools need the BOM to read CJK content correctly.
	path := filepath.Join(t.TempDir(), "out.csv")
	s := Open(path, []string{"Policy"})
	if err := s.Append(map[string]string{"Policy": "碳达峰行动方案"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}) {
		t.Error("missing UTF-8 BOM")
	}
}

func TestAppend_MissingAndExtraFields(t *testing.T) {
	// WHAT: Missing columns become empty cells; unknown keys are dropped.
	// WHY: Records from degraded extraction still persist cleanly.
	path := filepath.Join(t.TempDir(), "out.csv")
	s := Open(path, []string{"Policy", "Year", "Country"})

	if err := s.Append(map[string]string{"Policy": "P", "Unknown": "x"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows := readAll(t, path)
	if got := rows[1]; got[0] != "P" || got[1] != "" || got[2] != "" {
		t.Errorf("row: got %v", got)
	}
}

func TestAppend_ConcurrentWritersSerialized(t *testing.T) {
	// WHAT: Concurrent appends produce exactly one row each, no interleaving.
	// WHY: Worker-pool writers share one store; appends must serialize.
	path := filepath.Join(t.TempDir(), "out.csv")
	s := Open(path, []string{"Policy"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Append(map[string]string{"Policy": "row"}); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	wg.Wait()

	rows := readAll(t, path)
	if len(rows) != 21 {
		t.Errorf("rows: got %d, want 21", len(rows))
	}
}
