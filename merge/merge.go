// CLAUDE:SUMMARY Cross-run reconciliation: synonym-normalized columns, md5 fingerprint dedup, new run wins.
// Package merge reconciles two tabular snapshots of the same source,
// collected by different crawl runs, into one deduplicated table.
//
// Rows are matched by a fingerprint derived from the URL and title
// columns. When both runs carry the same fingerprint the newer run's
// row is kept; older rows survive only for fingerprints the new run
// never produced. Column names drift between runs, so a fixed synonym
// table folds variants like "policy_url" and "title" onto canonical
// names before fingerprinting.
package merge

import (
	"bytes"
	"crypto/md5"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// columnSynonyms maps known header variants onto canonical column
// names. A variant is renamed only when the canonical name is not
// already present in the table.
var columnSynonyms = map[string]string{
	"policy_url":     "URL",
	"url":            "URL",
	"policy":         "Policy",
	"title":          "Policy",
	"country":        "Country",
	"year":           "Year",
	"content":        "Policy_Content",
	"policy_content": "Policy_Content",
	"abstract":       "Abstract",
	"source":         "Source",
}

// Table is a loaded CSV snapshot: a header and one string map per row.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Stats summarizes one reconciliation.
type Stats struct {
	RowsOld           int `json:"rows_old"`
	RowsNew           int `json:"rows_new"`
	RowsMerged        int `json:"rows_merged"`
	DuplicatesRemoved int `json:"duplicates_removed"`
}

// Load reads a CSV snapshot. A UTF-8 byte-order mark is stripped,
// ragged rows are tolerated, and short rows pad missing columns with
// empty values.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("merge: read %s: %w", path, err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("merge: parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("merge: %s has no header row", path)
	}

	t := &Table{Columns: records[0]}
	for _, rec := range records[1:] {
		row := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Normalize folds synonym column names onto their canonical forms and
// stamps a Source column with sourceTag when the table has none.
func (t *Table) Normalize(sourceTag string) {
	for i, col := range t.Columns {
		canonical, ok := columnSynonyms[strings.ToLower(col)]
		if !ok || canonical == col || t.hasColumn(canonical) {
			continue
		}
		t.Columns[i] = canonical
		for _, row := range t.Rows {
			row[canonical] = row[col]
			delete(row, col)
		}
	}

	if sourceTag != "" && !t.hasColumn("Source") {
		t.Columns = append(t.Columns, "Source")
		for _, row := range t.Rows {
			row["Source"] = sourceTag
		}
	}
}

func (t *Table) hasColumn(name string) bool {
	for _, col := range t.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// WriteFile writes the table as a UTF-8 CSV with a byte-order mark,
// one header row, and the rows in table order.
func (t *Table) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("merge: mkdir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("merge: create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return fmt.Errorf("merge: write BOM: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return fmt.Errorf("merge: write header: %w", err)
	}
	row := make([]string, len(t.Columns))
	for _, r := range t.Rows {
		for i, col := range t.Columns {
			row[i] = r[col]
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("merge: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("merge: flush %s: %w", path, err)
	}
	return nil
}

// fingerprint identifies a row for duplicate detection. It hashes the
// case-folded URL and title, so the same policy re-crawled with fresher
// content still collides with its earlier row.
func fingerprint(row map[string]string) string {
	id := strings.TrimSpace(strings.ToLower(row["URL"] + "|" + row["Policy"]))
	sum := md5.Sum([]byte(id))
	return hex.EncodeToString(sum[:])
}

// Merge combines an older and a newer snapshot of the same source.
// New rows come first in the result and win every fingerprint
// collision; old rows survive only when the new run lacks their
// fingerprint. Columns are the union, old table order first.
func Merge(older, newer *Table) (*Table, Stats) {
	stats := Stats{RowsOld: len(older.Rows), RowsNew: len(newer.Rows)}

	merged := &Table{Columns: append([]string(nil), older.Columns...)}
	for _, col := range newer.Columns {
		if !merged.hasColumn(col) {
			merged.Columns = append(merged.Columns, col)
		}
	}

	seen := make(map[string]bool, len(newer.Rows)+len(older.Rows))
	for _, rows := range [][]map[string]string{newer.Rows, older.Rows} {
		for _, row := range rows {
			fp := fingerprint(row)
			if seen[fp] {
				continue
			}
			seen[fp] = true
			merged.Rows = append(merged.Rows, row)
		}
	}

	stats.RowsMerged = len(merged.Rows)
	stats.DuplicatesRemoved = stats.RowsOld + stats.RowsNew - stats.RowsMerged
	return merged, stats
}

// Files reconciles two snapshot paths into outPath. A missing old or
// new snapshot degrades to passing the other through unchanged; both
// missing is an error. The source tag fills an absent Source column.
func Files(oldPath, newPath, outPath, sourceTag string, logger *slog.Logger) (Stats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	older, oldErr := Load(oldPath)
	newer, newErr := Load(newPath)
	if oldErr != nil && newErr != nil {
		return Stats{}, fmt.Errorf("merge: no snapshot for %s: %w", sourceTag, newErr)
	}

	var merged *Table
	var stats Stats
	switch {
	case oldErr != nil:
		logger.Info("only new snapshot present", "source", sourceTag, "rows", len(newer.Rows))
		newer.Normalize(sourceTag)
		merged, stats = newer, Stats{RowsNew: len(newer.Rows), RowsMerged: len(newer.Rows)}
	case newErr != nil:
		logger.Info("only old snapshot present", "source", sourceTag, "rows", len(older.Rows))
		older.Normalize(sourceTag)
		merged, stats = older, Stats{RowsOld: len(older.Rows), RowsMerged: len(older.Rows)}
	default:
		older.Normalize(sourceTag)
		newer.Normalize(sourceTag)
		merged, stats = Merge(older, newer)
	}

	if err := merged.WriteFile(outPath); err != nil {
		return stats, err
	}
	logger.Info("snapshots reconciled",
		"source", sourceTag, "out", outPath,
		"rows_old", stats.RowsOld, "rows_new", stats.RowsNew,
		"rows_merged", stats.RowsMerged, "duplicates_removed", stats.DuplicatesRemoved)
	return stats, nil
}

// Result is the outcome of reconciling one source in a batch.
type Result struct {
	Source string
	Stats  Stats
	Err    error
}

// All reconciles every named source, reading <name>.csv from oldDir and
// newDir and writing the merged table to outDir. A failing source is
// reported in its Result and never stops the rest of the batch.
func All(oldDir, newDir, outDir string, sources []string, logger *slog.Logger) []Result {
	if logger == nil {
		logger = slog.Default()
	}

	results := make([]Result, 0, len(sources))
	for _, name := range sources {
		file := name + ".csv"
		stats, err := Files(
			filepath.Join(oldDir, file),
			filepath.Join(newDir, file),
			filepath.Join(outDir, file),
			name, logger)
		if err != nil {
			logger.Warn("source reconciliation failed", "source", name, "error", err)
		}
		results = append(results, Result{Source: name, Stats: stats, Err: err})
	}
	return results
}
