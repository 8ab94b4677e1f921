// CLAUDE:SUMMARY Post-download verification: non-empty, parseable CSV header, valid PDF structure.
package download

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Verify checks that a downloaded file is plausibly what its extension
// claims: non-empty always; a parseable header row for .csv; a valid
// document structure for .pdf. Other extensions only get the size check.
func Verify(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("download: verify %s: %w", path, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("download: verify %s: file is empty", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return verifyCSV(path)
	case ".pdf":
		if err := api.ValidateFile(path, nil); err != nil {
			return fmt.Errorf("download: verify %s: invalid pdf: %w", path, err)
		}
	}
	return nil
}

func verifyCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("download: verify %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 64*1024)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fmt.Errorf("download: verify %s: %w", path, err)
	}
	head = bytes.TrimPrefix(head[:n], []byte{0xEF, 0xBB, 0xBF})

	r := csv.NewReader(bytes.NewReader(head))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil || len(header) < 2 {
		return fmt.Errorf("download: verify %s: no parseable csv header", path)
	}
	return nil
}
