// Package tabular reads and writes column-name-addressed CSV files. Readers
// never assume fixed column offsets; writers emit a stable header row and
// caller-ordered rows so reruns produce byte-identical files.
package tabular

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/civic-risk-etl/internal/domain"
)

// ErrNotFound marks a missing input file so callers can distinguish an absent
// required input from a read failure.
var ErrNotFound = errors.New("table file not found")

// Table is an in-memory tabular file: the header row plus one map per row.
type Table struct {
	Headers []string
	Rows    []domain.RawRow
}

// Empty reports whether the table has no data rows.
func (t *Table) Empty() bool { return len(t.Rows) == 0 }

// ReadFile loads a CSV file into a Table. The first row is the header; a
// UTF-8 BOM on the first header cell is stripped. Short rows are padded with
// empty cells rather than rejected — per-field validation happens in the
// normalizer, not here.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open table %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(bufio.NewReader(f))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Table{}, nil
		}
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	table := &Table{Headers: headers}
	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %s: %w", path, err)
		}
		row := make(domain.RawRow, len(headers))
		for i, h := range headers {
			if i < len(cells) {
				row[h] = cells[i]
			} else {
				row[h] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// WriteFile writes rows under a fixed header order, creating parent
// directories as needed. Cells missing from a row are written empty.
func WriteFile(path string, headers []string, rows []domain.RawRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create table %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("write header %s: %w", path, err)
	}
	cells := make([]string, len(headers))
	for _, row := range rows {
		for i, h := range headers {
			cells[i] = row[h]
		}
		if err := w.Write(cells); err != nil {
			return fmt.Errorf("write row %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush table %s: %w", path, err)
	}
	return f.Close()
}
