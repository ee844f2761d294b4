// Package csvio reads and writes payment and student CSV files.
//
// Headers are matched by name, case-insensitively, with a few aliases for
// the spellings found in older exports. Row numbers count the header as
// row 1, so the first record is row 2.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// RowError describes why a single record was rejected.
type RowError struct {
	RowNumber int    `json:"rowNumber"`
	Message   string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.RowNumber, e.Message)
}

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing required column")

// column is a canonical header with the names accepted for it.
type column struct {
	name     string
	aliases  []string
	required bool
}

// header maps canonical column names to record positions.
type header map[string]int

func normaliseName(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func readHeader(r *csv.Reader, columns []column) (header, error) {
	record, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty csv: %w", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	positions := make(map[string]int, len(record))
	for i, name := range record {
		if _, dup := positions[normaliseName(name)]; !dup {
			positions[normaliseName(name)] = i
		}
	}

	h := make(header, len(columns))
	var missing []string
	for _, c := range columns {
		idx, ok := positions[c.name]
		for _, alias := range c.aliases {
			if ok {
				break
			}
			idx, ok = positions[alias]
		}
		if ok {
			h[c.name] = idx
			continue
		}
		if c.required {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return h, nil
}

// get returns the trimmed cell of column name, or "" when absent.
func (h header) get(record []string, name string) string {
	idx, ok := h[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// eachRecord calls fn for every non-blank data record with its row number.
// Malformed lines become row errors; other read failures abort.
func eachRecord(r io.Reader, columns []column, fn func(row int, h header, record []string) error) ([]RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	h, err := readHeader(cr, columns)
	if err != nil {
		return nil, err
	}

	var rowErrors []RowError
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			rowErrors = append(rowErrors, RowError{RowNumber: parseErr.StartLine, Message: parseErr.Err.Error()})
			continue
		}
		if err != nil {
			return rowErrors, fmt.Errorf("read csv: %w", err)
		}
		if blank(record) {
			continue
		}
		line, _ := cr.FieldPos(0)
		if err := fn(line, h, record); err != nil {
			rowErrors = append(rowErrors, RowError{RowNumber: line, Message: err.Error()})
		}
	}
	return rowErrors, nil
}

func writeAll(w io.Writer, columns []column, rows [][]string) error {
	cw := csv.NewWriter(w)
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	if err := cw.Write(names); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
