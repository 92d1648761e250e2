package pipeline

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// ValidationError reports input that cannot be read as tabular data at all.
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Table is a decoded CSV upload. Every row has exactly len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of the first header cell naming the given
// schema field (by column or JSON key), or -1.
func (t *Table) Index(f Field) int {
	for i, h := range t.Header {
		if strings.EqualFold(h, f.Column) || strings.EqualFold(h, f.JSONKey) {
			return i
		}
	}
	return -1
}

func (t *Table) customerIDIndex() int {
	for i, h := range t.Header {
		if isCustomerIDColumn(h) {
			return i
		}
	}
	return -1
}

// ReadCSV decodes a CSV stream with a header row. It fails only when the
// stream is not usable as a table: unreadable, empty, header-only, or
// carrying none of the feature columns.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, &ValidationError{Msg: "Could not read CSV file", Err: err}
	}
	if len(records) == 0 {
		return nil, &ValidationError{Msg: "CSV file is empty"}
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = strings.TrimSpace(h)
	}

	t := &Table{Header: header, Rows: make([][]string, 0, len(records)-1)}
	recognized := false
	for _, f := range schema {
		if t.Index(f) >= 0 {
			recognized = true
			break
		}
	}
	if !recognized {
		return nil, &ValidationError{Msg: "CSV header has no recognized feature columns"}
	}

	for _, rec := range records[1:] {
		row := make([]string, len(header))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	if len(t.Rows) == 0 {
		return nil, &ValidationError{Msg: "CSV file has no data rows"}
	}
	return t, nil
}

// IsValidationError reports whether err is, or wraps, a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
