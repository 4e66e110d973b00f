// Package examcsv parses the exam results CSV into typed records.
//
// The document must start with a header row naming at least the columns in
// Columns. Column order is free and extra columns are ignored. Any missing
// column or malformed row fails the whole parse, so callers never see a
// partial dataset.
package examcsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Column names of the source document.
const (
	ColumnID            = "id"
	ColumnYear          = "year"
	ColumnLanguagePair  = "language_pair"
	ColumnErrorType     = "error_type"
	ColumnErrorSeverity = "error_severity"
)

// Columns lists the required header columns in their canonical order.
var Columns = []string{ColumnID, ColumnYear, ColumnLanguagePair, ColumnErrorType, ColumnErrorSeverity}

var (
	// ErrEmptyDocument is returned when the input has no header row.
	ErrEmptyDocument = errors.New("empty csv document")

	// ErrMissingColumn is matched by a *HeaderError naming absent or duplicated columns.
	ErrMissingColumn = errors.New("missing required column")

	// ErrMalformedRow is matched by a *RowError for a data row that cannot be typed.
	ErrMalformedRow = errors.New("malformed row")
)

// Record is one source row: an exam and the error observed in it.
type Record struct {
	ID            int64
	Year          int
	LanguagePair  string
	ErrorType     string
	ErrorSeverity string
	// Line is the 1-based line of the row in the document.
	Line int
}

// HeaderError reports required columns absent from the header row.
type HeaderError struct {
	Missing   []string
	Duplicate string
}

func (e *HeaderError) Error() string {
	if e.Duplicate != "" {
		return fmt.Sprintf("csv header: duplicate column %q", e.Duplicate)
	}
	return fmt.Sprintf("csv header: %s: %s", ErrMissingColumn, strings.Join(e.Missing, ", "))
}

func (e *HeaderError) Is(target error) bool { return target == ErrMissingColumn }

// RowError reports the row and column that could not be parsed.
type RowError struct {
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("csv line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("csv line %d, column %q: %v", e.Line, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

func (e *RowError) Is(target error) bool { return target == ErrMalformedRow }

// ParseString parses an in-memory CSV document.
func ParseString(s string) ([]Record, error) {
	return Parse(strings.NewReader(s))
}

// Parse reads every row of r and returns the records in document order.
func Parse(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // checked per row to report the line
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyDocument
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx, err := indexHeader(header)
	if err != nil {
		return nil, err
	}

	var out []Record
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var line int
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, &RowError{Line: line, Err: err}
		}
		line, _ := cr.FieldPos(0)
		if len(fields) != len(header) {
			return nil, &RowError{Line: line, Err: fmt.Errorf("expected %d fields, got %d", len(header), len(fields))}
		}
		rec, err := parseRecord(fields, idx, line)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func indexHeader(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, dup := idx[name]; dup && isRequired(name) {
			return nil, &HeaderError{Duplicate: name}
		}
		idx[name] = i
	}
	var missing []string
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &HeaderError{Missing: missing}
	}
	return idx, nil
}

func isRequired(name string) bool {
	for _, c := range Columns {
		if c == name {
			return true
		}
	}
	return false
}

func parseRecord(fields []string, idx map[string]int, line int) (Record, error) {
	get := func(col string) string { return strings.TrimSpace(fields[idx[col]]) }

	rawID := get(ColumnID)
	if rawID == "" {
		return Record{}, &RowError{Line: line, Column: ColumnID, Err: errors.New("value is empty")}
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return Record{}, &RowError{Line: line, Column: ColumnID, Err: err}
	}
	year, err := strconv.Atoi(get(ColumnYear))
	if err != nil {
		return Record{}, &RowError{Line: line, Column: ColumnYear, Err: err}
	}

	return Record{
		ID:            id,
		Year:          year,
		LanguagePair:  get(ColumnLanguagePair),
		ErrorType:     get(ColumnErrorType),
		ErrorSeverity: get(ColumnErrorSeverity),
		Line:          line,
	}, nil
}
