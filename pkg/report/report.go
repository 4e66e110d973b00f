// Package report answers the fixed aggregate questions over loaded exam data.
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/japaniel/examload/pkg/db"
)

// DefaultTopErrors is the largest number of error types TopErrorTypes returns.
const DefaultTopErrors = 5

// LanguagePairCount is the number of distinct exams for one language pair.
type LanguagePairCount struct {
	LanguagePair string
	Exams        int
}

// ErrorTypeCount is the number of error records of one type.
type ErrorTypeCount struct {
	ErrorType string
	Count     int
}

// Filter selects error records for CountErrors. All fields must match.
type Filter struct {
	LanguagePair string
	ErrorType    string
	Year         int
}

// Reporter runs read-only queries through DB.
type Reporter struct {
	DB db.DBExecutor
}

// New creates a Reporter.
func New(conn db.DBExecutor) *Reporter {
	return &Reporter{DB: conn}
}

const examsPerPairQuery = `SELECT e.language_pair, COUNT(DISTINCT e.id)
FROM exams_Table e
LEFT JOIN errors_Table r ON r.exam_id = e.id
GROUP BY e.language_pair`

// ExamCountsByLanguagePair returns the distinct exam count of every language
// pair ordered by pair name. Pairs without error records are included.
func (r *Reporter) ExamCountsByLanguagePair(ctx context.Context) ([]LanguagePairCount, error) {
	rows, err := r.DB.QueryContext(ctx, examsPerPairQuery+"\nORDER BY e.language_pair")
	if err != nil {
		return nil, fmt.Errorf("exam counts by language pair: %w", err)
	}
	defer rows.Close()
	var out []LanguagePairCount
	for rows.Next() {
		var lp sql.NullString
		var c LanguagePairCount
		if err := rows.Scan(&lp, &c.Exams); err != nil {
			return nil, err
		}
		c.LanguagePair = lp.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FirstLanguagePairCount reads only the first group of the per-pair query,
// as the first version of the report printed it. ok is false when there are no exams.
func (r *Reporter) FirstLanguagePairCount(ctx context.Context) (count int, ok bool, err error) {
	var lp sql.NullString
	err = r.DB.QueryRowContext(ctx, examsPerPairQuery).Scan(&lp, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("first language pair count: %w", err)
	}
	return count, true, nil
}

// TopErrorTypes returns at most limit error types ordered by descending count.
// Equal counts are ordered by type name. The limit is capped at
// DefaultTopErrors; a non-positive limit means DefaultTopErrors.
func (r *Reporter) TopErrorTypes(ctx context.Context, limit int) ([]ErrorTypeCount, error) {
	limit = topLimit(limit)
	rows, err := r.DB.QueryContext(ctx, `SELECT error_type, COUNT(*) AS error_count
FROM errors_Table
GROUP BY error_type
ORDER BY error_count DESC, error_type ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top error types: %w", err)
	}
	defer rows.Close()
	var out []ErrorTypeCount
	for rows.Next() {
		var typ sql.NullString
		var c ErrorTypeCount
		if err := rows.Scan(&typ, &c.Count); err != nil {
			return nil, err
		}
		c.ErrorType = typ.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func topLimit(limit int) int {
	if limit <= 0 || limit > DefaultTopErrors {
		return DefaultTopErrors
	}
	return limit
}

// CountErrors counts error records whose exam matches every field of f.
func (r *Reporter) CountErrors(ctx context.Context, f Filter) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*)
FROM errors_Table
JOIN exams_Table ON errors_Table.exam_id = exams_Table.id
WHERE language_pair = ?
  AND error_type = ?
  AND year = ?`, f.LanguagePair, f.ErrorType, f.Year).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count errors: %w", err)
	}
	return n, nil
}

// Options configures Run.
type Options struct {
	TopErrors int
	Filter    Filter
	// LegacyFirstGroup reports only the first language pair group.
	LegacyFirstGroup bool
}

// Summary holds the answers of one Run.
type Summary struct {
	ExamsPerPair     []LanguagePairCount
	FirstGroupCount  int
	HasFirstGroup    bool
	LegacyFirstGroup bool
	TopLimit         int
	TopErrors        []ErrorTypeCount
	Filter           Filter
	FilteredErrors   int
}

// Run executes all three queries.
func (r *Reporter) Run(ctx context.Context, opts Options) (Summary, error) {
	s := Summary{Filter: opts.Filter, LegacyFirstGroup: opts.LegacyFirstGroup, TopLimit: topLimit(opts.TopErrors)}
	var err error
	if opts.LegacyFirstGroup {
		s.FirstGroupCount, s.HasFirstGroup, err = r.FirstLanguagePairCount(ctx)
	} else {
		s.ExamsPerPair, err = r.ExamCountsByLanguagePair(ctx)
	}
	if err != nil {
		return Summary{}, err
	}
	if s.TopErrors, err = r.TopErrorTypes(ctx, s.TopLimit); err != nil {
		return Summary{}, err
	}
	if s.FilteredErrors, err = r.CountErrors(ctx, opts.Filter); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// Render writes the summary as labelled text lines.
func (s Summary) Render(w io.Writer) error {
	ew := &errWriter{w: w}
	if s.LegacyFirstGroup {
		if s.HasFirstGroup {
			ew.printf("Total number of exams per language pair: %d\n", s.FirstGroupCount)
		} else {
			ew.printf("Total number of exams per language pair: none\n")
		}
	} else {
		ew.printf("Total number of exams per language pair:\n")
		for _, c := range s.ExamsPerPair {
			ew.printf("  %s: %d\n", c.LanguagePair, c.Exams)
		}
	}

	ew.printf("Top %d most common error types:\n", topLimit(s.TopLimit))
	for _, c := range s.TopErrors {
		ew.printf("%s: %d\n", c.ErrorType, c.Count)
	}

	ew.printf("%s errors in %s exams from %d: %d\n", s.Filter.ErrorType, s.Filter.LanguagePair, s.Filter.Year, s.FilteredErrors)
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
