package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// InsertExam inserts an exam unless one with the same id already exists.
// It reports whether a new row was written. Existing rows are never updated.
func InsertExam(ctx context.Context, db DBExecutor, e Exam) (bool, error) {
	res, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO exams_Table (id, year, language_pair) VALUES (?, ?, ?)`,
		e.ID, e.Year, strings.TrimSpace(e.LanguagePair),
	)
	if err != nil {
		return false, classify(err, fmt.Sprintf("insert exam %d", e.ID))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertErrorRecord inserts an error record keyed by its source row id.
// A record already loaded from the same source row is skipped. The store
// assigns the primary key. A missing exam fails with ErrConstraintViolation.
func InsertErrorRecord(ctx context.Context, db DBExecutor, r ErrorRecord) (bool, error) {
	// ON CONFLICT targets only the business key so foreign key failures still surface.
	res, err := db.ExecContext(ctx,
		`INSERT INTO errors_Table (exam_id, error_type, error_severity, source_row_id)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(source_row_id) DO NOTHING`,
		r.ExamID, strings.TrimSpace(r.ErrorType), strings.TrimSpace(r.ErrorSeverity), r.SourceRowID,
	)
	if err != nil {
		return false, classify(err, fmt.Sprintf("insert error record for exam %d", r.ExamID))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetExam returns the exam with the given id or ErrNotFound.
func GetExam(ctx context.Context, db DBExecutor, id int64) (Exam, error) {
	var e Exam
	var lp sql.NullString
	var year sql.NullInt64
	err := db.QueryRowContext(ctx,
		`SELECT id, year, language_pair FROM exams_Table WHERE id = ?`, id,
	).Scan(&e.ID, &year, &lp)
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, ErrNotFound
	}
	if err != nil {
		return Exam{}, err
	}
	e.Year = int(year.Int64)
	e.LanguagePair = lp.String
	return e, nil
}

// ListErrorRecords returns every error record ordered by id.
func ListErrorRecords(ctx context.Context, db DBExecutor) ([]ErrorRecord, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, exam_id, error_type, error_severity, source_row_id FROM errors_Table ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ErrorRecord
	for rows.Next() {
		var r ErrorRecord
		var examID, srcID sql.NullInt64
		var typ, sev sql.NullString
		if err := rows.Scan(&r.ID, &examID, &typ, &sev, &srcID); err != nil {
			return nil, err
		}
		r.ExamID = examID.Int64
		r.SourceRowID = srcID.Int64
		r.ErrorType = typ.String
		r.ErrorSeverity = sev.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountExams returns the number of rows in exams_Table.
func CountExams(ctx context.Context, db DBExecutor) (int, error) {
	return count(ctx, db, `SELECT COUNT(*) FROM exams_Table`)
}

// CountErrorRecords returns the number of rows in errors_Table.
func CountErrorRecords(ctx context.Context, db DBExecutor) (int, error) {
	return count(ctx, db, `SELECT COUNT(*) FROM errors_Table`)
}

// OrphanErrorRecords counts error records whose exam is missing.
func OrphanErrorRecords(ctx context.Context, db DBExecutor) (int, error) {
	return count(ctx, db, `SELECT COUNT(*) FROM errors_Table r
		LEFT JOIN exams_Table e ON e.id = r.exam_id
		WHERE e.id IS NULL`)
}

func count(ctx context.Context, db DBExecutor, query string) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
