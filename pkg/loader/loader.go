// Package loader writes parsed exam records into the database.
package loader

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/japaniel/examload/pkg/db"
	"github.com/japaniel/examload/pkg/examcsv"
)

// Stats summarizes one Load call.
type Stats struct {
	Rows           int
	ExamsInserted  int
	ExamsSkipped   int
	ErrorsInserted int
	ErrorsSkipped  int
}

// Loader inserts records with insert-or-ignore semantics so a rerun against
// unchanged data leaves the store unchanged.
type Loader struct {
	DB *sql.DB
	// Logger receives per-run details. nil means no logging.
	Logger *zap.Logger
}

// New creates a Loader.
func New(conn *sql.DB, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{DB: conn, Logger: logger}
}

// Load writes every record in a single transaction. Each record yields one
// exam keyed by its id and one error record that references it. Nothing is
// visible until the whole batch commits; any failure rolls everything back.
func (l *Loader) Load(ctx context.Context, records []examcsv.Record) (Stats, error) {
	if l.DB == nil {
		return Stats{}, fmt.Errorf("loader: database is nil")
	}
	log := l.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var st Stats
	err := db.WithTx(ctx, l.DB, func(tx *sql.Tx) error {
		// Exams first so every error record finds its parent.
		for _, rec := range records {
			inserted, err := db.InsertExam(ctx, tx, db.Exam{
				ID:           rec.ID,
				Year:         rec.Year,
				LanguagePair: rec.LanguagePair,
			})
			if err != nil {
				return fmt.Errorf("line %d: %w", rec.Line, err)
			}
			if inserted {
				st.ExamsInserted++
			} else {
				st.ExamsSkipped++
				log.Debug("exam already present", zap.Int64("exam_id", rec.ID))
			}
		}

		for _, rec := range records {
			// One error row per exam row, sharing the source id.
			inserted, err := db.InsertErrorRecord(ctx, tx, db.ErrorRecord{
				ExamID:        rec.ID,
				ErrorType:     rec.ErrorType,
				ErrorSeverity: rec.ErrorSeverity,
				SourceRowID:   rec.ID,
			})
			if err != nil {
				return fmt.Errorf("line %d: %w", rec.Line, err)
			}
			if inserted {
				st.ErrorsInserted++
			} else {
				st.ErrorsSkipped++
			}
		}
		st.Rows = len(records)
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("load records: %w", err)
	}

	log.Info("records loaded",
		zap.Int("rows", st.Rows),
		zap.Int("exams_inserted", st.ExamsInserted),
		zap.Int("exams_skipped", st.ExamsSkipped),
		zap.Int("errors_inserted", st.ErrorsInserted),
		zap.Int("errors_skipped", st.ErrorsSkipped),
	)
	return st, nil
}
