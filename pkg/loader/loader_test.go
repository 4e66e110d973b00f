package loader

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/japaniel/examload/pkg/db"
	"github.com/japaniel/examload/pkg/examcsv"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.InitDB(context.Background(), conn))
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sampleRecords(t *testing.T) []examcsv.Record {
	t.Helper()
	recs, err := examcsv.ParseString("id,year,language_pair,error_type,error_severity\n" +
		"1,2017,English-French,Spelling,Minor\n" +
		"2,2018,German-English,Grammar,Major\n")
	require.NoError(t, err)
	return recs
}

func TestLoadInsertsBothTables(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	st, err := New(conn, zaptest.NewLogger(t)).Load(ctx, sampleRecords(t))
	require.NoError(t, err)
	assert.Equal(t, Stats{Rows: 2, ExamsInserted: 2, ErrorsInserted: 2}, st)

	exams, err := db.CountExams(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 2, exams)
	errs, err := db.CountErrorRecords(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 2, errs)

	recs, err := db.ListErrorRecords(ctx, conn)
	require.NoError(t, err)
	for _, r := range recs {
		assert.Equal(t, r.SourceRowID, r.ExamID)
	}
	orphans, err := db.OrphanErrorRecords(ctx, conn)
	require.NoError(t, err)
	assert.Zero(t, orphans)
}

func TestLoadTwiceIsIdempotent(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	l := New(conn, nil)

	_, err := l.Load(ctx, sampleRecords(t))
	require.NoError(t, err)
	before, err := db.ListErrorRecords(ctx, conn)
	require.NoError(t, err)
	exam1, err := db.GetExam(ctx, conn, 1)
	require.NoError(t, err)

	st, err := l.Load(ctx, sampleRecords(t))
	require.NoError(t, err)
	assert.Equal(t, Stats{Rows: 2, ExamsSkipped: 2, ErrorsSkipped: 2}, st)

	after, err := db.ListErrorRecords(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	exam1Again, err := db.GetExam(ctx, conn, 1)
	require.NoError(t, err)
	assert.Equal(t, exam1, exam1Again)
	n, err := db.CountExams(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLoadDuplicateIDInSameBatchKeepsFirst(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	recs := []examcsv.Record{
		{ID: 1, Year: 2017, LanguagePair: "English-French", ErrorType: "Spelling", ErrorSeverity: "Minor", Line: 2},
		{ID: 1, Year: 2019, LanguagePair: "German-English", ErrorType: "Grammar", ErrorSeverity: "Major", Line: 3},
	}
	st, err := New(conn, nil).Load(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, 1, st.ExamsInserted)
	assert.Equal(t, 1, st.ExamsSkipped)

	e, err := db.GetExam(ctx, conn, 1)
	require.NoError(t, err)
	assert.Equal(t, 2017, e.Year)
	assert.Equal(t, "English-French", e.LanguagePair)
}

func TestLoadFailureRollsBack(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	// Reject the second exam so the failure comes after the first insert succeeded.
	_, err := conn.ExecContext(ctx, `CREATE TRIGGER reject_exam BEFORE INSERT ON exams_Table
		WHEN NEW.id = 2 BEGIN SELECT RAISE(ABORT, 'exam rejected'); END`)
	require.NoError(t, err)

	_, err = New(conn, nil).Load(ctx, sampleRecords(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrConstraintViolation)

	n, err := db.CountExams(ctx, conn)
	require.NoError(t, err)
	assert.Zero(t, n, "no visible change after a failed load")
}

func TestLoadEmpty(t *testing.T) {
	conn := setupTestDB(t)
	st, err := New(conn, nil).Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}
