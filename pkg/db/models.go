package db

// Exam is one sitting of a translation exam. ID comes from the source data.
type Exam struct {
	ID           int64
	Year         int
	LanguagePair string
}

// ErrorRecord is one error observed in an exam's translation.
type ErrorRecord struct {
	ID            int64
	ExamID        int64
	ErrorType     string
	ErrorSeverity string
	// SourceRowID is the id of the source row the record was loaded from.
	SourceRowID int64
}

// Table names shared with external tools reading the same file.
const (
	ExamsTable  = "exams_Table"
	ErrorsTable = "errors_Table"
)
