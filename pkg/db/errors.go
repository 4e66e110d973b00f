package db

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrConstraintViolation is returned when a write violates a table constraint,
	// for example an error record pointing at a missing exam.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrNotFound is returned when a requested record doesn't exist.
	ErrNotFound = errors.New("record not found")
)

// classify maps driver constraint errors onto ErrConstraintViolation while
// keeping the driver error in the chain.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%s: %w: %w", op, ErrConstraintViolation, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsForeignKeyViolation reports whether err was caused by a failed foreign key check.
func IsForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
