package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation references a student ID
	// that is not in the store.
	ErrNotFound = errors.New("student not found")

	// ErrDuplicateID is returned by Insert when the student ID is
	// already present.
	ErrDuplicateID = errors.New("student id already exists")
)

// CorruptError means the backing file exists but could not be parsed
// into rows of the expected shape.
type CorruptError struct {
	Path   string
	Line   int // 1-based line in the file, 0 if unknown
	Reason string
}

func (e *CorruptError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("store file %s corrupt at line %d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("store file %s corrupt: %s", e.Path, e.Reason)
}
