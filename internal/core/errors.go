package core

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrExport          = errors.New("export failed")
	ErrStorage         = errors.New("storage failure")
	ErrNothingToExport = errors.New("no expenses to export")

	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidMonth  = errors.New("invalid month, expected YYYY-MM")
	ErrEmptyCategory = errors.New("empty category")
	ErrInvalidLimit  = errors.New("limit must be positive")
)

// ValidationError reports user input that was rejected before any write.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, value string, err error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Err: err}
}

// ExportError is returned when an export cannot be produced. No file is left
// behind when it occurs.
type ExportError struct {
	Dir string
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export to %s: %v", e.Dir, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

func (e *ExportError) Is(target error) bool { return target == ErrExport }

// StorageError wraps failures of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }
