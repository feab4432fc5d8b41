package domain

import (
	"errors"
	"fmt"
)

var (
	// Stored data does not have the expected shape. Fatal for the
	// operation in progress; never skipped on the append path.
	ErrMalformedRecord = errors.New("malformed record")

	// A submitted field would break the line format if written.
	ErrInvalidField = errors.New("invalid record field")

	ErrInvalidConeID = errors.New("invalid cone id")
)

// Details of a corrupt line in a marker file.
type MalformedRecordError struct {
	Path   string
	Line   int
	Fields int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("malformed record: %s line %d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf(
		"malformed record: %s line %d: got %d fields, want %d",
		e.Path, e.Line, e.Fields, ConeRecordFields,
	)
}

func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }
