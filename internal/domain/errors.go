package domain

import (
	"errors"
	"fmt"
)

// Error kinds for per-record and stage-level failures. Malformed and unlinked
// records are counted and skipped, never fatal; a missing required input
// aborts the stage because downstream stages cannot produce meaningful output.
var (
	ErrMalformedRecord      = errors.New("malformed record")
	ErrUnlinkedRecord       = errors.New("unlinked record")
	ErrMissingRequiredInput = errors.New("missing required input")
)

// MalformedRecordError describes why a single row was rejected during
// normalization. It unwraps to ErrMalformedRecord.
type MalformedRecordError struct {
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: field %q: %s", e.Field, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error { return ErrMalformedRecord }

func malformed(field, reason string) error {
	return &MalformedRecordError{Field: field, Reason: reason}
}
