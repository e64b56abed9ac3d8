package model

import (
	"errors"
	"fmt"
)

// StoreError represents a failure surfaced by the versioned store or a
// lifecycle transition.
//
// The core never retries: every operation returns the failure to its
// caller, who decides whether to retry the surrounding transaction or
// surface it. The single local-recovery exception is graph traversal,
// which drops unresolvable successors instead of failing (see
// store.Successors).
type StoreError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ObjectID identifies the affected record, if any.
	ObjectID string

	// Tier identifies the tier context of the failure, if any.
	Tier string

	// Err is the wrapped cause, if any.
	Err error
}

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the object is absent at every tier
	// visible in the given scope.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidState indicates a lifecycle operation was invoked on
	// a change set or edit session not in the required status.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeConflict indicates a concurrent apply/save lost a race:
	// the status changed between read and transition.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodePersistence indicates an underlying transaction failure,
	// including serialization failures reported by the database.
	ErrCodePersistence ErrorCode = "PERSISTENCE"

	// ErrCodeSerialization indicates a stored payload cannot be decoded
	// or validated against its declared kind. Always fatal to the
	// operation; signals a schema mismatch.
	ErrCodeSerialization ErrorCode = "SERIALIZATION"
)

// Error implements the error interface.
func (e *StoreError) Error() string {
	switch {
	case e.ObjectID != "" && e.Tier != "":
		return fmt.Sprintf("%s: %s (object=%s, tier=%s)", e.Code, e.Message, e.ObjectID, e.Tier)
	case e.ObjectID != "":
		return fmt.Sprintf("%s: %s (object=%s)", e.Code, e.Message, e.ObjectID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap exposes the cause for errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a NOT_FOUND store error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsInvalidState reports whether err is an INVALID_STATE store error.
func IsInvalidState(err error) bool {
	return hasCode(err, ErrCodeInvalidState)
}

// IsConflict reports whether err is a CONFLICT store error.
func IsConflict(err error) bool {
	return hasCode(err, ErrCodeConflict)
}

// IsSerialization reports whether err is a SERIALIZATION store error.
func IsSerialization(err error) bool {
	return hasCode(err, ErrCodeSerialization)
}

func hasCode(err error, code ErrorCode) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// NewNotFound creates a StoreError for an object absent at every
// visible tier.
func NewNotFound(objectID, tier string) *StoreError {
	return &StoreError{
		Code:     ErrCodeNotFound,
		Message:  "no row at any visible tier",
		ObjectID: objectID,
		Tier:     tier,
	}
}

// NewInvalidState creates a StoreError for a lifecycle operation on the
// wrong status.
func NewInvalidState(id, have, want string) *StoreError {
	return &StoreError{
		Code:     ErrCodeInvalidState,
		Message:  fmt.Sprintf("status is %q, requires %q", have, want),
		ObjectID: id,
	}
}

// NewConflict creates a StoreError for a lost lifecycle race.
func NewConflict(id, op string) *StoreError {
	return &StoreError{
		Code:     ErrCodeConflict,
		Message:  fmt.Sprintf("%s lost a concurrent transition race", op),
		ObjectID: id,
	}
}

// NewPersistence wraps an underlying database failure.
func NewPersistence(op string, err error) *StoreError {
	return &StoreError{
		Code:    ErrCodePersistence,
		Message: op,
		Err:     err,
	}
}

// NewSerialization wraps a payload decode/validation failure.
func NewSerialization(objectID string, err error) *StoreError {
	return &StoreError{
		Code:     ErrCodeSerialization,
		Message:  "payload does not match its declared kind",
		ObjectID: objectID,
		Err:      err,
	}
}
