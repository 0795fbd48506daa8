package emergency

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is to classify; the message shown to callers is the
// *Error's own.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrValidation         = errors.New("validation failed")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrNotFoundOrConflict = errors.New("not found or conflict")
)

// Error is a domain failure with a caller-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	errUnauthorized     = newError(ErrUnauthorized, "Unauthorized")
	errMissingCoords    = newError(ErrValidation, "latitude and longitude are required")
	errCoordsOutOfRange = newError(ErrValidation, "latitude must be within [-90, 90] and longitude within [-180, 180]")
	errTypeTooLong      = newError(ErrValidation, fmt.Sprintf("emergency_type must be at most %d characters", maxEmergencyTypeLen))
	errNoteTooLong      = newError(ErrValidation, fmt.Sprintf("note must be at most %d characters", maxNoteLen))
	errNoHospitalLoc    = newError(ErrPreconditionFailed, "Hospital location (latitude/longitude) is not set")
	errNotPending       = newError(ErrNotFoundOrConflict, "Request not found or not pending")
	errNotAssigned      = newError(ErrNotFoundOrConflict, "Request not found or not assigned to this hospital")
)

// StoreError wraps a persistence failure. Any write it interrupted was rolled
// back.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
