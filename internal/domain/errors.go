package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when a submission names a participant that was never registered.
	ErrUnauthorized = errors.New("unknown participant")
	// ErrParticipantNotFound is returned by lookups for a participant id that has no row.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrCatalogUnavailable indicates the exercise catalog could not be loaded.
	ErrCatalogUnavailable = errors.New("exercise catalog unavailable")
)

// ValidationKind names the rule a rejected input violated.
type ValidationKind int

const (
	ValidationEmpty ValidationKind = iota + 1
	ValidationTooLong
)

// ValidationError reports user-correctable input problems.
type ValidationError struct {
	Field string
	Kind  ValidationKind
	Max   int
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case ValidationEmpty:
		return fmt.Sprintf("%s cannot be empty", e.Field)
	case ValidationTooLong:
		return fmt.Sprintf("%s too long (max %d characters)", e.Field, e.Max)
	default:
		return fmt.Sprintf("invalid %s", e.Field)
	}
}

// StoreError wraps connectivity and constraint failures of the persistence layer.
// Its message is for logs only; transports must not echo it to clients.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "store: " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// WrapStore tags err with the store operation that produced it. Sentinel domain
// errors pass through untouched so callers can still match them.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrParticipantNotFound) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
