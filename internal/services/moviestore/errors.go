package moviestore

import (
	"errors"
	"fmt"
)

// ErrorKind tags a store failure
type ErrorKind string

const (
	KindUnauthenticated  ErrorKind = "unauthenticated"
	KindNotFound         ErrorKind = "not-found"
	KindPermissionDenied ErrorKind = "permission-denied"
	KindInvalid          ErrorKind = "invalid-argument"
	KindUnavailable      ErrorKind = "unavailable"
)

// StoreError is returned by every adapter operation that fails
type StoreError struct {
	Op   string // subscribe, add, update, remove, get, list
	Kind ErrorKind
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Message returns a message suitable for showing to the user
func (e *StoreError) Message() string {
	switch e.Kind {
	case KindUnauthenticated:
		return "Please log in to manage your movies."
	case KindNotFound:
		return "That movie no longer exists."
	case KindPermissionDenied:
		return "You don't have access to that movie."
	case KindInvalid:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "Invalid movie."
	default:
		return "Your movies could not be reached. Please try again."
	}
}

// IsKind reports whether err is a StoreError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr) && storeErr.Kind == kind
}

// NewError tags err with the operation and kind
func NewError(op string, kind ErrorKind, err error) *StoreError {
	return &StoreError{Op: op, Kind: kind, Err: err}
}
