// Package errors provides the shared error taxonomy. The keys, documents and
// replication domains wrap these sentinels with their own context, and the
// HTTP layer maps them to status codes without inspecting domain types.
package errors

import (
	"errors"
	"fmt"
)

// Sentinels shared across all domain modules.
var (
	// ErrNotFound indicates the requested document, backup or checkpoint does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a revision conflict with an existing document.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the session is locked or the access code was
	// rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller may not perform the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrUnavailable indicates a required dependency (vault, peer, key material)
	// cannot serve the request right now. Callers may retry or degrade.
	ErrUnavailable = errors.New("unavailable")
)

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New for consistency.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}
