// Package apperror defines the error kinds surfaced to API callers.
//
// Stores return their own sentinel errors; services translate those into an
// *Error carrying a Kind so the transport layer can pick a status code and a
// stable machine-readable code without inspecting messages.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers.
type Kind string

const (
	KindValidation            Kind = "validation_error"
	KindConflict              Kind = "conflict"
	KindUnauthenticated       Kind = "unauthenticated"
	KindForbidden             Kind = "forbidden"
	KindNotFound              Kind = "not_found"
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindEmailNotVerified      Kind = "email_not_verified"
	KindInvalidOrExpiredToken Kind = "invalid_or_expired_token"
	KindAlreadyVerified       Kind = "already_verified"
	KindUserNotFound          Kind = "user_not_found"
	KindDependencyFailure     Kind = "dependency_failure"
	KindInternal              Kind = "internal_error"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	// Field names the offending input for validation errors.
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation reports a missing or malformed input field.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Field: field}
}

func Conflict(message string) *Error        { return New(KindConflict, message) }
func Forbidden(message string) *Error       { return New(KindForbidden, message) }
func NotFound(message string) *Error        { return New(KindNotFound, message) }
func Unauthenticated(message string) *Error { return New(KindUnauthenticated, message) }

// Dependency reports a failed call to the blob store or the notifier.
func Dependency(message string, err error) *Error {
	return Wrap(KindDependencyFailure, message, err)
}

// Internal wraps an unexpected failure; its message is never shown to callers.
func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
