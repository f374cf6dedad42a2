// Package errs implements the closed error-kind taxonomy shared by every
// subsystem (spec §7). A single Error type carries a Kind plus an
// optional wrapped cause, so callers can branch on Kind with errors.As
// while still getting useful %v/%w chains.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a closed set of error categories. New kinds must be added here
// and nowhere else; callers should never invent ad-hoc sentinel errors
// for conditions this taxonomy already covers.
type Kind string

const (
	InvalidKey           Kind = "InvalidKey"
	InvalidCiphertext    Kind = "InvalidCiphertext"
	CompressionIntegrity Kind = "CompressionIntegrity"
	SignatureInvalid     Kind = "SignatureInvalid"
	FingerprintMismatch  Kind = "FingerprintMismatch"
	Rollback             Kind = "Rollback"
	KeyWornOut           Kind = "KeyWornOut"
	RotationTooSoon      Kind = "RotationTooSoon"
	StorageTransient     Kind = "StorageTransient"
	StoragePermanent     Kind = "StoragePermanent"
	QueueFull            Kind = "QueueFull"
	RateLimited          Kind = "RateLimited"
	LockedOut            Kind = "LockedOut"
	NotFound             Kind = "NotFound"
	IoError              Kind = "IoError"
)

// Error is the concrete error type returned across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error carrying cause, or returns nil if cause is nil.
func Wrap(kind Kind, message string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err (or anything in its chain) has the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or "" if err isn't (or doesn't wrap)
// an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether the error's policy (spec §7) is "retry with
// backoff" rather than fail-fast.
func Retryable(err error) bool {
	return KindOf(err) == StorageTransient
}
