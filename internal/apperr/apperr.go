// Package apperr defines the error taxonomy shared by the credential and
// session services. Every expected failure carries a machine-readable
// kind so handlers can map it to an HTTP status without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind int

const (
	// KindInternal covers unexpected failures: storage errors, corrupt
	// data, signing failures.
	KindInternal Kind = iota
	// KindAuthentication means identity was not established: bad
	// credentials, bad or expired token, bad TOTP code during login.
	KindAuthentication
	// KindAuthorization means identity was established but the action is
	// forbidden: inactive account or tenant, wrong role, tenant mismatch.
	KindAuthorization
	// KindTOTP means a two-factor workflow was misused: verify without
	// setup, disable while disabled, missing code.
	KindTOTP
	// KindValidation means the input shape was malformed.
	KindValidation
	// KindNotFound means a referenced tenant or user does not exist.
	KindNotFound
	// KindConflict means a uniqueness constraint was violated.
	KindConflict
)

// Error is an error with a taxonomy kind and a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a kind and message. The original error stays
// reachable through errors.Unwrap for logging.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Internal wraps an unexpected failure.
func Internal(err error, msg string) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf extracts the kind of err; unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to its HTTP status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindTOTP:
		return http.StatusBadRequest
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the public message for err. Internal errors collapse
// to a generic message so storage details never leak to clients.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "internal server error"
}
