// Package kinderr classifies errors by kind rather than by type, matching
// the error taxonomy used across the acquisition pipeline: validation,
// not-found, conflict, transient-upstream, resource-exhausted,
// corrupt-data, and internal. Retry machinery and CLI exit-code mapping
// both dispatch on Kind rather than on Go error types.
package kinderr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of an error for retry and reporting
// decisions.
type Kind string

const (
	Validation        Kind = "validation"
	NotFound          Kind = "not_found"
	Conflict          Kind = "conflict"
	TransientUpstream Kind = "transient_upstream"
	PermanentUpstream Kind = "permanent_upstream"
	ResourceExhausted Kind = "resource_exhausted"
	CorruptData       Kind = "corrupt_data"
	Internal          Kind = "internal"
)

// Error wraps an underlying error with a Kind and optional structured
// details (e.g. the conflicting identifier on a Conflict error).
type Error struct {
	kind    Kind
	msg     string
	details map[string]interface{}
	cause   error
}

// New builds a kind error with a message.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Wrap attaches a kind to an existing error.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{kind: kind, msg: msg, cause: cause}
}

// WithDetail attaches a key/value pair, returning the same error for
// chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.details == nil {
		e.details = make(map[string]interface{})
	}
	e.details[key] = value
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Unwrap allows errors.Is/errors.As to see through the wrapper.
func (e *Error) Unwrap() error {
	return e.cause
}

// Kind returns the error's category.
func (e *Error) Kind() Kind {
	return e.kind
}

// Details returns the attached structured details, possibly nil.
func (e *Error) Details() map[string]interface{} {
	return e.details
}

// KindOf extracts the Kind from err, defaulting to Internal if err does
// not wrap a *Error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ke *Error
	if errors.As(err, &ke) {
		return ke.kind
	}
	return Internal
}

// Retryable reports whether an error of this kind may be retried by the
// queue's backoff machinery.
func Retryable(err error) bool {
	switch KindOf(err) {
	case TransientUpstream, ResourceExhausted:
		return true
	default:
		return false
	}
}

// ExitCode maps an error to the CLI exit codes: 0 success, 1 generic,
// 2 usage, 3 not-found, 4 conflict, 5 upstream unavailable.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case Validation:
		return 2
	case NotFound:
		return 3
	case Conflict:
		return 4
	case TransientUpstream, PermanentUpstream:
		return 5
	default:
		return 1
	}
}
