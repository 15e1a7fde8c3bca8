package gateerr

import (
	"errors"
	"fmt"
)

// Error carries a classified orchestration failure. It wraps the underlying
// cause so callers can still use errors.Is/As against transport errors.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// New builds a classified error with a human-readable message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf extracts the kind from any error. Unclassified errors report
// KindServerError, and nil reports an empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindServerError
}

// Retryable reports whether the error's kind is worth retrying on the
// read path. Unclassified errors are treated as network-level failures
// only when they match known transient shapes (see Classify).
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind.Retryable()
	}
	return Classify(err).Retryable()
}
