package predicate

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a lifecycle failure.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindUnauthorized      Kind = "unauthorized"
	KindInvalidState      Kind = "invalid_state"
	KindOracleUnavailable Kind = "oracle_unavailable"
	KindInvalidThreshold  Kind = "invalid_threshold"
	KindInternal          Kind = "internal"
)

// Error is the failure value returned by every manager operation.
type Error struct {
	Kind     Kind
	Messages []string
	Err      error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrOracleUnavailable = &Error{Kind: KindOracleUnavailable}
	ErrInvalidThreshold  = &Error{Kind: KindInvalidThreshold}
	ErrInternal          = &Error{Kind: KindInternal}
)

// ErrNoRecord is returned by Store implementations when a predicate id is unknown.
var ErrNoRecord = errors.New("predicate: record not found")

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if len(e.Messages) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Messages, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so callers can match against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the failure kind; errors outside this package are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Messages: []string{fmt.Sprintf(format, args...)}}
}

func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Messages: []string{fmt.Sprintf(format, args...)}, Err: err}
}
