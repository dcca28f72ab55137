// Package errext defines the typed error kinds used across Mofka's
// server and client runtimes, in the spirit of k6's errext package:
// a thin wrapper plus interfaces, built entirely on stdlib error
// wrapping rather than a sealed error hierarchy.
package errext

import (
	"errors"
	"fmt"
)

// Kind classifies an Error per the error taxonomy of the Mofka
// protocol. Every RPC-facing failure carries exactly one Kind.
type Kind string

const (
	// InvalidMetadata is returned when a Validator rejects an event,
	// or metadata fails to parse as JSON.
	InvalidMetadata Kind = "invalid_metadata"
	// UnknownTopic is returned when a topic name is not present in
	// the directory.
	UnknownTopic Kind = "unknown_topic"
	// UnknownPartition is returned when a partition UUID is not
	// owned by the Provider addressed.
	UnknownPartition Kind = "unknown_partition"
	// PluginLoadFailed is returned when a "key:lib" policy name
	// fails to load its shared library.
	PluginLoadFailed Kind = "plugin_load_failed"
	// UnknownPlugin is returned when a policy name has no
	// registered factory, with or without a library load attempt.
	UnknownPlugin Kind = "unknown_plugin"
	// Transport is returned for RPC or bulk-transfer failures.
	Transport Kind = "transport"
	// Closed is returned for operations against a destroyed
	// partition or a detached consumer/producer.
	Closed Kind = "closed"
	// BackPressure is a transient, retriable error surfaced when a
	// non-blocking caller would otherwise exceed max-in-flight.
	BackPressure Kind = "back_pressure"
	// Protocol is returned for byte-count mismatches or truncated
	// bulk transfers.
	Protocol Kind = "protocol"
	// PluginUserError wraps any panic/error raised from inside a
	// user-supplied callback (Validator, Selector, Serializer,
	// DataSelector, DataAllocator).
	PluginUserError Kind = "plugin_user_error"
)

// Error is the concrete error type carried across Mofka's internal
// and RPC boundaries. It satisfies HasKind and HasHint, and
// supports errors.Is/As/Unwrap the usual way.
type Error struct {
	kind Kind
	hint string
	err  error
}

// HasKind is implemented by errors that carry a Kind classification.
type HasKind interface {
	error
	Kind() Kind
}

// HasHint is implemented by errors that carry a human-readable hint
// in addition to their message, following k6's errext.HasHint.
type HasHint interface {
	error
	Hint() string
}

// New creates an Error of the given Kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, err: fmt.Errorf(format, args...)}
}

// Wrap attaches a Kind to an existing error without discarding it;
// errors.Unwrap(result) returns err.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{kind: kind, hint: existing.hint, err: err}
	}
	return &Error{kind: kind, err: err}
}

// WithHint returns a copy of err annotated with a hint, the way
// errext.WithHint composes hints from nested wraps.
func WithHint(err *Error, hint string) *Error {
	if err == nil {
		return nil
	}
	if err.hint != "" {
		hint = fmt.Sprintf("%s (%s)", hint, err.hint)
	}
	return &Error{kind: err.kind, hint: hint, err: err.err}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.err.Error()
}

// Kind reports the error's classification.
func (e *Error) Kind() Kind {
	if e == nil {
		return ""
	}
	return e.kind
}

// Hint reports the error's human-readable hint, if any.
func (e *Error) Hint() string {
	if e == nil {
		return ""
	}
	return e.hint
}

// Unwrap exposes the wrapped error for errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind() == kind
	}
	return false
}

// KindOf extracts the Kind of err, or "" if err does not carry one.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind()
	}
	return ""
}
