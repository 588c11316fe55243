// Package clnrmerr defines the error taxonomy surfaced by the cleanroom
// core. Every kind wraps an underlying cause with github.com/pkg/errors so
// that callers can still reach it with errors.Cause, while exposing a Kind
// that the CLI maps to an exit code.
package clnrmerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the error taxonomy entries from the design doc.
type Kind string

const (
	// KindConfig covers schema/shape/unknown-kind violations.
	KindConfig Kind = "config_error"
	// KindRender covers template rendering failures.
	KindRender Kind = "render_error"
	// KindParse covers malformed TOML after rendering.
	KindParse Kind = "parse_error"
	// KindIO covers filesystem/cache I/O failures.
	KindIO Kind = "io_error"
	// KindContainer covers backend interaction failures.
	KindContainer Kind = "container_error"
	// KindTimeout covers deadline exceeded.
	KindTimeout Kind = "timeout_error"
	// KindValidation covers a failed expectation. This is the expected
	// failure mode, not an exceptional one.
	KindValidation Kind = "validation_error"
	// KindExecution is the catch-all for orchestrator inconsistencies.
	KindExecution Kind = "execution_error"
)

// Error is a structured cleanroom error: a kind, optional located context
// (file, scenario, dimension), and the wrapped cause.
type Error struct {
	Kind     Kind
	Scenario string
	File     string
	Dim      string
	cause    error
}

func (e *Error) Error() string {
	loc := ""
	if e.Scenario != "" {
		loc += fmt.Sprintf(" scenario=%s", e.Scenario)
	}
	if e.File != "" {
		loc += fmt.Sprintf(" file=%s", e.File)
	}
	if e.Dim != "" {
		loc += fmt.Sprintf(" dim=%s", e.Dim)
	}
	if loc == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.cause)
	}
	return fmt.Sprintf("%s:%s: %s", e.Kind, loc, e.cause)
}

// Unwrap lets errors.Is/errors.As see through to the cause.
func (e *Error) Unwrap() error { return e.cause }

// Cause implements the github.com/pkg/errors Causer interface.
func (e *Error) Cause() error { return e.cause }

// New builds a new *Error of the given kind wrapping msg as the cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, cause: errors.New(msg)}
}

// Wrap builds a new *Error of the given kind wrapping err with msg context.
// Returns nil if err is nil, so it can be used inline in a return statement.
func Wrap(kind Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.Wrap(err, msg)}
}

// Wrapf is Wrap with fmt.Sprintf-style formatting.
func Wrapf(kind Kind, err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.Wrapf(err, format, args...)}
}

// WithScenario sets the Scenario field and returns the receiver for chaining.
func (e *Error) WithScenario(name string) *Error {
	if e == nil {
		return nil
	}
	e.Scenario = name
	return e
}

// WithFile sets the File field and returns the receiver for chaining.
func (e *Error) WithFile(path string) *Error {
	if e == nil {
		return nil
	}
	e.File = path
	return e
}

// WithDim sets the Dim field and returns the receiver for chaining.
func (e *Error) WithDim(dim string) *Error {
	if e == nil {
		return nil
	}
	e.Dim = dim
	return e
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// ExitCode maps an error's Kind to the process exit code documented in
// spec.md section 6.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	kind, ok := KindOf(err)
	if !ok {
		return 3
	}
	switch kind {
	case KindValidation:
		return 1
	case KindConfig, KindRender, KindParse:
		return 2
	case KindContainer, KindIO, KindExecution, KindTimeout:
		return 3
	default:
		return 3
	}
}
