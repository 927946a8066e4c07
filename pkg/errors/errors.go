// Package errors provides structured error reporting for the shim.
//
// Errors raised while host code is constructing players are returned to the
// caller. Everything that fails later (library load, activation, malformed
// signals) is reported here and never surfaced to host code, because the
// real widget API has no channel to surface it either.
package errors

import (
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindSignal indicates a signal bus or channel error.
	KindSignal
	// KindParsing indicates a malformed signal payload.
	KindParsing
	// KindLoad indicates a failure while loading the real widget library.
	KindLoad
	// KindActivation indicates a failure while upgrading a stub.
	KindActivation
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindSignal:
		return "signal"
	case KindParsing:
		return "parsing"
	case KindLoad:
		return "load"
	case KindActivation:
		return "activation"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// ShimError represents a structured, asynchronously reported error.
type ShimError struct {
	// Op is the operation that failed (e.g., "loader.ensureLoaded").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// Signal is the signal channel name, if applicable.
	Signal string
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *ShimError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("%s [%s] signal=%s: %v", e.Op, e.Kind, e.Signal, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *ShimError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "bridge.migrate").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ParseError represents a signal payload that could not be decoded.
type ParseError struct {
	// Signal is the channel that delivered the payload.
	Signal string
	// Field is the payload field that was missing or mistyped.
	Field string
	// Got is the actual data received.
	Got any
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("failed to parse %s.%s: got %T", e.Signal, e.Field, e.Got)
	}
	return fmt.Sprintf("failed to parse %s payload: got %T", e.Signal, e.Got)
}

// NotFoundError is returned synchronously when a player is constructed
// against a target that does not resolve to an element on the page.
type NotFoundError struct {
	// Target is the id or handle the caller passed.
	Target any
}

func (e *NotFoundError) Error() string {
	if id, ok := e.Target.(string); ok {
		return fmt.Sprintf("target element %q not found", id)
	}
	return fmt.Sprintf("target element not found: %T", e.Target)
}

// ErrorHandler receives errors reported by the shim.
type ErrorHandler interface {
	// HandleError is called when an asynchronous operation fails.
	HandleError(err *ShimError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
