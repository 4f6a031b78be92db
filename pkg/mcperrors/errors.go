// Package mcperrors defines the tagged-sum error kinds every component
// below the ExecutionEngine throws, and the single conversion point that
// turns them into MCP jsonrpc.Error responses (pkg/mcpserver).
package mcperrors

import (
	"errors"
	"fmt"
)

// Kind identifies one of the taxonomy entries from the error handling
// design: each kind maps to a fixed recovery policy, never to an HTTP
// status code directly.
type Kind string

const (
	KindValidation            Kind = "Validation"
	KindAuthentication        Kind = "Authentication"
	KindSyncDrift             Kind = "SyncDrift"
	KindNoDeployment          Kind = "NoDeployment"
	KindDeploymentNotReady    Kind = "DeploymentNotReady"
	KindExecutionError        Kind = "ExecutionError"
	KindTimeout               Kind = "Timeout"
	KindResponseReadTimeout   Kind = "ResponseReadTimeout"
	KindAutoRedeployDisabled  Kind = "AutoRedeployDisabled"
	KindFileSystem            Kind = "FileSystem"
	KindInternal              Kind = "Internal"
)

// Error is the single error type carried between components. Every kind
// in the taxonomy is represented by a distinct Kind value plus an optional
// Data payload (e.g. a SyncDrift diff, an execution stack trace) rather
// than a distinct Go type, so callers can type-switch on Kind without an
// import cycle between every producer package and every consumer.
type Error struct {
	Kind    Kind
	Message string
	// Data carries kind-specific structured detail (SyncDrift diffs,
	// execution stack traces, HTTP status/context) merged, alongside the
	// kind, into the jsonrpc.Error Data payload by pkg/mcpserver.
	Data map[string]any
	// Cause is the underlying error, if any, preserved for %w unwrapping.
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given kind around an existing error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithData attaches a structured data payload and returns e for chaining.
func (e *Error) WithData(data map[string]any) *Error {
	e.Data = data
	return e
}

// As reports whether err (or anything in its chain) is an *Error, and if
// so returns it. A thin convenience wrapper around errors.As.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Is reports whether err's chain contains an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
