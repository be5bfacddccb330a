// Package agenterrors defines the orchestrator's error taxonomy: each
// category wraps its cause with eris and carries a stable Code so the
// orchestrator can map it to a user-facing message without leaking
// internals.
package agenterrors

import (
	"errors"

	"github.com/rotisserie/eris"
)

// Code is a stable error-category identifier.
type Code string

const (
	CodeInputRejected      Code = "InputRejected"
	CodeValidationError    Code = "ValidationError"
	CodeToolUnavailable    Code = "ToolUnavailable"
	CodeToolFailed         Code = "ToolFailed"
	CodeThrottled          Code = "Throttled"
	CodeTimeout            Code = "Timeout"
	CodeCheckpointConflict Code = "CheckpointConflict"
	CodeInternal           Code = "Internal"
)

// AgentError is the common shape every taxonomy error satisfies.
type AgentError struct {
	Code    Code
	Message string // safe to show the user
	cause   error
}

func (e *AgentError) Error() string {
	if e.cause != nil {
		return string(e.Code) + ": " + e.cause.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *AgentError) Unwrap() error { return e.cause }

func newErr(code Code, userMessage string, cause error) *AgentError {
	wrapped := cause
	if cause != nil {
		wrapped = eris.Wrap(cause, string(code))
	}
	return &AgentError{Code: code, Message: userMessage, cause: wrapped}
}

// InputRejected terminates the turn with a precise explanation; no tool
// calls are performed. Raised by the Verifier's input gate.
func InputRejected(reason string) *AgentError {
	return newErr(CodeInputRejected, reason, nil)
}

// ValidationError covers schema/SQL/UUID validation failures.
func ValidationError(reason string, cause error) *AgentError {
	return newErr(CodeValidationError, reason, cause)
}

// ToolUnavailable means the tool's circuit breaker is open.
func ToolUnavailable(tool string, cause error) *AgentError {
	return newErr(CodeToolUnavailable, "the "+tool+" tool is temporarily unavailable", cause)
}

// ToolFailed wraps an external error surfaced to the planner as a tool
// result; the planner may choose an alternative tool or answer without it.
func ToolFailed(tool string, cause error) *AgentError {
	return newErr(CodeToolFailed, "the "+tool+" tool failed", cause)
}

// Throttled marks an error as locally retryable (exponential backoff).
func Throttled(cause error) *AgentError {
	return newErr(CodeThrottled, "rate limited, retrying", cause)
}

// Timeout means the call or turn budget was exceeded.
func Timeout(scope string, cause error) *AgentError {
	return newErr(CodeTimeout, scope+" timed out", cause)
}

// CheckpointConflict means the CS per-conversation lock could not be
// acquired or a write raced another writer.
func CheckpointConflict(cause error) *AgentError {
	return newErr(CodeCheckpointConflict, "checkpoint conflict", cause)
}

// Internal is a bug; the user sees only a generic message, the cause is
// logged with the correlation id by the caller.
func Internal(cause error) *AgentError {
	return newErr(CodeInternal, "an internal error occurred", cause)
}

// CodeOf extracts the Code from err, returning CodeInternal if err does not
// wrap an *AgentError.
func CodeOf(err error) Code {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// SafeMessage returns the user-facing message for err — never the
// underlying cause, conversation id, or a stack trace.
func SafeMessage(err error) string {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "an internal error occurred"
}

// ShouldRetryLocally reports whether err's category is Throttled — the only
// category retried inline before surfacing to the planner.
func ShouldRetryLocally(err error) bool {
	return CodeOf(err) == CodeThrottled
}

// TransitionsToRecover reports whether err should drive the state machine to
// Recover (Timeout, CheckpointConflict).
func TransitionsToRecover(err error) bool {
	switch CodeOf(err) {
	case CodeTimeout, CodeCheckpointConflict:
		return true
	default:
		return false
	}
}
