package errors

import (
	"fmt"
	"time"
)

// ProgramError represents a submitted program that failed to parse or
// raised while it was being executed.
type ProgramError struct {
	// Message is the interpreter's description of the failure
	Message string

	// Line is the 1-based source line that failed, or 0 when unknown
	Line int
}

// Error implements the error interface.
func (e *ProgramError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d)", e.Message, e.Line)
	}
	return e.Message
}

// Payload returns the message/line pair shown to users, e.g.
// ["NameError: x is not defined", " line 4"]. The line part is empty
// when the offending line could not be recovered.
func (e *ProgramError) Payload() [2]string {
	if e.Line > 0 {
		return [2]string{e.Message, fmt.Sprintf(" line %d", e.Line)}
	}
	return [2]string{e.Message, ""}
}

// NoCircuitError is returned when a program does not contain exactly one
// quantum circuit entry point.
type NoCircuitError struct {
	// Reason explains what was detected instead
	Reason string
}

// Error implements the error interface.
func (e *NoCircuitError) Error() string {
	if e.Reason != "" {
		return "Please run exactly one quantum circuit. (" + e.Reason + ")"
	}
	return "Please run exactly one quantum circuit."
}

// TimeoutError is returned when program execution exceeds its wall-clock bound.
type TimeoutError struct {
	// Limit is the bound that was exceeded
	Limit time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return "Time limit exceeded"
}

// Payload mirrors ProgramError.Payload so callers can render both the same way.
func (e *TimeoutError) Payload() [2]string {
	return [2]string{e.Error(), "line unknown"}
}

// TokenError represents a session token that could not be decoded.
type TokenError struct {
	// Reason explains what is wrong with the token
	Reason string

	// Cause is the underlying decode error
	Cause error
}

// Error implements the error interface.
func (e *TokenError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid session token: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid session token: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TokenError) Unwrap() error {
	return e.Cause
}

// ConfigError represents configuration problems.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "exec.timeout")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := "config error"
	if e.Key != "" {
		msg = fmt.Sprintf("%s at %s", msg, e.Key)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
