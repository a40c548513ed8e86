package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

// Wrap creates a new error that wraps the given error with additional context.
// If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf creates a new error that wraps the given error with formatted context.
// If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsUserFacing reports whether err is one of the errors that describe a
// problem with the submitted program rather than with the tool itself.
func IsUserFacing(err error) bool {
	var pe *ProgramError
	var nc *NoCircuitError
	var te *TimeoutError
	return errors.As(err, &pe) || errors.As(err, &nc) || errors.As(err, &te)
}
