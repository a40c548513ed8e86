package main

import (
	"fmt"
	"io"

	cierrors "circinspect/pkg/errors"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitFailed       = 1
	ExitProgramError = 2
	ExitNoCircuit    = 3
)

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var pe *cierrors.ProgramError
	var nc *cierrors.NoCircuitError
	switch {
	case err == nil:
		return ExitSuccess
	case cierrors.As(err, &pe):
		return ExitProgramError
	case cierrors.As(err, &nc):
		return ExitNoCircuit
	default:
		return ExitFailed
	}
}

// handleExitError prints err and returns the exit status for it. Errors
// that are not about the submitted program get a pointer to the logs.
func handleExitError(err error, w io.Writer) int {
	if err == nil {
		return ExitSuccess
	}
	var pe *cierrors.ProgramError
	if cierrors.As(err, &pe) {
		fmt.Fprintln(w, "error:", pe.Error())
	} else {
		fmt.Fprintln(w, "error:", err.Error())
	}
	if !cierrors.IsUserFacing(err) {
		fmt.Fprintln(w, "\nSuggestion: rerun with --log-level debug for details")
	}
	return exitCode(err)
}
