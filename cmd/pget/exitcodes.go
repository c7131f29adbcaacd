package main

import (
	"os"

	"github.com/pynosaur/pget/internal/registry"
)

// Exit codes for different error types.
// These enable scripts to distinguish between failure modes.
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0

	// ExitGeneral indicates a general error
	ExitGeneral = 1

	// ExitAppNotFound indicates the app does not exist in the registry
	ExitAppNotFound = 2
)

// exitWithCode exits with the specified exit code
func exitWithCode(code int) {
	os.Exit(code)
}

// exitCodeFor maps an error to its exit code. Unknown apps get their own
// code so scripts can tell "doesn't exist" from "exists but failed".
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if registry.IsAppNotFound(err) {
		return ExitAppNotFound
	}
	return ExitGeneral
}

// worstExitCode returns the more severe of two exit codes. Commands that
// take multiple apps keep going after a failure and exit with the worst
// code seen.
func worstExitCode(a, b int) int {
	if b > a {
		return b
	}
	return a
}
