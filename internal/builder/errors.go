package builder

import "fmt"

// MalformedSourceError means the source tarball could not be used: it
// failed to extract, or the extracted tree has no build descriptor.
type MalformedSourceError struct {
	App    string
	Reason string
	Err    error
}

func (e *MalformedSourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed source for %s: %s: %v", e.App, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed source for %s: %s", e.App, e.Reason)
}

func (e *MalformedSourceError) Unwrap() error { return e.Err }

// Suggestion returns an actionable hint for the user.
func (e *MalformedSourceError) Suggestion() string {
	return fmt.Sprintf("The %s source tarball looks broken. Report this to the app's maintainers", e.App)
}

// ToolchainMissingError means no build toolchain executable was found on
// this machine. A local environment problem, never retried.
type ToolchainMissingError struct {
	Candidates []string
}

func (e *ToolchainMissingError) Error() string {
	return fmt.Sprintf("build toolchain not found (tried %v)", e.Candidates)
}

// Suggestion returns an actionable hint for the user.
func (e *ToolchainMissingError) Suggestion() string {
	return "Install bazelisk (https://github.com/bazelbuild/bazelisk) to enable source builds"
}

// BuildFailedError means the toolchain ran and exited nonzero. Output
// carries the captured toolchain output for diagnosis.
type BuildFailedError struct {
	App    string
	Target string
	Output string
	Err    error
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("build of %s (target %s) failed: %v", e.App, e.Target, e.Err)
}

func (e *BuildFailedError) Unwrap() error { return e.Err }

// OutputMissingError means the build succeeded but the expected output
// binary was absent, or more than one candidate matched.
type OutputMissingError struct {
	App        string
	Candidates []string // paths that were checked or matched
	Ambiguous  bool
}

func (e *OutputMissingError) Error() string {
	if e.Ambiguous {
		return fmt.Sprintf("build of %s produced multiple candidate binaries: %v", e.App, e.Candidates)
	}
	return fmt.Sprintf("build of %s produced no output binary (looked for %v)", e.App, e.Candidates)
}
