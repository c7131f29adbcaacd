// Package platform identifies the host platform for release asset lookup.
//
// Release binaries are published as assets named {app}-{os}-{arch}, e.g.
// yday-darwin-arm64. The token here must match that naming convention,
// which uses x86_64 rather than Go's amd64.
package platform

import (
	"runtime"

	"github.com/pynosaur/pget/internal/log"
)

// Token is the canonical host platform identifier, computed once per
// process and immutable afterwards.
type Token struct {
	OS   string
	Arch string
}

// String returns the asset-name form, e.g. "darwin-arm64".
func (t Token) String() string {
	return t.OS + "-" + t.Arch
}

// Current returns the token for the running host. It never fails: an
// unrecognized OS or architecture passes through as-is with a warning,
// so commands like search and list still work on exotic hosts.
func Current(logger log.Logger) Token {
	return forHost(runtime.GOOS, runtime.GOARCH, logger)
}

func forHost(goos, goarch string, logger log.Logger) Token {
	if logger == nil {
		logger = log.NewNoop()
	}

	os := goos
	switch goos {
	case "darwin", "linux", "windows":
	default:
		logger.Warn("unrecognized operating system, release assets may not match", "os", goos)
	}

	var arch string
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "arm64"
	case "386":
		arch = "i386"
	default:
		arch = goarch
		logger.Warn("unrecognized architecture, release assets may not match", "arch", goarch)
	}

	return Token{OS: os, Arch: arch}
}
