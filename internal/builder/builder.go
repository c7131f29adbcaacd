// Package builder turns a release source tarball into an executable by
// invoking the bazel toolchain on the conventional {app}_bin target.
//
// Each build runs inside a scoped temporary directory that is removed on
// every exit path, so a failed build leaves nothing behind.
package builder

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/pynosaur/pget/internal/log"
)

// Toolchain executables, in preference order. bazelisk picks the bazel
// version the source tree asks for, so it wins when both are present.
var toolchainCandidates = []string{"bazelisk", "bazel"}

// Build descriptor files bazel recognizes at the source root. bzlmod
// trees carry MODULE.bazel without a root BUILD file.
var descriptorNames = []string{"MODULE.bazel", "BUILD.bazel", "BUILD"}

// Result is a completed build: the produced binary plus any doc files
// found under doc/ in the source root, keyed by file name.
type Result struct {
	Binary []byte
	Doc    map[string][]byte
}

// Runner executes build toolchain commands. Split out so tests can
// substitute a fake and assert on the invocation.
type Runner interface {
	// LookPath reports the path of an executable, like exec.LookPath.
	LookPath(name string) (string, error)
	// Run executes name with args in dir and returns combined output.
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Builder builds apps from source tarballs.
type Builder struct {
	runner Runner
	logger log.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithRunner overrides the toolchain runner. Used by tests.
func WithRunner(r Runner) Option {
	return func(b *Builder) { b.runner = r }
}

// New creates a Builder that shells out to bazelisk or bazel.
func New(logger log.Logger, opts ...Option) *Builder {
	if logger == nil {
		logger = log.NewNoop()
	}
	b := &Builder{runner: execRunner{}, logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build extracts the source tarball, runs the toolchain on //:{app}_bin,
// and returns the produced binary. Failures are typed: see
// MalformedSourceError, ToolchainMissingError, BuildFailedError and
// OutputMissingError.
func (b *Builder) Build(ctx context.Context, source io.Reader, app string) (*Result, error) {
	workDir, err := os.MkdirTemp("", "pget-build-"+app+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create build directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	if err := extractTarGz(source, workDir); err != nil {
		return nil, &MalformedSourceError{App: app, Reason: "tarball extraction failed", Err: err}
	}

	srcRoot := sourceRoot(workDir)
	if !hasDescriptor(srcRoot) {
		return nil, &MalformedSourceError{App: app, Reason: "no MODULE.bazel or BUILD file at source root"}
	}

	toolchain, err := b.findToolchain()
	if err != nil {
		return nil, err
	}

	target := "//:" + app + "_bin"
	b.logger.Info("building from source", "app", app, "toolchain", toolchain, "target", target)

	output, err := b.runner.Run(ctx, srcRoot, toolchain, "build", target)
	if err != nil {
		return nil, &BuildFailedError{App: app, Target: target, Output: string(output), Err: err}
	}
	b.logger.Debug("toolchain finished", "app", app, "output_bytes", len(output))

	binary, err := readOutput(srcRoot, app)
	if err != nil {
		return nil, err
	}

	doc, err := readDoc(srcRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read doc files: %w", err)
	}

	return &Result{Binary: binary, Doc: doc}, nil
}

func (b *Builder) findToolchain() (string, error) {
	for _, name := range toolchainCandidates {
		if path, err := b.runner.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", &ToolchainMissingError{Candidates: toolchainCandidates}
}

// sourceRoot descends into a single top-level directory if the tarball
// wrapped the tree in one, as release tarballs usually do.
func sourceRoot(workDir string) string {
	entries, err := os.ReadDir(workDir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return workDir
	}
	return filepath.Join(workDir, entries[0].Name())
}

func hasDescriptor(root string) bool {
	for _, name := range descriptorNames {
		if info, err := os.Stat(filepath.Join(root, name)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// readOutput locates the single built binary under bazel-bin. The target
// {app}_bin may produce either naming depending on the BUILD rule.
func readOutput(srcRoot, app string) ([]byte, error) {
	checked := []string{
		filepath.Join(srcRoot, "bazel-bin", app),
		filepath.Join(srcRoot, "bazel-bin", app+"_bin"),
	}

	var matches []string
	for _, path := range checked {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			matches = append(matches, path)
		}
	}

	switch len(matches) {
	case 0:
		return nil, &OutputMissingError{App: app, Candidates: checked}
	case 1:
		data, err := os.ReadFile(matches[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read build output: %w", err)
		}
		return data, nil
	default:
		return nil, &OutputMissingError{App: app, Candidates: matches, Ambiguous: true}
	}
}

// readDoc collects the files directly under doc/ in the source root,
// if that directory exists.
func readDoc(srcRoot string) (map[string][]byte, error) {
	docDir := filepath.Join(srcRoot, "doc")
	entries, err := os.ReadDir(docDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	doc := make(map[string][]byte)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(docDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		doc[entry.Name()] = data
	}
	return doc, nil
}

// extractTarGz unpacks a gzipped tarball into dest. Entries that would
// escape dest are rejected.
func extractTarGz(source io.Reader, dest string) error {
	gzr, err := gzip.NewReader(source)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}

		cleanPath := strings.TrimPrefix(header.Name, "./")
		if cleanPath == "" {
			continue
		}
		target := filepath.Join(dest, cleanPath)

		if !isPathWithinDirectory(target, dest) {
			return fmt.Errorf("archive entry escapes destination directory: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("failed to create file: %w", err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return fmt.Errorf("failed to write file: %w", err)
			}
			f.Close()
		case tar.TypeSymlink:
			if err := validateSymlinkTarget(header.Linkname, target, dest); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("failed to create symlink: %w", err)
			}
		}
	}

	return nil
}

// isPathWithinDirectory checks if targetPath is safely contained within
// basePath. Prevents path traversal via crafted archive entries.
func isPathWithinDirectory(targetPath, basePath string) bool {
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return false
	}
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(os.PathSeparator))
}

// validateSymlinkTarget rejects symlinks that point outside the
// extraction directory.
func validateSymlinkTarget(linkTarget, linkLocation, destPath string) error {
	if filepath.IsAbs(linkTarget) {
		return fmt.Errorf("absolute symlink targets are not allowed: %s -> %s", linkLocation, linkTarget)
	}
	resolved := filepath.Join(filepath.Dir(linkLocation), linkTarget)
	if !isPathWithinDirectory(resolved, destPath) {
		return fmt.Errorf("symlink target escapes destination directory: %s -> %s", linkLocation, linkTarget)
	}
	return nil
}
