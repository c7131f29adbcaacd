// Package installer drives the install/update/remove lifecycle: resolve
// a plan, fetch bytes, build if needed, then commit through the store.
package installer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/pynosaur/pget/internal/builder"
	"github.com/pynosaur/pget/internal/log"
	"github.com/pynosaur/pget/internal/platform"
	"github.com/pynosaur/pget/internal/registry"
	"github.com/pynosaur/pget/internal/resolver"
	"github.com/pynosaur/pget/internal/store"
)

// Fetch policy for transient network failures. Not-found and rate-limit
// errors are never retried.
const (
	fetchAttempts = 3
	backoffStep   = 2 * time.Second
)

// AlreadyInstalledError means install was asked for an app that is
// already present and no force flag was given.
type AlreadyInstalledError struct {
	Name    string
	Version string
}

func (e *AlreadyInstalledError) Error() string {
	return fmt.Sprintf("%s %s is already installed", e.Name, e.Version)
}

// Suggestion returns an actionable hint for the user.
func (e *AlreadyInstalledError) Suggestion() string {
	return fmt.Sprintf("Run 'pget update %s' to update it, or 'pget install --force %s' to reinstall", e.Name, e.Name)
}

// Resolver picks the install plan for an app. Satisfied by
// *resolver.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, app string, plat platform.Token, opts resolver.Options) (*resolver.Plan, error)
}

// Fetcher streams release asset bytes. Satisfied by registry.Client.
type Fetcher interface {
	FetchAsset(ctx context.Context, asset registry.Asset) (io.ReadCloser, error)
}

// Builder turns a source tarball into a binary. Satisfied by
// *builder.Builder.
type Builder interface {
	Build(ctx context.Context, source io.Reader, app string) (*builder.Result, error)
}

// Options adjust a single install invocation.
type Options struct {
	// Force reinstalls over an existing install.
	Force bool
	// FromSource builds from the source tarball even when a platform
	// binary exists.
	FromSource bool
	// Version pins a release tag. Empty means latest.
	Version string
}

// Manager orchestrates installs against one install root.
type Manager struct {
	resolver Resolver
	fetcher  Fetcher
	builder  Builder
	store    *store.Store
	plat     platform.Token
	logger   log.Logger
	sleep    func(time.Duration)
}

// Option configures a Manager.
type Option func(*Manager)

// WithSleep overrides the retry backoff sleep. Used by tests.
func WithSleep(f func(time.Duration)) Option {
	return func(m *Manager) { m.sleep = f }
}

// New creates a Manager.
func New(res Resolver, fetcher Fetcher, bld Builder, st *store.Store, plat platform.Token, logger log.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = log.NewNoop()
	}
	m := &Manager{
		resolver: res,
		fetcher:  fetcher,
		builder:  bld,
		store:    st,
		plat:     plat,
		logger:   logger,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Install resolves, fetches, optionally builds, and commits an app.
// An existing install fails with *AlreadyInstalledError unless
// opts.Force is set.
func (m *Manager) Install(ctx context.Context, app string, opts Options) (*store.Record, error) {
	existing, err := m.store.Read(app)
	if err != nil {
		return nil, err
	}
	if existing != nil && !opts.Force {
		return nil, &AlreadyInstalledError{Name: app, Version: existing.Version}
	}
	return m.run(ctx, app, opts)
}

// Update brings an app to the latest release. Already at latest is a
// success no-op (updated is false). An app that was never installed is
// installed fresh.
func (m *Manager) Update(ctx context.Context, app string) (rec *store.Record, updated bool, err error) {
	existing, err := m.store.Read(app)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		rec, err = m.run(ctx, app, Options{})
		return rec, err == nil, err
	}

	plan, err := m.resolver.Resolve(ctx, app, m.plat, resolver.Options{})
	if err != nil {
		return nil, false, err
	}
	if !isNewer(plan.Version, existing.Version) {
		m.logger.Info("already at latest version", "app", app, "version", existing.Version)
		return existing, false, nil
	}

	rec, err = m.runPlan(ctx, app, plan)
	return rec, err == nil, err
}

// Remove deletes an app's binary and helper tree. Idempotent.
func (m *Manager) Remove(app string) error {
	return m.store.Remove(app)
}

// run resolves a fresh plan and executes it.
func (m *Manager) run(ctx context.Context, app string, opts Options) (*store.Record, error) {
	plan, err := m.resolver.Resolve(ctx, app, m.plat, resolver.Options{
		Version:     opts.Version,
		ForceSource: opts.FromSource,
	})
	if err != nil {
		return nil, err
	}
	return m.runPlan(ctx, app, plan)
}

// runPlan executes an already-resolved plan: fetch, build if the plan
// says source, commit.
func (m *Manager) runPlan(ctx context.Context, app string, plan *resolver.Plan) (*store.Record, error) {
	m.logger.Info("installing", "app", app, "version", plan.Version, "mode", plan.Mode.String())

	data, err := m.fetchWithRetry(ctx, plan.Asset)
	if err != nil {
		return nil, err
	}

	var binary []byte
	var doc map[string][]byte
	var via string

	switch plan.Mode {
	case resolver.ModeBinary:
		binary = data
		via = "binary"
	case resolver.ModeSource:
		// A broken build will not fix itself, so build failures are
		// terminal without retry.
		res, err := m.builder.Build(ctx, bytes.NewReader(data), app)
		if err != nil {
			return nil, err
		}
		binary = res.Binary
		doc = res.Doc
		via = "source"
	default:
		return nil, fmt.Errorf("unknown resolution mode %v", plan.Mode)
	}

	rec := store.Record{Name: app, Version: plan.Version, InstalledVia: via}
	if err := m.store.Write(rec, binary, doc); err != nil {
		return nil, err
	}

	committed, err := m.store.Read(app)
	if err != nil {
		return nil, err
	}
	m.logger.Info("installed", "app", app, "version", committed.Version, "binary", committed.BinaryPath)
	return committed, nil
}

// fetchWithRetry downloads an asset, retrying transient network failures
// up to fetchAttempts with linear backoff. A failure mid-stream counts
// as transient too.
func (m *Manager) fetchWithRetry(ctx context.Context, asset registry.Asset) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(attempt-1) * backoffStep
			m.logger.Warn("fetch failed, retrying", "asset", asset.Name, "attempt", attempt, "delay", delay, "error", lastErr)
			m.sleep(delay)
		}

		data, err := m.fetchOnce(ctx, asset)
		if err == nil {
			return data, nil
		}
		if !registry.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", asset.Name, fetchAttempts, lastErr)
}

func (m *Manager) fetchOnce(ctx context.Context, asset registry.Asset) ([]byte, error) {
	rc, err := m.fetcher.FetchAsset(ctx, asset)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &registry.Error{
			Type:    registry.ErrTypeNetwork,
			App:     asset.App,
			Message: fmt.Sprintf("download of %s interrupted", asset.Name),
			Err:     err,
		}
	}
	return data, nil
}

// isNewer reports whether candidate is a strictly newer version than
// current. Tags that do not parse as semver fall back to plain
// inequality, so a renamed tag still triggers an update.
func isNewer(candidate, current string) bool {
	cv, err1 := semver.NewVersion(strings.TrimPrefix(candidate, "v"))
	ev, err2 := semver.NewVersion(strings.TrimPrefix(current, "v"))
	if err1 != nil || err2 != nil {
		return candidate != current
	}
	return cv.GreaterThan(ev)
}
