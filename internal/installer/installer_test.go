package installer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pynosaur/pget/internal/builder"
	"github.com/pynosaur/pget/internal/config"
	"github.com/pynosaur/pget/internal/log"
	"github.com/pynosaur/pget/internal/platform"
	"github.com/pynosaur/pget/internal/registry"
	"github.com/pynosaur/pget/internal/resolver"
	"github.com/pynosaur/pget/internal/store"
)

var darwinARM = platform.Token{OS: "darwin", Arch: "arm64"}

// fakeResolver returns a canned plan or error.
type fakeResolver struct {
	plan *resolver.Plan
	err  error

	gotOpts resolver.Options
}

func (f *fakeResolver) Resolve(ctx context.Context, app string, plat platform.Token, opts resolver.Options) (*resolver.Plan, error) {
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.plan, nil
}

// fakeFetcher replays a scripted sequence of responses, one per call.
type fakeFetcher struct {
	responses []fetchResponse
	calls     int
}

type fetchResponse struct {
	data string
	err  error
}

func (f *fakeFetcher) FetchAsset(ctx context.Context, asset registry.Asset) (io.ReadCloser, error) {
	if f.calls >= len(f.responses) {
		return nil, errors.New("unexpected extra fetch call")
	}
	resp := f.responses[f.calls]
	f.calls++
	if resp.err != nil {
		return nil, resp.err
	}
	return io.NopCloser(bytes.NewReader([]byte(resp.data))), nil
}

// fakeBuilder returns a canned result or error.
type fakeBuilder struct {
	result *builder.Result
	err    error
	called bool
}

func (f *fakeBuilder) Build(ctx context.Context, source io.Reader, app string) (*builder.Result, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func networkErr() error {
	return &registry.Error{Type: registry.ErrTypeNetwork, Message: "connection reset"}
}

func binaryPlan(version string) *resolver.Plan {
	return &resolver.Plan{
		App:     "yday",
		Version: version,
		Mode:    resolver.ModeBinary,
		Asset:   registry.Asset{App: "yday", Name: "yday-darwin-arm64", ID: 1},
	}
}

func sourcePlan(version string) *resolver.Plan {
	return &resolver.Plan{
		App:     "yday",
		Version: version,
		Mode:    resolver.ModeSource,
		Asset:   registry.Asset{App: "yday", Name: "yday-source.tar.gz", ID: 2},
	}
}

type fixture struct {
	manager *Manager
	store   *store.Store
	sleeps  []time.Duration
}

func newFixture(t *testing.T, res Resolver, fetch Fetcher, bld Builder) *fixture {
	t.Helper()

	cfg, err := config.New(t.TempDir())
	require.NoError(t, err)
	st := store.New(cfg, log.NewNoop())

	fx := &fixture{store: st}
	fx.manager = New(res, fetch, bld, st, darwinARM, log.NewNoop(),
		WithSleep(func(d time.Duration) { fx.sleeps = append(fx.sleeps, d) }))
	return fx
}

func TestInstallBinary(t *testing.T) {
	fetch := &fakeFetcher{responses: []fetchResponse{{data: "binary-bytes"}}}
	fx := newFixture(t, &fakeResolver{plan: binaryPlan("v0.2.0")}, fetch, &fakeBuilder{})

	rec, err := fx.manager.Install(context.Background(), "yday", Options{})
	require.NoError(t, err)

	assert.Equal(t, "v0.2.0", rec.Version)
	assert.Equal(t, "binary", rec.InstalledVia)

	data, err := os.ReadFile(rec.BinaryPath)
	require.NoError(t, err)
	assert.Equal(t, "binary-bytes", string(data))
}

func TestInstallAlreadyInstalled(t *testing.T) {
	fetch := &fakeFetcher{responses: []fetchResponse{{data: "one"}, {data: "two"}}}
	fx := newFixture(t, &fakeResolver{plan: binaryPlan("v0.2.0")}, fetch, &fakeBuilder{})

	_, err := fx.manager.Install(context.Background(), "yday", Options{})
	require.NoError(t, err)

	_, err = fx.manager.Install(context.Background(), "yday", Options{})
	var already *AlreadyInstalledError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, "yday", already.Name)
	assert.Contains(t, already.Suggestion(), "--force")

	// Force reinstalls.
	rec, err := fx.manager.Install(context.Background(), "yday", Options{Force: true})
	require.NoError(t, err)
	data, err := os.ReadFile(rec.BinaryPath)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestInstallFromSource(t *testing.T) {
	fetch := &fakeFetcher{responses: []fetchResponse{{data: "tarball-bytes"}}}
	bld := &fakeBuilder{result: &builder.Result{
		Binary: []byte("built-binary"),
		Doc:    map[string][]byte{"yday.yaml": []byte("VERSION: \"0.2.0\"\n")},
	}}
	fx := newFixture(t, &fakeResolver{plan: sourcePlan("v0.2.0")}, fetch, bld)

	rec, err := fx.manager.Install(context.Background(), "yday", Options{})
	require.NoError(t, err)

	assert.True(t, bld.called)
	assert.Equal(t, "source", rec.InstalledVia)
	assert.NotEmpty(t, rec.DocPath)

	data, err := os.ReadFile(rec.BinaryPath)
	require.NoError(t, err)
	assert.Equal(t, "built-binary", string(data))
}

func TestInstallPassesOptionsToResolver(t *testing.T) {
	res := &fakeResolver{plan: sourcePlan("v0.1.0")}
	fetch := &fakeFetcher{responses: []fetchResponse{{data: "tarball"}}}
	bld := &fakeBuilder{result: &builder.Result{Binary: []byte("b")}}
	fx := newFixture(t, res, fetch, bld)

	_, err := fx.manager.Install(context.Background(), "yday", Options{FromSource: true, Version: "v0.1.0"})
	require.NoError(t, err)

	assert.True(t, res.gotOpts.ForceSource)
	assert.Equal(t, "v0.1.0", res.gotOpts.Version)
}

func TestInstallRetriesNetworkErrors(t *testing.T) {
	fetch := &fakeFetcher{responses: []fetchResponse{
		{err: networkErr()},
		{err: networkErr()},
		{data: "binary-bytes"},
	}}
	fx := newFixture(t, &fakeResolver{plan: binaryPlan("v0.2.0")}, fetch, &fakeBuilder{})

	rec, err := fx.manager.Install(context.Background(), "yday", Options{})
	require.NoError(t, err)
	assert.Equal(t, "v0.2.0", rec.Version)

	assert.Equal(t, 3, fetch.calls)
	assert.Equal(t, []time.Duration{backoffStep, 2 * backoffStep}, fx.sleeps, "linear backoff")
}

func TestInstallFetchExhausted(t *testing.T) {
	fetch := &fakeFetcher{responses: []fetchResponse{
		{err: networkErr()},
		{err: networkErr()},
		{err: networkErr()},
	}}
	fx := newFixture(t, &fakeResolver{plan: binaryPlan("v0.2.0")}, fetch, &fakeBuilder{})

	_, err := fx.manager.Install(context.Background(), "yday", Options{})
	require.Error(t, err)
	assert.Equal(t, 3, fetch.calls, "exactly three attempts")

	rec, readErr := fx.store.Read("yday")
	require.NoError(t, readErr)
	assert.Nil(t, rec, "nothing committed on failure")
}

func TestInstallAssetGoneNotRetried(t *testing.T) {
	fetch := &fakeFetcher{responses: []fetchResponse{
		{err: &registry.Error{Type: registry.ErrTypeAssetNotFound, Message: "gone"}},
	}}
	fx := newFixture(t, &fakeResolver{plan: binaryPlan("v0.2.0")}, fetch, &fakeBuilder{})

	_, err := fx.manager.Install(context.Background(), "yday", Options{})
	require.Error(t, err)
	assert.Equal(t, 1, fetch.calls, "vanished assets are not retried")
	assert.Empty(t, fx.sleeps)
}

func TestInstallBuildFailureTerminal(t *testing.T) {
	fetch := &fakeFetcher{responses: []fetchResponse{{data: "tarball"}}}
	bld := &fakeBuilder{err: &builder.BuildFailedError{App: "yday", Target: "//:yday_bin", Output: "boom"}}
	fx := newFixture(t, &fakeResolver{plan: sourcePlan("v0.2.0")}, fetch, bld)

	_, err := fx.manager.Install(context.Background(), "yday", Options{})
	var failed *builder.BuildFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 1, fetch.calls, "build failures are not retried")

	rec, readErr := fx.store.Read("yday")
	require.NoError(t, readErr)
	assert.Nil(t, rec)
}

func TestUpdateAtLatestIsNoOp(t *testing.T) {
	fetch := &fakeFetcher{responses: []fetchResponse{{data: "bin"}}}
	fx := newFixture(t, &fakeResolver{plan: binaryPlan("v0.2.0")}, fetch, &fakeBuilder{})

	_, err := fx.manager.Install(context.Background(), "yday", Options{})
	require.NoError(t, err)

	rec, updated, err := fx.manager.Update(context.Background(), "yday")
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Equal(t, "v0.2.0", rec.Version)
	assert.Equal(t, 1, fetch.calls, "no fetch for a no-op update")
}

func TestUpdateInstallsNewerVersion(t *testing.T) {
	res := &fakeResolver{plan: binaryPlan("v0.1.0")}
	fetch := &fakeFetcher{responses: []fetchResponse{{data: "old"}, {data: "new"}}}
	fx := newFixture(t, res, fetch, &fakeBuilder{})

	_, err := fx.manager.Install(context.Background(), "yday", Options{})
	require.NoError(t, err)

	res.plan = binaryPlan("v0.2.0")
	rec, updated, err := fx.manager.Update(context.Background(), "yday")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, "v0.2.0", rec.Version)

	data, err := os.ReadFile(rec.BinaryPath)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestUpdateNotInstalledInstalls(t *testing.T) {
	fetch := &fakeFetcher{responses: []fetchResponse{{data: "bin"}}}
	fx := newFixture(t, &fakeResolver{plan: binaryPlan("v0.2.0")}, fetch, &fakeBuilder{})

	rec, updated, err := fx.manager.Update(context.Background(), "yday")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, "v0.2.0", rec.Version)
}

func TestRemoveIdempotent(t *testing.T) {
	fetch := &fakeFetcher{responses: []fetchResponse{{data: "bin"}}}
	fx := newFixture(t, &fakeResolver{plan: binaryPlan("v0.2.0")}, fetch, &fakeBuilder{})

	_, err := fx.manager.Install(context.Background(), "yday", Options{})
	require.NoError(t, err)

	require.NoError(t, fx.manager.Remove("yday"))
	require.NoError(t, fx.manager.Remove("yday"))

	rec, err := fx.store.Read("yday")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestIsNewer(t *testing.T) {
	tests := []struct {
		candidate string
		current   string
		want      bool
	}{
		{"v0.2.0", "v0.1.0", true},
		{"v0.1.0", "v0.2.0", false},
		{"v0.2.0", "v0.2.0", false},
		{"0.2.0", "v0.1.0", true},
		{"v1.0.0-rc.1", "v1.0.0", false},
		// Non-semver tags fall back to plain inequality.
		{"nightly-b", "nightly-a", true},
		{"nightly-a", "nightly-a", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isNewer(tt.candidate, tt.current), "%s vs %s", tt.candidate, tt.current)
	}
}
