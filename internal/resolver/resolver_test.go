package resolver

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pynosaur/pget/internal/log"
	"github.com/pynosaur/pget/internal/platform"
	"github.com/pynosaur/pget/internal/registry"
)

// fakeRegistry serves canned releases keyed by app name.
type fakeRegistry struct {
	releases map[string][]registry.Release
}

func (f *fakeRegistry) ListApps(ctx context.Context) ([]registry.App, error) {
	return nil, nil
}

func (f *fakeRegistry) ListReleases(ctx context.Context, app string) ([]registry.Release, error) {
	rels, ok := f.releases[app]
	if !ok {
		return nil, &registry.Error{Type: registry.ErrTypeAppNotFound, App: app, Message: "no such app"}
	}
	return rels, nil
}

func (f *fakeRegistry) LatestRelease(ctx context.Context, app string) (*registry.Release, error) {
	rels, err := f.ListReleases(ctx, app)
	if err != nil {
		return nil, err
	}
	if len(rels) == 0 {
		return nil, &registry.Error{Type: registry.ErrTypeNoReleases, App: app, Message: "no releases"}
	}
	return &rels[0], nil
}

func (f *fakeRegistry) ReleaseByTag(ctx context.Context, app, tag string) (*registry.Release, error) {
	rels, err := f.ListReleases(ctx, app)
	if err != nil {
		return nil, err
	}
	for i := range rels {
		if rels[i].Tag == tag || rels[i].Tag == "v"+tag {
			return &rels[i], nil
		}
	}
	return nil, &registry.Error{Type: registry.ErrTypeNoReleases, App: app, Message: "no such release"}
}

func (f *fakeRegistry) FetchAsset(ctx context.Context, asset registry.Asset) (io.ReadCloser, error) {
	return nil, nil
}

func release(tag string, assetNames ...string) registry.Release {
	rel := registry.Release{Tag: tag}
	for i, name := range assetNames {
		rel.Assets = append(rel.Assets, registry.Asset{Name: name, ID: int64(i + 1)})
	}
	return rel
}

var darwinARM = platform.Token{OS: "darwin", Arch: "arm64"}

func TestResolve(t *testing.T) {
	reg := &fakeRegistry{releases: map[string][]registry.Release{
		"yday": {
			release("v0.2.0", "yday-darwin-arm64", "yday-linux-x86_64", "yday-source.tar.gz"),
			release("v0.1.0", "yday-source.tar.gz"),
		},
		"tvsm": {
			release("v1.0.0", "tvsm-linux-x86_64"),
		},
	}}
	r := New(reg, log.NewNoop())

	tests := []struct {
		name      string
		app       string
		opts      Options
		wantMode  Mode
		wantTag   string
		wantAsset string
	}{
		{
			name:      "binary preferred when present",
			app:       "yday",
			wantMode:  ModeBinary,
			wantTag:   "v0.2.0",
			wantAsset: "yday-darwin-arm64",
		},
		{
			name:      "source fallback when no platform binary",
			app:       "yday",
			opts:      Options{Version: "v0.1.0"},
			wantMode:  ModeSource,
			wantTag:   "v0.1.0",
			wantAsset: "yday-source.tar.gz",
		},
		{
			name:      "force source skips the binary",
			app:       "yday",
			opts:      Options{ForceSource: true},
			wantMode:  ModeSource,
			wantTag:   "v0.2.0",
			wantAsset: "yday-source.tar.gz",
		},
		{
			name:      "bare version matches v-prefixed tag",
			app:       "yday",
			opts:      Options{Version: "0.1.0"},
			wantMode:  ModeSource,
			wantTag:   "v0.1.0",
			wantAsset: "yday-source.tar.gz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := r.Resolve(context.Background(), tt.app, darwinARM, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, plan.Mode)
			assert.Equal(t, tt.wantTag, plan.Version)
			assert.Equal(t, tt.wantAsset, plan.Asset.Name)
			assert.Equal(t, tt.app, plan.App)
		})
	}
}

func TestResolveAcrossPlatforms(t *testing.T) {
	// One release, three hosts: a matching binary wins, a host without a
	// binary falls back to source, a release without either fails.
	reg := &fakeRegistry{releases: map[string][]registry.Release{
		"yday": {release("v0.2.0", "yday-darwin-arm64", "yday-source.tar.gz")},
		"tvsm": {release("v1.0.0", "tvsm-windows-x86_64")},
	}}
	r := New(reg, log.NewNoop())

	plan, err := r.Resolve(context.Background(), "yday", platform.Token{OS: "darwin", Arch: "arm64"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, ModeBinary, plan.Mode)

	plan, err = r.Resolve(context.Background(), "yday", platform.Token{OS: "windows", Arch: "x86_64"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, ModeSource, plan.Mode)

	_, err = r.Resolve(context.Background(), "tvsm", platform.Token{OS: "linux", Arch: "arm64"}, Options{})
	var noArt *NoArtifactError
	require.ErrorAs(t, err, &noArt)
}

func TestResolveNoArtifact(t *testing.T) {
	reg := &fakeRegistry{releases: map[string][]registry.Release{
		"tvsm": {release("v1.0.0", "tvsm-linux-x86_64", "README.md")},
	}}
	r := New(reg, log.NewNoop())

	_, err := r.Resolve(context.Background(), "tvsm", darwinARM, Options{})
	require.Error(t, err)

	var noArt *NoArtifactError
	require.ErrorAs(t, err, &noArt)
	assert.Equal(t, "tvsm", noArt.App)
	assert.Equal(t, "v1.0.0", noArt.Version)
	assert.Equal(t, []string{"README.md", "tvsm-linux-x86_64"}, noArt.Available)
	assert.Contains(t, noArt.Error(), "tvsm-linux-x86_64")
	assert.Contains(t, noArt.Suggestion(), "tvsm-darwin-arm64")
}

func TestResolveUnknownApp(t *testing.T) {
	r := New(&fakeRegistry{releases: map[string][]registry.Release{}}, log.NewNoop())

	_, err := r.Resolve(context.Background(), "nope", darwinARM, Options{})
	require.Error(t, err)
	assert.True(t, registry.IsAppNotFound(err))
}

func TestResolveNoReleases(t *testing.T) {
	reg := &fakeRegistry{releases: map[string][]registry.Release{"empty": {}}}
	r := New(reg, log.NewNoop())

	_, err := r.Resolve(context.Background(), "empty", darwinARM, Options{})
	require.Error(t, err)
	assert.True(t, registry.IsNoReleases(err))
}
