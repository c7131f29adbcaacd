// Package resolver decides how an app gets onto this machine: download a
// prebuilt platform binary when the release carries one, fall back to
// building from the release's source tarball otherwise.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pynosaur/pget/internal/log"
	"github.com/pynosaur/pget/internal/platform"
	"github.com/pynosaur/pget/internal/registry"
)

// Mode says how the resolved asset turns into an installed binary.
type Mode int

const (
	// ModeBinary means the asset is the executable itself.
	ModeBinary Mode = iota
	// ModeSource means the asset is a source tarball to build.
	ModeSource
)

func (m Mode) String() string {
	switch m {
	case ModeBinary:
		return "binary"
	case ModeSource:
		return "source"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Plan is the resolver's verdict for one app on one platform.
type Plan struct {
	App     string
	Version string // release tag, e.g. "v0.2.0"
	Mode    Mode
	Asset   registry.Asset
}

// Options adjust resolution.
type Options struct {
	// Version pins a specific release tag. Empty means latest.
	Version string
	// ForceSource skips the binary asset and builds from source even
	// when a platform binary exists.
	ForceSource bool
}

// NoArtifactError means the release has neither a binary for the host
// platform nor a source tarball. Nothing to retry; the release simply
// does not support this machine.
type NoArtifactError struct {
	App       string
	Version   string
	Platform  platform.Token
	Available []string // asset names present on the release
}

func (e *NoArtifactError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("release %s of %s has no assets", e.Version, e.App)
	}
	return fmt.Sprintf("release %s of %s has no artifact for %s (available: %s)",
		e.Version, e.App, e.Platform, strings.Join(e.Available, ", "))
}

// Suggestion returns an actionable hint for the user.
func (e *NoArtifactError) Suggestion() string {
	return fmt.Sprintf("The %s release does not support %s. Ask the maintainers to publish a %s asset or a %s tarball",
		e.App, e.Platform, registry.BinaryAssetName(e.App, e.Platform.String()), registry.SourceAssetName(e.App))
}

// Resolver maps an app name to an install plan using the registry.
type Resolver struct {
	reg    registry.Client
	logger log.Logger
}

// New creates a resolver backed by the given registry client.
func New(reg registry.Client, logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.NewNoop()
	}
	return &Resolver{reg: reg, logger: logger}
}

// Resolve picks the release and asset to install for app on plat.
// A platform binary wins over the source tarball unless ForceSource is
// set. When neither exists the error is a *NoArtifactError.
func (r *Resolver) Resolve(ctx context.Context, app string, plat platform.Token, opts Options) (*Plan, error) {
	var rel *registry.Release
	var err error
	if opts.Version == "" {
		rel, err = r.reg.LatestRelease(ctx, app)
	} else {
		rel, err = r.reg.ReleaseByTag(ctx, app, opts.Version)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Debug("resolving release", "app", app, "tag", rel.Tag, "platform", plat.String(), "assets", len(rel.Assets))

	if !opts.ForceSource {
		binName := registry.BinaryAssetName(app, plat.String())
		if asset := registry.FindAsset(rel, func(a registry.Asset) bool { return a.Name == binName }); asset != nil {
			return &Plan{App: app, Version: rel.Tag, Mode: ModeBinary, Asset: *asset}, nil
		}
	}

	srcName := registry.SourceAssetName(app)
	if asset := registry.FindAsset(rel, func(a registry.Asset) bool { return a.Name == srcName }); asset != nil {
		return &Plan{App: app, Version: rel.Tag, Mode: ModeSource, Asset: *asset}, nil
	}

	available := make([]string, 0, len(rel.Assets))
	for _, a := range rel.Assets {
		available = append(available, a.Name)
	}
	sort.Strings(available)

	return nil, &NoArtifactError{
		App:       app,
		Version:   rel.Tag,
		Platform:  plat,
		Available: available,
	}
}
