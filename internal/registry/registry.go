// Package registry queries the release registry: a GitHub organization
// whose repositories are apps, whose releases carry platform binaries
// named {app}-{os}-{arch} and source tarballs named {app}-source.tar.gz.
//
// The client never caches. Every call is a fresh round trip, so retry
// and backoff policy stays with the caller.
package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/pynosaur/pget/internal/httputil"
	"github.com/pynosaur/pget/internal/log"
)

// App is a registry-known application.
type App struct {
	Name        string
	Description string
}

// Release is one published release of an app, with its downloadable assets.
type Release struct {
	Tag         string
	PublishedAt time.Time
	Assets      []Asset
}

// Asset is a named downloadable blob belonging to a release.
// ID is the opaque handle used to fetch the bytes.
type Asset struct {
	App  string
	Name string
	Size int64
	ID   int64
}

// Client is the registry interface consumed by the resolver and the
// install orchestrator.
type Client interface {
	// ListApps returns all registry apps, sorted by the registry's
	// default order.
	ListApps(ctx context.Context) ([]App, error)

	// ListReleases returns an app's releases, most recent first.
	ListReleases(ctx context.Context, app string) ([]Release, error)

	// LatestRelease returns the single most recent release.
	LatestRelease(ctx context.Context, app string) (*Release, error)

	// ReleaseByTag returns the release for a specific tag. A bare
	// version like "0.1.0" is tried with a "v" prefix as well.
	ReleaseByTag(ctx context.Context, app, tag string) (*Release, error)

	// FetchAsset streams the raw bytes of a release asset.
	FetchAsset(ctx context.Context, asset Asset) (io.ReadCloser, error)
}

// FindAsset returns the first asset of r matching the predicate, or nil.
func FindAsset(r *Release, match func(Asset) bool) *Asset {
	for i := range r.Assets {
		if match(r.Assets[i]) {
			return &r.Assets[i]
		}
	}
	return nil
}

// BinaryAssetName returns the conventional name of a platform binary asset.
func BinaryAssetName(app, platform string) string {
	return app + "-" + platform
}

// SourceAssetName returns the conventional name of a source tarball asset.
func SourceAssetName(app string) string {
	return app + "-source.tar.gz"
}

// GitHub implements Client against the GitHub API.
type GitHub struct {
	org      string
	client   *github.Client
	download *http.Client
	logger   log.Logger
}

// Option configures a GitHub client.
type Option func(*GitHub)

// WithAPIClient overrides the GitHub API client. Used by tests to point
// at an httptest server.
func WithAPIClient(c *github.Client) Option {
	return func(g *GitHub) { g.client = c }
}

// WithDownloadClient overrides the HTTP client used for asset downloads.
func WithDownloadClient(c *http.Client) Option {
	return func(g *GitHub) { g.download = c }
}

// NewGitHub creates a registry client for the given organization.
// A GITHUB_TOKEN in the environment is used for authenticated requests,
// which raises the API rate limit.
func NewGitHub(org string, logger log.Logger, opts ...Option) *GitHub {
	if logger == nil {
		logger = log.NewNoop()
	}

	var apiHTTP *http.Client
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		apiHTTP = oauth2.NewClient(context.Background(), ts)
		logger.Debug("using authenticated GitHub requests")
	}

	g := &GitHub{
		org:      org,
		client:   github.NewClient(apiHTTP),
		download: httputil.NewClient(httputil.DownloadOptions()),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ListApps lists the organization's repositories as installable apps.
// Meta-repos whose names start with a dot (like .github) are hidden.
func (g *GitHub) ListApps(ctx context.Context) ([]App, error) {
	var apps []App
	opts := &github.RepositoryListByOrgOptions{
		Type:        "public",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		repos, resp, err := g.client.Repositories.ListByOrg(ctx, g.org, opts)
		if err != nil {
			return nil, wrapAPIError(err, "", fmt.Sprintf("failed to list apps in %s", g.org), ErrTypeAppNotFound)
		}
		for _, repo := range repos {
			name := repo.GetName()
			if name == "" || strings.HasPrefix(name, ".") {
				continue
			}
			apps = append(apps, App{Name: name, Description: repo.GetDescription()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return apps, nil
}

// ListReleases lists an app's releases, most recent first.
func (g *GitHub) ListReleases(ctx context.Context, app string) ([]Release, error) {
	opts := &github.ListOptions{PerPage: 100}
	releases, _, err := g.client.Repositories.ListReleases(ctx, g.org, app, opts)
	if err != nil {
		return nil, wrapAPIError(err, app, fmt.Sprintf("failed to list releases for %s", app), ErrTypeAppNotFound)
	}

	out := make([]Release, 0, len(releases))
	for _, rel := range releases {
		if rel.GetDraft() {
			continue
		}
		out = append(out, g.convertRelease(app, rel))
	}
	return out, nil
}

// LatestRelease returns the most recent release of an app.
func (g *GitHub) LatestRelease(ctx context.Context, app string) (*Release, error) {
	rel, _, err := g.client.Repositories.GetLatestRelease(ctx, g.org, app)
	if err != nil {
		wrapped := wrapAPIError(err, app, fmt.Sprintf("failed to get latest release for %s", app), ErrTypeNoReleases)
		if wrapped.Type == ErrTypeNoReleases {
			// A 404 here is ambiguous: the repo may not exist at all,
			// or it may exist without releases. Only the former is an
			// unknown app.
			if _, _, repoErr := g.client.Repositories.Get(ctx, g.org, app); repoErr != nil {
				return nil, wrapAPIError(repoErr, app, fmt.Sprintf("app %s not found in %s", app, g.org), ErrTypeAppNotFound)
			}
		}
		return nil, wrapped
	}

	converted := g.convertRelease(app, rel)
	return &converted, nil
}

// ReleaseByTag returns the release for a specific tag.
func (g *GitHub) ReleaseByTag(ctx context.Context, app, tag string) (*Release, error) {
	rel, _, err := g.client.Repositories.GetReleaseByTag(ctx, g.org, app, tag)
	if err != nil && !strings.HasPrefix(tag, "v") {
		// Registry tags conventionally carry a v prefix; accept a bare
		// version from the user.
		rel, _, err = g.client.Repositories.GetReleaseByTag(ctx, g.org, app, "v"+tag)
	}
	if err != nil {
		return nil, wrapAPIError(err, app, fmt.Sprintf("release %s not found for %s", tag, app), ErrTypeNoReleases)
	}

	converted := g.convertRelease(app, rel)
	return &converted, nil
}

// FetchAsset streams the raw bytes of a release asset. Redirects to
// object storage are followed by the download client.
func (g *GitHub) FetchAsset(ctx context.Context, asset Asset) (io.ReadCloser, error) {
	g.logger.Debug("fetching asset", "app", asset.App, "asset", asset.Name, "size", asset.Size)

	rc, _, err := g.client.Repositories.DownloadReleaseAsset(ctx, g.org, asset.App, asset.ID, g.download)
	if err != nil {
		return nil, wrapAPIError(err, asset.App, fmt.Sprintf("failed to fetch asset %s", asset.Name), ErrTypeAssetNotFound)
	}
	return rc, nil
}

func (g *GitHub) convertRelease(app string, rel *github.RepositoryRelease) Release {
	out := Release{
		Tag:         rel.GetTagName(),
		PublishedAt: rel.GetPublishedAt().Time,
	}
	for _, a := range rel.Assets {
		out.Assets = append(out.Assets, Asset{
			App:  app,
			Name: a.GetName(),
			Size: int64(a.GetSize()),
			ID:   a.GetID(),
		})
	}
	return out
}
