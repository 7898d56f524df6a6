package updater

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/creativeprojects/go-selfupdate"
)

// EngineRepository hosts engine releases.
const EngineRepository = "intiface/intiface-cli-rs"

// Asset is one downloadable file of a release.
type Asset struct {
	Name string
	URL  string
	Size int
}

// EngineRelease is a published engine build.
type EngineRelease struct {
	Tag         string
	Name        string
	Notes       string
	URL         string
	PublishedAt time.Time
	Draft       bool
	Prerelease  bool
	Assets      []Asset
}

// ReleaseSource lists engine releases.
type ReleaseSource interface {
	Releases(ctx context.Context) ([]EngineRelease, error)
}

type githubReleases struct {
	source *selfupdate.GitHubSource
	repo   selfupdate.Repository
}

// NewGitHubReleases lists releases of EngineRepository. GITHUB_TOKEN is
// honoured when set.
func NewGitHubReleases() (ReleaseSource, error) {
	src, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub source: %w", err)
	}
	return &githubReleases{source: src, repo: selfupdate.ParseSlug(EngineRepository)}, nil
}

func (g *githubReleases) Releases(ctx context.Context) ([]EngineRelease, error) {
	rels, err := g.source.ListReleases(ctx, g.repo)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases of %s: %w", EngineRepository, err)
	}
	out := make([]EngineRelease, 0, len(rels))
	for _, r := range rels {
		rel := EngineRelease{
			Tag:         r.GetTagName(),
			Name:        r.GetName(),
			Notes:       r.GetReleaseNotes(),
			URL:         r.GetURL(),
			PublishedAt: r.GetPublishedAt(),
			Draft:       r.GetDraft(),
			Prerelease:  r.GetPrerelease(),
		}
		for _, a := range r.GetAssets() {
			rel.Assets = append(rel.Assets, Asset{
				Name: a.GetName(),
				URL:  a.GetBrowserDownloadURL(),
				Size: a.GetSize(),
			})
		}
		out = append(out, rel)
	}
	return out, nil
}

// Platform is the engine's name for the host platform.
func Platform() string {
	name := runtime.GOOS
	switch name {
	case "windows":
		name = "win"
	case "darwin":
		name = "macos"
	}
	return name + "-x64"
}

// AssetName is the archive prefix for platform.
func AssetName(platform string) string {
	return fmt.Sprintf("intiface-cli-rs-%s-Release.zip", platform)
}

// PlatformAsset returns the release archive for platform.
func (r EngineRelease) PlatformAsset(platform string) (Asset, bool) {
	prefix := AssetName(platform)
	for _, a := range r.Assets {
		if strings.HasPrefix(a.Name, prefix) {
			return a, true
		}
	}
	return Asset{}, false
}

// Latest picks the newest usable release for platform. Drafts are never
// chosen; prereleases only when allowed.
func Latest(releases []EngineRelease, platform string, prerelease bool) (EngineRelease, bool) {
	var candidates []EngineRelease
	for _, r := range releases {
		if r.Draft || (r.Prerelease && !prerelease) {
			continue
		}
		if _, ok := r.PlatformAsset(platform); !ok {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return EngineRelease{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return newer(candidates[i], candidates[j])
	})
	return candidates[0], true
}

// newer orders by semantic version, falling back to publish time when a
// tag does not parse.
func newer(a, b EngineRelease) bool {
	va, errA := semver.NewVersion(a.Tag)
	vb, errB := semver.NewVersion(b.Tag)
	if errA == nil && errB == nil && !va.Equal(vb) {
		return va.GreaterThan(vb)
	}
	return a.PublishedAt.After(b.PublishedAt)
}

// IsNewer reports whether tag is an update over current. A current version
// of "" or "0" means no engine is installed.
func IsNewer(tag, current string) bool {
	if current == "" || current == "0" {
		return true
	}
	vt, errT := semver.NewVersion(tag)
	vc, errC := semver.NewVersion(current)
	if errT == nil && errC == nil {
		return vt.GreaterThan(vc)
	}
	return tag != current
}
