package updater

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/creativeprojects/go-selfupdate/update"
	"github.com/hashicorp/go-retryablehttp"

	"intifacectl/pkg/logging"
)

const (
	maxEngineArchive = 256 << 20
	maxEngineBinary  = 256 << 20
)

// ErrNoRelease means no release carries an archive for this platform.
var ErrNoRelease = errors.New("no engine release available for this platform")

// EngineCheck is the outcome of comparing the installed engine with the
// newest release.
type EngineCheck struct {
	Current   string
	Latest    EngineRelease
	Available bool
}

// EngineInstaller finds and installs engine releases.
type EngineInstaller struct {
	source   ReleaseSource
	client   *retryablehttp.Client
	platform string
}

// NewEngineInstaller creates an installer for platform. An empty platform
// means the host's.
func NewEngineInstaller(source ReleaseSource, client *retryablehttp.Client, platform string) *EngineInstaller {
	if client == nil {
		client = NewHTTPClient()
	}
	if platform == "" {
		platform = Platform()
	}
	return &EngineInstaller{source: source, client: client, platform: platform}
}

// Check compares current against the newest release.
func (e *EngineInstaller) Check(ctx context.Context, current string, prerelease bool) (EngineCheck, error) {
	releases, err := e.source.Releases(ctx)
	if err != nil {
		return EngineCheck{Current: current}, err
	}
	latest, ok := Latest(releases, e.platform, prerelease)
	if !ok {
		return EngineCheck{Current: current}, ErrNoRelease
	}
	return EngineCheck{
		Current:   current,
		Latest:    latest,
		Available: IsNewer(latest.Tag, current),
	}, nil
}

// Install downloads rel's platform archive and replaces target with the
// engine binary it contains.
func (e *EngineInstaller) Install(ctx context.Context, rel EngineRelease, target string) error {
	asset, ok := rel.PlatformAsset(e.platform)
	if !ok {
		return fmt.Errorf("release %s: %w", rel.Tag, ErrNoRelease)
	}

	logging.Info(subsystem, "Downloading %s from release %s", asset.Name, rel.Tag)
	archive, err := fetch(ctx, e.client, asset.URL, maxEngineArchive)
	if err != nil {
		return err
	}
	binary, name, err := extractEngine(archive)
	if err != nil {
		return fmt.Errorf("failed to unpack %s: %w", asset.Name, err)
	}
	logging.Debug(subsystem, "Extracted %s (%d bytes)", name, len(binary))

	if err := ensurePlaceholder(target); err != nil {
		return err
	}
	err = update.Apply(bytes.NewReader(binary), update.Options{
		TargetPath: target,
		TargetMode: 0o755,
	})
	if err != nil {
		if rerr := update.RollbackError(err); rerr != nil {
			logging.Error(subsystem, rerr, "Failed to restore previous engine after a failed update")
		}
		return fmt.Errorf("failed to install engine to %s: %w", target, err)
	}
	logging.Info(subsystem, "Engine %s installed to %s", rel.Tag, target)
	return nil
}

// extractEngine returns the first regular file in the archive that is not
// documentation.
func extractEngine(archive []byte) ([]byte, string, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, "", err
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.EqualFold(path.Ext(f.Name), ".md") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", err
		}
		data, err := io.ReadAll(io.LimitReader(rc, maxEngineBinary+1))
		rc.Close()
		if err != nil {
			return nil, "", err
		}
		if len(data) > maxEngineBinary {
			return nil, "", fmt.Errorf("%s exceeds %d bytes", f.Name, maxEngineBinary)
		}
		return data, f.Name, nil
	}
	return nil, "", errors.New("archive contains no engine binary")
}

// ensurePlaceholder makes sure target exists so it can be swapped in place.
func ensurePlaceholder(target string) error {
	if _, err := os.Stat(target); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create engine directory: %w", err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create engine placeholder: %w", err)
	}
	return f.Close()
}
