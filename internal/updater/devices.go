package updater

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"intifacectl/internal/utils"
	"intifacectl/pkg/logging"
)

const (
	// DeviceConfigVersionURL serves the current device file version as text.
	DeviceConfigVersionURL = "https://buttplug-rs-device-config.buttplug.io/version"
	// DeviceConfigURL serves the device file itself.
	DeviceConfigURL = "https://buttplug-rs-device-config.buttplug.io"

	maxDeviceConfig = 32 << 20
)

// DeviceCheck compares the local device file with the published one.
type DeviceCheck struct {
	Local     uint32
	Remote    uint32
	Missing   bool
	Available bool
}

// DeviceConfigFetcher keeps the device description file current.
type DeviceConfigFetcher struct {
	client     *retryablehttp.Client
	versionURL string
	fileURL    string
}

// NewDeviceConfigFetcher uses the public endpoints when the URLs are empty.
func NewDeviceConfigFetcher(client *retryablehttp.Client, versionURL, fileURL string) *DeviceConfigFetcher {
	if client == nil {
		client = NewHTTPClient()
	}
	if versionURL == "" {
		versionURL = DeviceConfigVersionURL
	}
	if fileURL == "" {
		fileURL = DeviceConfigURL
	}
	return &DeviceConfigFetcher{client: client, versionURL: versionURL, fileURL: fileURL}
}

// Check reports whether the file at path is missing, unreadable or older
// than the published one.
func (f *DeviceConfigFetcher) Check(ctx context.Context, path string) (DeviceCheck, error) {
	var check DeviceCheck
	local, err := LocalDeviceConfigVersion(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		check.Missing = true
	case err != nil:
		logging.Warn(subsystem, "Device file %s is unreadable, an update is needed: %v", path, err)
		check.Missing = true
	default:
		check.Local = local
	}

	remote, err := f.RemoteVersion(ctx)
	if err != nil {
		return check, err
	}
	check.Remote = remote
	check.Available = check.Missing || remote > check.Local
	return check, nil
}

// RemoteVersion fetches the published device file version.
func (f *DeviceConfigFetcher) RemoteVersion(ctx context.Context) (uint32, error) {
	body, err := fetch(ctx, f.client, f.versionURL, 64)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid device file version %q: %w", strings.TrimSpace(string(body)), err)
	}
	return uint32(v), nil
}

// Fetch downloads the device file and atomically replaces path. It returns
// the version of the downloaded file.
func (f *DeviceConfigFetcher) Fetch(ctx context.Context, path string) (uint32, error) {
	data, err := fetch(ctx, f.client, f.fileURL, maxDeviceConfig)
	if err != nil {
		return 0, err
	}
	version, err := deviceConfigVersion(data)
	if err != nil {
		return 0, fmt.Errorf("downloaded device file is invalid: %w", err)
	}
	if err := utils.WriteFileAtomic(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write device file: %w", err)
	}
	logging.Info(subsystem, "Device file version %d written to %s", version, path)
	return version, nil
}

// LocalDeviceConfigVersion reads the version recorded in the device file.
func LocalDeviceConfigVersion(path string) (uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return deviceConfigVersion(data)
}

// deviceConfigVersion accepts both a plain number and the newer
// {"major": n, "minor": m} form, using the major part.
func deviceConfigVersion(data []byte) (uint32, error) {
	var doc struct {
		Version json.RawMessage `json:"version"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, err
	}
	if len(doc.Version) == 0 {
		return 0, errors.New("missing version field")
	}
	var n uint32
	if err := json.Unmarshal(doc.Version, &n); err == nil {
		return n, nil
	}
	var v struct {
		Major *uint32 `json:"major"`
	}
	if err := json.Unmarshal(doc.Version, &v); err != nil || v.Major == nil {
		return 0, fmt.Errorf("unrecognised version field %s", doc.Version)
	}
	return *v.Major, nil
}
