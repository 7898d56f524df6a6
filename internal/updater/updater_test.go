package updater

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"intifacectl/internal/config"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPlatform = "linux-x64"

type fakeSource struct {
	releases []EngineRelease
	err      error
}

func (f *fakeSource) Releases(context.Context) ([]EngineRelease, error) {
	return f.releases, f.err
}

func testClient() *retryablehttp.Client {
	c := NewHTTPClient()
	c.RetryMax = 0
	return c
}

func release(tag string, assets ...string) EngineRelease {
	r := EngineRelease{Tag: tag, Notes: "## " + tag}
	for _, a := range assets {
		r.Assets = append(r.Assets, Asset{Name: a, URL: "http://invalid/" + a})
	}
	return r
}

func engineZip(t *testing.T, binary []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("README.md")
	require.NoError(t, err)
	_, err = w.Write([]byte("# notes"))
	require.NoError(t, err)
	w, err = zw.Create("intiface-engine")
	require.NoError(t, err)
	_, err = w.Write(binary)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestLatest(t *testing.T) {
	asset := AssetName(testPlatform)
	draft := release("v9.0.0", asset)
	draft.Draft = true
	pre := release("v8.0.0-beta.1", asset)
	pre.Prerelease = true

	releases := []EngineRelease{
		release("v5.0.0", asset),
		release("v7.0.0", AssetName("win-x64")),
		release("v6.1.0", asset),
		draft,
		pre,
	}

	got, ok := Latest(releases, testPlatform, false)
	require.True(t, ok)
	assert.Equal(t, "v6.1.0", got.Tag)

	got, ok = Latest(releases, testPlatform, true)
	require.True(t, ok)
	assert.Equal(t, "v8.0.0-beta.1", got.Tag)

	_, ok = Latest(releases, "macos-x64", true)
	assert.False(t, ok)
}

func TestLatestFallsBackToPublishTime(t *testing.T) {
	asset := AssetName(testPlatform)
	older := release("nightly-a", asset)
	older.PublishedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := release("nightly-b", asset)
	newer.PublishedAt = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	got, ok := Latest([]EngineRelease{older, newer}, testPlatform, false)
	require.True(t, ok)
	assert.Equal(t, "nightly-b", got.Tag)
}

func TestIsNewer(t *testing.T) {
	tests := []struct {
		tag, current string
		want         bool
	}{
		{"v1.0.0", "0", true},
		{"v1.0.0", "", true},
		{"v1.0.1", "v1.0.0", true},
		{"v1.0.0", "v1.0.0", false},
		{"v1.0.0", "1.0.0", false},
		{"v0.9.0", "v1.0.0", false},
		{"nightly", "nightly", false},
		{"nightly-2", "nightly", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsNewer(tt.tag, tt.current), "%s over %s", tt.tag, tt.current)
	}
}

func TestPlatformAssetMatchesPrefix(t *testing.T) {
	r := release("v1", "intiface-cli-rs-linux-x64-Release.zip.sha256", "intiface-cli-rs-win-x64-Release.zip")
	a, ok := r.PlatformAsset("win-x64")
	require.True(t, ok)
	assert.Equal(t, "intiface-cli-rs-win-x64-Release.zip", a.Name)

	_, ok = r.PlatformAsset("macos-x64")
	assert.False(t, ok)
}

func TestUpdateEngineInstallsBinary(t *testing.T) {
	archive := engineZip(t, []byte("engine-v2"))
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	rel := release("v2.0.0")
	rel.Assets = []Asset{{Name: AssetName(testPlatform), URL: srv.URL + "/engine.zip"}}

	dir := t.TempDir()
	m := New(Options{
		Paths:      config.NewPaths(dir),
		Releases:   &fakeSource{releases: []EngineRelease{release("v1.0.0", AssetName(testPlatform)), rel}},
		HTTPClient: testClient(),
		Platform:   testPlatform,
	})

	cfg := config.Default()
	cfg.EnginePath = filepath.Join(dir, "engine", "intiface-engine")

	check, err := m.UpdateEngine(context.Background(), &cfg)
	require.NoError(t, err)
	assert.True(t, check.Available)
	assert.Equal(t, "v2.0.0", cfg.CurrentEngineVersion)

	data, err := os.ReadFile(cfg.EnginePath)
	require.NoError(t, err)
	assert.Equal(t, "engine-v2", string(data))

	// Already current: nothing is downloaded.
	check, err = m.UpdateEngine(context.Background(), &cfg)
	require.NoError(t, err)
	assert.False(t, check.Available)
	assert.EqualValues(t, 1, hits.Load())
}

func TestUpdateEngineRefusedWhileRunning(t *testing.T) {
	m := New(Options{
		Paths:     config.NewPaths(t.TempDir()),
		Releases:  &fakeSource{},
		Platform:  testPlatform,
		IsRunning: func() bool { return true },
	})
	cfg := config.Default()
	_, err := m.UpdateEngine(context.Background(), &cfg)
	assert.ErrorIs(t, err, ErrEngineRunning)
	assert.Equal(t, "0", cfg.CurrentEngineVersion)
}

func TestCheckEngineWithoutRelease(t *testing.T) {
	m := New(Options{
		Paths:    config.NewPaths(t.TempDir()),
		Releases: &fakeSource{releases: []EngineRelease{release("v1.0.0", AssetName("win-x64"))}},
		Platform: testPlatform,
	})
	_, err := m.CheckEngine(context.Background(), config.Default())
	assert.ErrorIs(t, err, ErrNoRelease)
}

func TestExtractEngineRejectsEmptyArchive(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("CHANGELOG.md")
	require.NoError(t, err)
	_, _ = w.Write([]byte("x"))
	require.NoError(t, zw.Close())

	_, _, err = extractEngine(buf.Bytes())
	assert.Error(t, err)

	_, _, err = extractEngine([]byte("not a zip"))
	assert.Error(t, err)
}

func deviceServer(t *testing.T, version, file string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(version))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(file))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func deviceManager(t *testing.T, srv *httptest.Server) (*Manager, config.Paths) {
	paths := config.NewPaths(t.TempDir())
	return New(Options{
		Paths:            paths,
		Releases:         &fakeSource{},
		HTTPClient:       testClient(),
		DeviceVersionURL: srv.URL + "/version",
		DeviceFileURL:    srv.URL + "/",
	}), paths
}

func TestCheckDevices(t *testing.T) {
	srv := deviceServer(t, "42\n", `{"version": 42}`)
	m, paths := deviceManager(t, srv)

	check, err := m.CheckDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DeviceCheck{Remote: 42, Missing: true, Available: true}, check)

	require.NoError(t, os.WriteFile(paths.DeviceConfigFile(), []byte(`{"version": 41}`), 0o644))
	check, err = m.CheckDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DeviceCheck{Local: 41, Remote: 42, Available: true}, check)

	require.NoError(t, os.WriteFile(paths.DeviceConfigFile(), []byte(`{"version": {"major": 42, "minor": 3}}`), 0o644))
	check, err = m.CheckDevices(context.Background())
	require.NoError(t, err)
	assert.False(t, check.Available)

	require.NoError(t, os.WriteFile(paths.DeviceConfigFile(), []byte(`garbage`), 0o644))
	check, err = m.CheckDevices(context.Background())
	require.NoError(t, err)
	assert.True(t, check.Missing)
	assert.True(t, check.Available)
}

func TestCheckDevicesBadRemoteVersion(t *testing.T) {
	srv := deviceServer(t, "soon", `{}`)
	m, _ := deviceManager(t, srv)

	_, err := m.CheckDevices(context.Background())
	assert.ErrorContains(t, err, "invalid device file version")
}

func TestUpdateDevicesWritesFile(t *testing.T) {
	doc := `{"version": 43, "protocols": {}}`
	srv := deviceServer(t, "43", doc)
	m, paths := deviceManager(t, srv)

	cfg := config.Default()
	check, err := m.UpdateDevices(context.Background(), &cfg)
	require.NoError(t, err)
	assert.True(t, check.Available)
	assert.EqualValues(t, 43, cfg.CurrentDeviceFileVersion)

	data, err := os.ReadFile(paths.DeviceConfigFile())
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(data))
}

func TestUpdateDevicesKeepsFileOnBadDownload(t *testing.T) {
	srv := deviceServer(t, "50", `<html>maintenance</html>`)
	m, paths := deviceManager(t, srv)
	require.NoError(t, os.WriteFile(paths.DeviceConfigFile(), []byte(`{"version": 1}`), 0o644))

	cfg := config.Default()
	_, err := m.UpdateDevices(context.Background(), &cfg)
	assert.ErrorContains(t, err, "downloaded device file is invalid")

	data, err := os.ReadFile(paths.DeviceConfigFile())
	require.NoError(t, err)
	assert.Equal(t, `{"version": 1}`, string(data))
}

func TestFetchReportsHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fetch(context.Background(), testClient(), srv.URL, 10)
	assert.ErrorContains(t, err, "404")
}

func TestCheckAllJoinsErrors(t *testing.T) {
	srv := deviceServer(t, "7", `{"version": 7}`)
	paths := config.NewPaths(t.TempDir())
	m := New(Options{
		Paths:            paths,
		Releases:         &fakeSource{err: errors.New("rate limited")},
		HTTPClient:       testClient(),
		Platform:         testPlatform,
		DeviceVersionURL: srv.URL + "/version",
		DeviceFileURL:    srv.URL + "/",
	})

	s, err := m.CheckAll(context.Background(), config.Default())
	assert.ErrorContains(t, err, "rate limited")
	assert.True(t, s.Devices.Available)
	assert.EqualValues(t, 7, s.Devices.Remote)
}

func TestRenderNotes(t *testing.T) {
	assert.Empty(t, RenderNotes("  ", 80))
	assert.Contains(t, RenderNotes("Fixed **pairing** issues", 80), "pairing")
}
