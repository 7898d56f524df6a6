package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-retryablehttp"

	"intifacectl/internal/config"
	"intifacectl/pkg/logging"
)

// ErrEngineRunning is returned when an engine update is attempted while the
// engine is running.
var ErrEngineRunning = errors.New("engine is running, stop it before updating")

// Options configures a Manager. Zero values select the public endpoints.
type Options struct {
	Paths            config.Paths
	Releases         ReleaseSource
	HTTPClient       *retryablehttp.Client
	Platform         string
	DeviceVersionURL string
	DeviceFileURL    string
	// IsRunning guards engine installs.
	IsRunning func() bool
}

// Summary is the result of a combined update check.
type Summary struct {
	Engine  EngineCheck
	Devices DeviceCheck
}

// Manager checks for and applies engine and device file updates. Callers
// persist the returned configuration.
type Manager struct {
	opts    Options
	devices *DeviceConfigFetcher

	mu     sync.Mutex
	engine *EngineInstaller
}

// New creates a Manager.
func New(opts Options) *Manager {
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewHTTPClient()
	}
	if opts.IsRunning == nil {
		opts.IsRunning = func() bool { return false }
	}
	return &Manager{
		opts:    opts,
		devices: NewDeviceConfigFetcher(opts.HTTPClient, opts.DeviceVersionURL, opts.DeviceFileURL),
	}
}

func (m *Manager) installer() (*EngineInstaller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine != nil {
		return m.engine, nil
	}
	source := m.opts.Releases
	if source == nil {
		var err error
		if source, err = NewGitHubReleases(); err != nil {
			return nil, err
		}
	}
	m.engine = NewEngineInstaller(source, m.opts.HTTPClient, m.opts.Platform)
	return m.engine, nil
}

// CheckEngine compares the installed engine with the newest release.
func (m *Manager) CheckEngine(ctx context.Context, cfg config.Config) (EngineCheck, error) {
	inst, err := m.installer()
	if err != nil {
		return EngineCheck{Current: cfg.CurrentEngineVersion}, err
	}
	return inst.Check(ctx, cfg.CurrentEngineVersion, cfg.UsePrereleaseEngine)
}

// UpdateEngine installs the newest release if it is newer than the one
// recorded in cfg, and records the new version in cfg.
func (m *Manager) UpdateEngine(ctx context.Context, cfg *config.Config) (EngineCheck, error) {
	if m.opts.IsRunning() {
		return EngineCheck{Current: cfg.CurrentEngineVersion}, ErrEngineRunning
	}
	check, err := m.CheckEngine(ctx, *cfg)
	if err != nil || !check.Available {
		return check, err
	}
	inst, err := m.installer()
	if err != nil {
		return check, err
	}
	if err := inst.Install(ctx, check.Latest, m.opts.Paths.EngineExecutable(*cfg)); err != nil {
		return check, err
	}
	cfg.CurrentEngineVersion = check.Latest.Tag
	return check, nil
}

// CheckDevices compares the local device file with the published one.
func (m *Manager) CheckDevices(ctx context.Context) (DeviceCheck, error) {
	return m.devices.Check(ctx, m.opts.Paths.DeviceConfigFile())
}

// UpdateDevices downloads the device file if needed and records its
// version in cfg.
func (m *Manager) UpdateDevices(ctx context.Context, cfg *config.Config) (DeviceCheck, error) {
	check, err := m.CheckDevices(ctx)
	if err != nil || !check.Available {
		return check, err
	}
	version, err := m.devices.Fetch(ctx, m.opts.Paths.DeviceConfigFile())
	if err != nil {
		return check, err
	}
	cfg.CurrentDeviceFileVersion = version
	return check, nil
}

// CheckAll runs both checks concurrently and logs what is available.
func (m *Manager) CheckAll(ctx context.Context, cfg config.Config) (Summary, error) {
	var (
		s              Summary
		engErr, devErr error
		wg             sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.Engine, engErr = m.CheckEngine(ctx, cfg)
	}()
	go func() {
		defer wg.Done()
		s.Devices, devErr = m.CheckDevices(ctx)
	}()
	wg.Wait()

	if engErr != nil {
		engErr = fmt.Errorf("engine update check: %w", engErr)
		logging.Warn(subsystem, "%v", engErr)
	} else if s.Engine.Available {
		logging.Info(subsystem, "Engine update available: %s -> %s", s.Engine.Current, s.Engine.Latest.Tag)
	}
	if devErr != nil {
		devErr = fmt.Errorf("device file update check: %w", devErr)
		logging.Warn(subsystem, "%v", devErr)
	} else if s.Devices.Available {
		logging.Info(subsystem, "Device file update available: %d -> %d", s.Devices.Local, s.Devices.Remote)
	}
	return s, errors.Join(engErr, devErr)
}
