package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/term"

	"intifacectl/internal/config"
	"intifacectl/pkg/logging"
)

// shutdownTimeout bounds how long exit waits for the engine before killing it.
const shutdownTimeout = 15 * time.Second

// isTerminal is replaced in tests.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}

// Application is the main application structure that bootstraps and runs intifacectl
type Application struct {
	config   *Config
	paths    config.Paths
	settings config.Config
	services *Services
}

// NewApplication creates and initializes a new application instance
func NewApplication(cfg *Config) (*Application, error) {
	// Initialize logging for CLI output (will be replaced for TUI mode)
	logging.InitForCLI(cfg.logLevel(), os.Stdout)

	paths, err := resolvePaths(cfg.ConfigDir)
	if err != nil {
		return nil, err
	}

	settings, err := config.Load(paths)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load configuration from %s", paths.ConfigFile())
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Debug("Bootstrap", "Loaded configuration from %s", paths.ConfigFile())

	services, err := InitializeServices(cfg, paths, settings)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		paths:    paths,
		settings: settings,
		services: services,
	}, nil
}

func resolvePaths(dir string) (config.Paths, error) {
	if dir != "" {
		return config.NewPaths(dir), nil
	}
	return config.DefaultPaths()
}

func (c *Config) logLevel() logging.LogLevel {
	if c.Debug {
		return logging.LevelDebug
	}
	return logging.LevelInfo
}

// Services returns the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// Run executes the application in the appropriate mode
func (a *Application) Run(ctx context.Context) error {
	noTUI := a.config.NoTUI
	if !noTUI && !isTerminal() {
		logging.Warn("Bootstrap", "Standard output is not a terminal, running without the TUI")
		noTUI = true
	}

	if noTUI {
		a.configureFileLogging(nil)
		defer a.shutdown()
		if err := a.startServices(ctx); err != nil {
			return err
		}
		return runCLIMode(ctx, a)
	}
	return runTUIMode(ctx, a)
}

// startServices brings up the control API and performs the startup actions
// the configuration asks for.
func (a *Application) startServices(ctx context.Context) error {
	if a.services.API != nil {
		if err := a.services.API.Start(ctx); err != nil {
			logging.Error("Bootstrap", err, "Failed to start control API")
			return err
		}
	}

	if a.settings.CheckForUpdatesOnStart {
		go func() {
			checkCtx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			_, _ = a.services.Updater.CheckAll(checkCtx, a.settings)
		}()
	}

	if a.settings.StartServerOnStartup {
		if err := a.services.Supervisor.Run(a.settings); err != nil {
			logging.Error("Bootstrap", err, "Failed to start engine on startup")
			return err
		}
	}
	return nil
}

// configureFileLogging re-initializes logging with the configured rotating
// file added. A nil buffer keeps output on stdout.
func (a *Application) configureFileLogging(buffer *logging.Buffer) {
	file := &logging.FileOptions{
		Path:       a.paths.LogFile(a.settings),
		MaxSizeMB:  a.settings.Log.MaxSizeMB,
		MaxBackups: a.settings.Log.MaxBackups,
		MaxAgeDays: a.settings.Log.MaxAgeDays,
		Compress:   a.settings.Log.Compress,
	}
	if err := os.MkdirAll(a.paths.Dir, 0o755); err != nil {
		logging.Warn("Bootstrap", "Not writing a log file: %v", err)
		file = nil
	}
	opts := logging.Options{Level: a.config.logLevel(), File: file, Buffer: buffer}
	if buffer == nil {
		opts.Output = os.Stdout
	}
	logging.Init(opts)
}

// shutdown stops the engine and the control API and flushes logs.
func (a *Application) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.services.Supervisor.Shutdown(ctx); err != nil {
		logging.Error("Bootstrap", err, "Engine did not shut down cleanly")
	}
	if a.services.API != nil {
		if err := a.services.API.Stop(ctx); err != nil {
			logging.Error("Bootstrap", err, "Failed to stop control API")
		}
	}
	_ = logging.Close()
}
