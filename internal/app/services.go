package app

import (
	"context"

	"intifacectl/internal/api"
	"intifacectl/internal/config"
	"intifacectl/internal/notify"
	"intifacectl/internal/supervisor"
	"intifacectl/internal/updater"
)

// Services holds all the initialized services
type Services struct {
	Paths      config.Paths
	Notifier   notify.Notifier
	Supervisor *supervisor.Supervisor
	Updater    *updater.Manager
	// API is nil when the control API is disabled.
	API *api.Server
	// Engine starts the supervisor with the configuration on disk.
	Engine *EngineController
}

// InitializeServices creates the supervisor and the services around it.
func InitializeServices(cfg *Config, paths config.Paths, settings config.Config) (*Services, error) {
	notifier := notify.Notifier(notify.Nop{})
	if settings.DesktopNotifications {
		notifier = notify.NewDesktop(true)
	}

	sv := supervisor.New(supervisor.Options{
		Paths:    paths,
		Notifier: notifier,
	})

	engine := &EngineController{
		Supervisor: sv,
		Load:       func() (config.Config, error) { return config.Load(paths) },
	}

	svcs := &Services{
		Paths:      paths,
		Notifier:   notifier,
		Supervisor: sv,
		Engine:     engine,
		Updater: updater.New(updater.Options{
			Paths:     paths,
			IsRunning: sv.IsRunning,
		}),
	}

	if settings.ControlAPI.Enabled {
		svcs.API = api.NewServer(api.Options{
			Host:    settings.ControlAPI.Host,
			Port:    settings.ControlAPI.Port,
			Version: cfg.Version,
			Engine:  sv,
			LoadConfig: func(context.Context) (config.Config, error) {
				return config.Load(paths)
			},
		})
	}
	return svcs, nil
}

// EngineController adapts the supervisor to callers that start the engine
// without holding a configuration, such as the TUI.
type EngineController struct {
	*supervisor.Supervisor
	Load func() (config.Config, error)
}

// Start re-reads the configuration and runs the engine with it.
func (e *EngineController) Start() error {
	cfg, err := e.Load()
	if err != nil {
		return err
	}
	return e.Run(cfg)
}
