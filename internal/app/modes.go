package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"intifacectl/internal/color"
	"intifacectl/internal/tui/controller"
	"intifacectl/internal/tui/model"
	"intifacectl/pkg/logging"
)

// runCLIMode executes the non-interactive command line mode. It returns on
// a signal, when ctx ends, or when an engine started without a control API
// exits, since nothing could start it again.
func runCLIMode(ctx context.Context, a *Application) error {
	logging.Info("CLI", "Running in no-TUI mode.")
	if a.services.API != nil {
		logging.Info("CLI", "Control API listening on %s", a.services.API.Endpoint())
	}
	logging.Info("CLI", "Press Ctrl+C to stop the engine and exit.")

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.services.API == nil && a.services.Supervisor.IsRunning() {
		_ = a.services.Supervisor.Wait(sigCtx)
		if sigCtx.Err() == nil {
			logging.Info("CLI", "Engine exited, shutting down.")
			return nil
		}
	} else {
		<-sigCtx.Done()
	}

	logging.Info("CLI", "--- Shutting down ---")
	return nil
}

// runTUIMode executes the interactive terminal UI mode
func runTUIMode(ctx context.Context, a *Application) error {
	logging.Info("CLI", "Starting TUI mode...")

	color.Initialize(true)

	// Route logging into the buffer the log panel reads.
	buffer := logging.NewBuffer(logging.DefaultBufferCapacity)
	a.configureFileLogging(buffer)
	defer a.shutdown()

	if err := a.startServices(ctx); err != nil {
		// Startup failures are shown in the log panel; the user can retry.
		logging.Error("TUI-Lifecycle", err, "Startup incomplete")
	}

	p := controller.NewProgram(model.TUIConfig{
		Version:    a.config.Version,
		ServerName: a.settings.ServerName,
		Controller: a.services.Engine,
		Logs:       buffer,
		LogFilter:  a.config.logLevel(),
	})

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		logging.Error("TUI-Lifecycle", err, "Error running TUI program")
		return err
	}
	logging.Info("TUI-Lifecycle", "TUI exited.")
	return nil
}
