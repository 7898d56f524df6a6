package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"intifacectl/internal/app"
)

// serveNoTUI controls whether to run in CLI mode (true) or TUI mode (false).
var serveNoTUI bool

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveCmd defines the serve command structure.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Intiface engine supervisor with an interactive TUI or CLI mode.",
	Long: `Starts the engine supervisor and the local control API.
It can run in two modes:

1. Interactive TUI Mode (default):
   - Shows the engine state, the connected client and connected devices.
   - Streams engine and supervisor logs with level filters.
   - Starts and stops the engine with a single key.

2. Non-TUI / CLI Mode (using --no-tui flag):
   - Logs to the console.
   - Runs until interrupted (Ctrl+C), stopping the engine on the way out.
   - Useful for scripting or when a TUI is not desired.

The engine is started right away when start_server_on_startup is set, and
updates are checked in the background when check_for_updates_on_start is set.
Use 'intifacectl engine' to control a running instance.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveNoTUI, serveDebug, configDir, rootCmd.Version)

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveNoTUI, "no-tui", false, "Disable TUI and log to the console")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
}
