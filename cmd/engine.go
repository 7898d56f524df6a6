package cmd

import (
	"github.com/spf13/cobra"

	"intifacectl/internal/api"
	"intifacectl/internal/cli"
)

var (
	engineOutputFormat string
	engineEndpoint     string
)

// engineCmd represents the engine command
var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Control the engine of a running serve instance",
	Long: `Control the engine managed by a running 'intifacectl serve'.

Available commands:
  status   - Show the engine state, connected client and devices
  start    - Start the engine with the saved configuration
  stop     - Ask the engine to shut down

Note: 'intifacectl serve' must be running with the control API enabled.`,
}

var engineStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine status",
	Args:  cobra.NoArgs,
	RunE:  engineToolRunner(api.ToolEngineStatus),
}

var engineStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the engine",
	Long: `Start the engine with the configuration currently saved on disk.
Fails if the engine is already running.`,
	Args: cobra.NoArgs,
	RunE: engineToolRunner(api.ToolEngineStart),
}

var engineStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the engine",
	Long: `Ask the engine to shut down. The command returns once the request is
delivered; the engine is killed if it does not exit within
engine_stop_timeout_seconds.`,
	Args: cobra.NoArgs,
	RunE: engineToolRunner(api.ToolEngineStop),
}

func init() {
	rootCmd.AddCommand(engineCmd)

	engineCmd.AddCommand(engineStatusCmd)
	engineCmd.AddCommand(engineStartCmd)
	engineCmd.AddCommand(engineStopCmd)

	engineCmd.PersistentFlags().StringVarP(&engineOutputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	engineCmd.PersistentFlags().StringVar(&engineEndpoint, "endpoint", "", "Control API base URL (default from the configuration)")
}

func engineToolRunner(tool string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseOutputFormat(engineOutputFormat)
		if err != nil {
			return err
		}
		endpoint, err := controlEndpoint()
		if err != nil {
			return err
		}

		client := cli.NewCLIClient(endpoint, rootCmd.Version)
		ctx := cmd.Context()
		if err := client.Connect(ctx); err != nil {
			return err
		}
		defer client.Close()

		return cli.NewToolExecutor(client, format, cmd.OutOrStdout()).Execute(ctx, tool)
	}
}

// controlEndpoint returns --endpoint or the configured control API URL.
func controlEndpoint() (string, error) {
	if engineEndpoint != "" {
		return engineEndpoint, nil
	}
	_, cfg, err := loadSettings()
	if err != nil {
		return "", err
	}
	return cfg.ControlAPI.Endpoint(), nil
}
