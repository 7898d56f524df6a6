package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"intifacectl/internal/config"
)

// configDir overrides the per-user configuration directory for every command.
var configDir string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "intifacectl",
	Short: "Run and control the Intiface engine from the terminal",
	Long: `intifacectl launches the Intiface engine, watches what it reports over
its control channel (connected client, connected devices, engine logs) and
keeps the engine and its device configuration file up to date.

Start it with 'intifacectl serve'. While it runs, 'intifacectl engine'
talks to it over its local control API.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. engine not running, control API unreachable)
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "intifacectl version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Configuration directory (default is the per-user IntifaceDesktop directory)")
}

// resolvePaths returns the configuration directory selected by --config-dir.
func resolvePaths() (config.Paths, error) {
	if configDir != "" {
		return config.NewPaths(configDir), nil
	}
	return config.DefaultPaths()
}

// loadSettings reads the configuration document.
func loadSettings() (config.Paths, config.Config, error) {
	paths, err := resolvePaths()
	if err != nil {
		return config.Paths{}, config.Config{}, err
	}
	cfg, err := config.Load(paths)
	if err != nil {
		return paths, config.Config{}, err
	}
	return paths, cfg, nil
}
