package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"intifacectl/internal/cli"
	"intifacectl/internal/config"
)

var configOutputFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the configuration",
	Long: `Inspect and edit the configuration document shared with the engine.

Available commands:
  show   - Print the effective configuration
  path   - Print the configuration file location
  keys   - List every settable key
  set    - Change one key and show the difference`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration with defaults and INTIFACECTL_* environment
overrides applied.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := resolvePaths()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), paths.ConfigFile())
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List every settable key",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(config.Keys(), "\n"))
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one configuration key",
	Long: `Change one key of the stored configuration document and print a diff
of the change. Use 'intifacectl config keys' to list the keys.

Example:
  intifacectl config set websocket_server_insecure_port 12345
  intifacectl config set control_api.enabled false`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configSetCmd)

	configShowCmd.Flags().StringVarP(&configOutputFormat, "output", "o", "yaml", "Output format (json, yaml)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(configOutputFormat)
	if err != nil {
		return err
	}
	_, cfg, err := loadSettings()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case cli.OutputFormatJSON:
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	case cli.OutputFormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q for config, use json or yaml", format)
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	paths, err := resolvePaths()
	if err != nil {
		return err
	}
	before, after, err := config.Set(paths, args[0], args[1])
	if err != nil {
		return err
	}

	diff, err := config.Diff(before, after)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if diff == "" {
		fmt.Fprintln(out, "No change.")
		return nil
	}
	fmt.Fprint(out, diff)
	return nil
}
