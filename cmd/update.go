package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"intifacectl/internal/api"
	"intifacectl/internal/cli"
	"intifacectl/internal/config"
	"intifacectl/internal/updater"
)

var (
	updateCheckOnly bool
	updateShowNotes bool
)

// newUpdater is replaced in tests.
var newUpdater = func(paths config.Paths, isRunning func() bool) *updater.Manager {
	return updater.New(updater.Options{Paths: paths, IsRunning: isRunning})
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check for and install engine and device file updates",
	Long: `Check for and install updates.

Available commands:
  engine    - Install the newest engine release for this platform
  devices   - Download the newest device configuration file

Engine updates are refused while a serve instance reports a running engine.`,
}

var updateEngineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Update the engine",
	Args:  cobra.NoArgs,
	RunE:  runUpdateEngine,
}

var updateDevicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Update the device configuration file",
	Args:  cobra.NoArgs,
	RunE:  runUpdateDevices,
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.AddCommand(updateEngineCmd)
	updateCmd.AddCommand(updateDevicesCmd)

	updateCmd.PersistentFlags().BoolVar(&updateCheckOnly, "check", false, "Only report whether an update is available")
	updateEngineCmd.Flags().BoolVar(&updateShowNotes, "notes", true, "Print the release notes of a newer release")
}

func runUpdateEngine(cmd *cobra.Command, args []string) error {
	paths, cfg, err := loadSettings()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	m := newUpdater(paths, func() bool { return remoteEngineRunning(ctx, cfg) })

	var check updater.EngineCheck
	if updateCheckOnly {
		check, err = m.CheckEngine(ctx, cfg)
	} else {
		check, err = m.UpdateEngine(ctx, &cfg)
	}
	if err != nil {
		return err
	}

	if !check.Available {
		fmt.Fprintf(out, "Engine %s is up to date.\n", displayVersion(check.Current))
		return nil
	}

	if updateCheckOnly {
		fmt.Fprintf(out, "Engine update available: %s -> %s\n", displayVersion(check.Current), check.Latest.Tag)
	} else {
		if _, _, err := config.Set(paths, "current_engine_version", check.Latest.Tag); err != nil {
			return fmt.Errorf("engine installed but the configuration could not be saved: %w", err)
		}
		fmt.Fprintf(out, "Engine updated: %s -> %s\n", displayVersion(check.Current), check.Latest.Tag)
	}
	if updateShowNotes {
		printNotes(out, check.Latest)
	}
	return nil
}

func runUpdateDevices(cmd *cobra.Command, args []string) error {
	paths, cfg, err := loadSettings()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	m := newUpdater(paths, nil)

	var check updater.DeviceCheck
	if updateCheckOnly {
		check, err = m.CheckDevices(ctx)
	} else {
		check, err = m.UpdateDevices(ctx, &cfg)
	}
	if err != nil {
		return err
	}

	switch {
	case !check.Available:
		fmt.Fprintf(out, "Device file version %d is up to date.\n", check.Local)
	case updateCheckOnly:
		fmt.Fprintf(out, "Device file update available: %d -> %d\n", check.Local, check.Remote)
	default:
		if _, _, err := config.Set(paths, "current_device_file_version", strconv.FormatUint(uint64(cfg.CurrentDeviceFileVersion), 10)); err != nil {
			return fmt.Errorf("device file updated but the configuration could not be saved: %w", err)
		}
		fmt.Fprintf(out, "Device file updated: %d -> %d\n", check.Local, cfg.CurrentDeviceFileVersion)
	}
	return nil
}

func displayVersion(v string) string {
	if v == "" || v == "0" {
		return "(not installed)"
	}
	return v
}

func printNotes(out io.Writer, rel updater.EngineRelease) {
	width := 100
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	if notes := updater.RenderNotes(rel.Notes, width); notes != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, notes)
	}
}

// remoteEngineRunning asks a running serve instance, if any, whether its
// engine is up. An unreachable control API means no engine is managed.
func remoteEngineRunning(ctx context.Context, cfg config.Config) bool {
	if !cfg.ControlAPI.Enabled {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	client := cli.NewCLIClient(cfg.ControlAPI.Endpoint(), rootCmd.Version)
	if err := client.Connect(ctx); err != nil {
		return false
	}
	defer client.Close()

	raw, err := client.CallToolSimple(ctx, api.ToolEngineStatus, nil)
	if err != nil {
		return false
	}
	st, err := cli.DecodeStatus(raw)
	return err == nil && st.Running
}
