package cmd

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"intifacectl/internal/config"
)

var setupAcceptDefaults bool

// setupAnswers is what the first-run form collects.
type setupAnswers struct {
	ServerName           string
	Port                 string
	DeviceManagers       []string
	StartServerOnStartup bool
	CheckForUpdates      bool
	ControlAPI           bool
}

// deviceManagerKeys maps the form's choices to configuration keys.
var deviceManagerKeys = []struct {
	Key   string
	Label string
}{
	{"with_bluetooth_le", "Bluetooth LE"},
	{"with_serial_port", "Serial port"},
	{"with_hid", "HID"},
	{"with_lovense_hid_dongle", "Lovense HID dongle"},
	{"with_lovense_serial_dongle", "Lovense serial dongle"},
	{"with_lovense_connect_service", "Lovense Connect service"},
	{"with_xinput", "XInput gamepads"},
}

// runSetupForm is replaced in tests.
var runSetupForm = func(a *setupAnswers) error {
	options := make([]huh.Option[string], len(deviceManagerKeys))
	for i, dm := range deviceManagerKeys {
		options[i] = huh.NewOption(dm.Label, dm.Key).Selected(slices.Contains(a.DeviceManagers, dm.Key))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server name").
				Description("Shown to client applications").
				Value(&a.ServerName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("server name must not be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Websocket port").
				Value(&a.Port).
				Validate(validatePort),
		),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Device connection types").
				Options(options...).
				Value(&a.DeviceManagers),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Start the engine when intifacectl serve starts?").
				Value(&a.StartServerOnStartup),
			huh.NewConfirm().
				Title("Check for updates on start?").
				Value(&a.CheckForUpdates),
			huh.NewConfirm().
				Title("Enable the local control API?").
				Description("Needed by 'intifacectl engine'").
				Value(&a.ControlAPI),
		),
	)
	return form.Run()
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Walk through first-run configuration",
	Long: `Ask for the settings most installations change and save them.
With --defaults the form is skipped and the current values are kept.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().BoolVar(&setupAcceptDefaults, "defaults", false, "Keep the current values and only mark setup as done")
}

func runSetup(cmd *cobra.Command, args []string) error {
	paths, cfg, err := loadSettings()
	if err != nil {
		return err
	}

	answers := answersFromConfig(cfg)
	if !setupAcceptDefaults {
		if err := runSetupForm(&answers); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Fprintln(cmd.OutOrStdout(), "Setup cancelled, nothing was saved.")
				return nil
			}
			return err
		}
	}

	before, _, err := config.Set(paths, "has_run_setup", "true")
	if err != nil {
		return err
	}
	var after config.Config
	for _, kv := range answers.settings() {
		if _, after, err = config.Set(paths, kv[0], kv[1]); err != nil {
			return err
		}
	}

	diff, err := config.Diff(before, after)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if diff != "" {
		fmt.Fprint(out, diff)
	}
	fmt.Fprintf(out, "Setup complete. Configuration saved to %s\n", paths.ConfigFile())
	return nil
}

func answersFromConfig(cfg config.Config) setupAnswers {
	enabled := map[string]bool{
		"with_bluetooth_le":            cfg.WithBluetoothLE,
		"with_serial_port":             cfg.WithSerialPort,
		"with_hid":                     cfg.WithHID,
		"with_lovense_hid_dongle":      cfg.WithLovenseHIDDongle,
		"with_lovense_serial_dongle":   cfg.WithLovenseSerialDongle,
		"with_lovense_connect_service": cfg.WithLovenseConnectService,
		"with_xinput":                  cfg.WithXInput,
	}
	a := setupAnswers{
		ServerName:           cfg.ServerName,
		Port:                 strconv.Itoa(cfg.WebsocketServerInsecurePort),
		StartServerOnStartup: cfg.StartServerOnStartup,
		CheckForUpdates:      cfg.CheckForUpdatesOnStart,
		ControlAPI:           cfg.ControlAPI.Enabled,
	}
	for _, dm := range deviceManagerKeys {
		if enabled[dm.Key] {
			a.DeviceManagers = append(a.DeviceManagers, dm.Key)
		}
	}
	return a
}

// settings lists the answers as configuration key/value pairs.
func (a setupAnswers) settings() [][2]string {
	kv := [][2]string{
		{"server_name", strings.TrimSpace(a.ServerName)},
		{"websocket_server_insecure_port", strings.TrimSpace(a.Port)},
		{"start_server_on_startup", strconv.FormatBool(a.StartServerOnStartup)},
		{"check_for_updates_on_start", strconv.FormatBool(a.CheckForUpdates)},
		{"control_api.enabled", strconv.FormatBool(a.ControlAPI)},
	}
	for _, dm := range deviceManagerKeys {
		kv = append(kv, [2]string{dm.Key, strconv.FormatBool(slices.Contains(a.DeviceManagers, dm.Key))})
	}
	return kv
}

func validatePort(s string) error {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("%q is not a valid port", s)
	}
	return nil
}
