package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the configuration document.
type Config struct {
	ServerName                   string `json:"server_name" mapstructure:"server_name" yaml:"server_name"`
	ServerMaxPingTime            uint32 `json:"server_max_ping_time" mapstructure:"server_max_ping_time" yaml:"server_max_ping_time"`
	UseWebsocketServerInsecure   bool   `json:"use_websocket_server_insecure" mapstructure:"use_websocket_server_insecure" yaml:"use_websocket_server_insecure"`
	WebsocketServerAllInterfaces bool   `json:"websocket_server_all_interfaces" mapstructure:"websocket_server_all_interfaces" yaml:"websocket_server_all_interfaces"`
	WebsocketServerInsecurePort  int    `json:"websocket_server_insecure_port" mapstructure:"websocket_server_insecure_port" yaml:"websocket_server_insecure_port"`
	ServerLogLevel               string `json:"server_log_level" mapstructure:"server_log_level" yaml:"server_log_level"`

	UsePrereleaseEngine      bool   `json:"use_prerelease_engine" mapstructure:"use_prerelease_engine" yaml:"use_prerelease_engine"`
	CurrentEngineVersion     string `json:"current_engine_version" mapstructure:"current_engine_version" yaml:"current_engine_version"`
	CurrentDeviceFileVersion uint32 `json:"current_device_file_version" mapstructure:"current_device_file_version" yaml:"current_device_file_version"`
	CheckForUpdatesOnStart   bool   `json:"check_for_updates_on_start" mapstructure:"check_for_updates_on_start" yaml:"check_for_updates_on_start"`
	HasRunSetup              bool   `json:"has_run_setup" mapstructure:"has_run_setup" yaml:"has_run_setup"`
	StartServerOnStartup     bool   `json:"start_server_on_startup" mapstructure:"start_server_on_startup" yaml:"start_server_on_startup"`

	WithBluetoothLE           bool `json:"with_bluetooth_le" mapstructure:"with_bluetooth_le" yaml:"with_bluetooth_le"`
	WithSerialPort            bool `json:"with_serial_port" mapstructure:"with_serial_port" yaml:"with_serial_port"`
	WithHID                   bool `json:"with_hid" mapstructure:"with_hid" yaml:"with_hid"`
	WithLovenseHIDDongle      bool `json:"with_lovense_hid_dongle" mapstructure:"with_lovense_hid_dongle" yaml:"with_lovense_hid_dongle"`
	WithLovenseSerialDongle   bool `json:"with_lovense_serial_dongle" mapstructure:"with_lovense_serial_dongle" yaml:"with_lovense_serial_dongle"`
	WithLovenseConnectService bool `json:"with_lovense_connect_service" mapstructure:"with_lovense_connect_service" yaml:"with_lovense_connect_service"`
	WithXInput                bool `json:"with_xinput" mapstructure:"with_xinput" yaml:"with_xinput"`
	CrashReporting            bool `json:"crash_reporting" mapstructure:"crash_reporting" yaml:"crash_reporting"`

	// EnginePath overrides the engine executable location.
	EnginePath string `json:"engine_path" mapstructure:"engine_path" yaml:"engine_path"`
	// EngineStopTimeoutSeconds is how long a stop request may take before
	// the engine is killed. Zero disables the kill.
	EngineStopTimeoutSeconds int  `json:"engine_stop_timeout_seconds" mapstructure:"engine_stop_timeout_seconds" yaml:"engine_stop_timeout_seconds"`
	DesktopNotifications     bool `json:"desktop_notifications" mapstructure:"desktop_notifications" yaml:"desktop_notifications"`

	ControlAPI ControlAPIConfig `json:"control_api" mapstructure:"control_api" yaml:"control_api"`
	Log        LogConfig        `json:"log" mapstructure:"log" yaml:"log"`
}

// ControlAPIConfig configures the local control API served by `serve`.
type ControlAPIConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	Host    string `json:"host" mapstructure:"host" yaml:"host"`
	Port    int    `json:"port" mapstructure:"port" yaml:"port"`
}

// Endpoint returns the SSE base URL of the control API.
func (c ControlAPIConfig) Endpoint() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// Addr returns the listen address of the control API.
func (c ControlAPIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig configures the rotating log file.
type LogConfig struct {
	// File defaults to logs/intifacectl.log in the config directory.
	File       string `json:"file" mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" mapstructure:"compress" yaml:"compress"`
}

// StopTimeout returns the kill-fallback delay.
func (c Config) StopTimeout() time.Duration {
	return time.Duration(c.EngineStopTimeoutSeconds) * time.Second
}

var engineLogLevels = []string{"error", "warn", "info", "debug", "trace"}

// Validate checks value ranges. All problems are reported together.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ServerName) == "" {
		errs = append(errs, errors.New("server_name must not be empty"))
	}
	if c.WebsocketServerInsecurePort < 1 || c.WebsocketServerInsecurePort > 65535 {
		errs = append(errs, fmt.Errorf("websocket_server_insecure_port %d is out of range", c.WebsocketServerInsecurePort))
	}
	if !validLogLevel(c.ServerLogLevel) {
		errs = append(errs, fmt.Errorf("server_log_level %q must be one of %s", c.ServerLogLevel, strings.Join(engineLogLevels, ", ")))
	}
	if c.EngineStopTimeoutSeconds < 0 {
		errs = append(errs, errors.New("engine_stop_timeout_seconds must not be negative"))
	}
	if c.ControlAPI.Enabled && (c.ControlAPI.Port < 1 || c.ControlAPI.Port > 65535) {
		errs = append(errs, fmt.Errorf("control_api.port %d is out of range", c.ControlAPI.Port))
	}
	if c.ControlAPI.Enabled && c.ControlAPI.Port == c.WebsocketServerInsecurePort {
		errs = append(errs, errors.New("control_api.port must differ from websocket_server_insecure_port"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func validLogLevel(level string) bool {
	for _, l := range engineLogLevels {
		if level == l {
			return true
		}
	}
	return false
}
