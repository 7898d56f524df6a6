package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// For mocking in tests
var osUserConfigDir = os.UserConfigDir

const (
	appDirName               = "IntifaceDesktop"
	configFileName           = "intiface.config.json"
	envFileName              = "intifacectl.env"
	deviceConfigFileName     = "buttplug-device-config.json"
	userDeviceConfigFileName = "buttplug-user-device-config.json"
	engineDirName            = "engine"
	engineBaseName           = "IntifaceCLI"
	logDirName               = "logs"
	logFileName              = "intifacectl.log"
)

// Paths locates every file intifacectl and the engine share.
type Paths struct {
	Dir string
}

// DefaultPaths resolves the per-user directory.
func DefaultPaths() (Paths, error) {
	base, err := osUserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("could not determine user config directory: %w", err)
	}
	return Paths{Dir: filepath.Join(base, appDirName)}, nil
}

// NewPaths roots every path in dir.
func NewPaths(dir string) Paths {
	return Paths{Dir: dir}
}

func (p Paths) ConfigFile() string {
	return filepath.Join(p.Dir, configFileName)
}

func (p Paths) EnvFile() string {
	return filepath.Join(p.Dir, envFileName)
}

// DeviceConfigFile is the device description file shipped by the device
// config updater.
func (p Paths) DeviceConfigFile() string {
	return filepath.Join(p.Dir, deviceConfigFileName)
}

// UserDeviceConfigFile holds the user's per-device overrides.
func (p Paths) UserDeviceConfigFile() string {
	return filepath.Join(p.Dir, userDeviceConfigFileName)
}

func (p Paths) EngineDir() string {
	return filepath.Join(p.Dir, engineDirName)
}

// EngineExecutable returns cfg.EnginePath if set, otherwise the installed
// engine location.
func (p Paths) EngineExecutable(cfg Config) string {
	if cfg.EnginePath != "" {
		return cfg.EnginePath
	}
	name := engineBaseName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(p.EngineDir(), name)
}

// LogFile returns cfg.Log.File if set, otherwise the default log location.
func (p Paths) LogFile(cfg Config) string {
	if cfg.Log.File != "" {
		return cfg.Log.File
	}
	return filepath.Join(p.Dir, logDirName, logFileName)
}
