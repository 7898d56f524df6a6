package app

// Config holds the application configuration
type Config struct {
	// UI mode
	NoTUI bool

	// Debug settings
	Debug bool

	// ConfigDir overrides the per-user configuration directory.
	ConfigDir string

	// Version is reported by the TUI header and the control API.
	Version string
}

// NewConfig creates a new application configuration
func NewConfig(noTUI, debug bool, configDir, version string) *Config {
	return &Config{
		NoTUI:     noTUI,
		Debug:     debug,
		ConfigDir: configDir,
		Version:   version,
	}
}
