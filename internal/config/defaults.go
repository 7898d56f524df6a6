package config

// Default returns the configuration used when no document exists.
func Default() Config {
	return Config{
		ServerName:                   "Intiface Desktop Server",
		ServerMaxPingTime:            0,
		UseWebsocketServerInsecure:   true,
		WebsocketServerAllInterfaces: false,
		WebsocketServerInsecurePort:  12345,
		ServerLogLevel:               "info",

		UsePrereleaseEngine:      false,
		CurrentEngineVersion:     "0",
		CurrentDeviceFileVersion: 0,
		CheckForUpdatesOnStart:   true,
		HasRunSetup:              false,
		StartServerOnStartup:     false,

		WithBluetoothLE:           true,
		WithSerialPort:            true,
		WithHID:                   true,
		WithLovenseHIDDongle:      true,
		WithLovenseSerialDongle:   true,
		WithLovenseConnectService: true,
		WithXInput:                true,
		CrashReporting:            false,

		EngineStopTimeoutSeconds: 10,
		DesktopNotifications:     true,

		ControlAPI: ControlAPIConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    12346,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
	}
}
