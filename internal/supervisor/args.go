package supervisor

import (
	"strconv"

	"intifacectl/internal/config"
)

// BuildArguments returns the engine command line for cfg. channelAddress is
// the control endpoint the engine connects back to. Device description files
// are only passed when exists reports them present.
func BuildArguments(cfg config.Config, paths config.Paths, channelAddress string, exists func(string) bool) []string {
	args := []string{
		"--servername", cfg.ServerName,
		"--stayopen",
		"--frontendpipe", channelAddress,
	}

	if f := paths.DeviceConfigFile(); exists(f) {
		args = append(args, "--deviceconfig", f)
	}
	if f := paths.UserDeviceConfigFile(); exists(f) {
		args = append(args, "--userdeviceconfig", f)
	}

	if cfg.UseWebsocketServerInsecure {
		if cfg.WebsocketServerAllInterfaces {
			args = append(args, "--wsallinterfaces")
		}
		args = append(args, "--wsinsecureport", strconv.Itoa(cfg.WebsocketServerInsecurePort))
	}

	args = append(args, "--log", cfg.ServerLogLevel)
	if cfg.ServerMaxPingTime > 0 {
		args = append(args, "--pingtime", strconv.FormatUint(uint64(cfg.ServerMaxPingTime), 10))
	}

	// Transports are on unless switched off.
	optOuts := []struct {
		enabled bool
		flag    string
	}{
		{cfg.WithBluetoothLE, "--without-bluetooth-le"},
		{cfg.WithHID, "--without-hid"},
		{cfg.WithLovenseHIDDongle, "--without-lovense-dongle-hid"},
		{cfg.WithLovenseSerialDongle, "--without-lovense-dongle-serial"},
		{cfg.WithSerialPort, "--without-serial"},
		{cfg.WithXInput, "--without-xinput"},
	}
	for _, o := range optOuts {
		if !o.enabled {
			args = append(args, o.flag)
		}
	}

	if cfg.WithLovenseConnectService {
		args = append(args, "--with-lovense-connect")
	}
	if cfg.CrashReporting {
		args = append(args, "--crash-reporting")
	}
	return args
}
