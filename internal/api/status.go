package api

import (
	"context"

	"intifacectl/internal/config"
	"intifacectl/internal/livestate"
	"intifacectl/internal/supervisor"
)

// Engine is the part of the supervisor the control API drives.
type Engine interface {
	State() supervisor.State
	IsRunning() bool
	CurrentClientName() (string, bool)
	ConnectedDevices() []livestate.DeviceRecord
	Run(cfg config.Config) error
	Stop() error
}

// Status is the engine snapshot returned by every tool.
type Status struct {
	State   string                   `json:"state" yaml:"state"`
	Running bool                     `json:"running" yaml:"running"`
	Client  string                   `json:"client,omitempty" yaml:"client,omitempty"`
	Devices []livestate.DeviceRecord `json:"devices" yaml:"devices"`
}

// Snapshot reads the current status of e.
func Snapshot(e Engine) Status {
	s := Status{
		State:   e.State().String(),
		Running: e.IsRunning(),
		Devices: e.ConnectedDevices(),
	}
	if name, ok := e.CurrentClientName(); ok {
		s.Client = name
	}
	if s.Devices == nil {
		s.Devices = []livestate.DeviceRecord{}
	}
	return s
}

// ConfigLoader returns the configuration an engine start should use.
type ConfigLoader func(ctx context.Context) (config.Config, error)
