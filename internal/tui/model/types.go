package model

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"

	"intifacectl/internal/livestate"
	"intifacectl/internal/supervisor"
	"intifacectl/pkg/logging"
)

// AppMode represents the current mode of the application
type AppMode int

const (
	ModeMainDashboard AppMode = iota
	ModeHelpOverlay
	ModeQuitting
)

// String provides a human-readable representation of the AppMode.
func (m AppMode) String() string {
	switch m {
	case ModeMainDashboard:
		return "MainDashboard"
	case ModeHelpOverlay:
		return "HelpOverlay"
	case ModeQuitting:
		return "Quitting"
	default:
		return "Unknown"
	}
}

// MessageType represents the type of status bar message
type MessageType int

const (
	StatusBarInfo MessageType = iota
	StatusBarSuccess
	StatusBarError
)

const (
	// RefreshInterval is how often engine state and logs are re-read.
	RefreshInterval = 250 * time.Millisecond
	// StatusMessageDuration is how long a status bar message stays up.
	StatusMessageDuration = 3 * time.Second
)

// Controller is the engine surface the TUI drives.
type Controller interface {
	State() supervisor.State
	CurrentClientName() (string, bool)
	ConnectedDevices() []livestate.DeviceRecord
	// Start launches the engine with the saved configuration.
	Start() error
	Stop() error
}

// KeyMap defines all the key bindings for the application
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	Esc         key.Binding
	Quit        key.Binding
	Help        key.Binding
	StartStop   key.Binding
	ClearLogs   key.Binding
	CopyLogs    key.Binding
	FilterDebug key.Binding
	FilterInfo  key.Binding
	FilterWarn  key.Binding
	FilterError key.Binding
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.StartStop, k.ClearLogs, k.CopyLogs, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.StartStop, k.Quit, k.Help, k.Esc},
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.ClearLogs, k.CopyLogs},
		{k.FilterDebug, k.FilterInfo, k.FilterWarn, k.FilterError},
	}
}

// Model is the TUI state.
type Model struct {
	// Terminal dimensions
	Width  int
	Height int

	CurrentAppMode AppMode
	QuitApp        bool
	Version        string
	ServerName     string

	Controller Controller

	// Engine snapshot, refreshed on every tick.
	EngineState supervisor.State
	ClientName  string
	Devices     []livestate.DeviceRecord
	// ActionPending is set while a start or stop request is in flight.
	ActionPending bool

	// Log panel
	Logs          *logging.Buffer
	LogFilter     logging.LogLevel
	LogViewport   viewport.Model
	LastLogSeq    uint64
	LastLogFilter logging.LogLevel
	LastLogWidth  int

	Keys KeyMap
	Help help.Model

	StatusMessage     string
	StatusMessageType MessageType
	// StatusMessageID ties a clear message to the status it was set for.
	StatusMessageID int
}
