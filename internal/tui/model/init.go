package model

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"intifacectl/pkg/logging"
)

// TUIConfig carries what the TUI needs from the application.
type TUIConfig struct {
	Version    string
	ServerName string
	Controller Controller
	Logs       *logging.Buffer
	LogFilter  logging.LogLevel
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "scroll down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdown", "page down"),
		),
		Esc: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q/ctrl+c", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "toggle help"),
		),
		StartStop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start/stop engine"),
		),
		ClearLogs: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear logs"),
		),
		CopyLogs: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy logs"),
		),
		FilterDebug: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "debug and up"),
		),
		FilterInfo: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "info and up"),
		),
		FilterWarn: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "warnings and errors"),
		),
		FilterError: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "errors only"),
		),
	}
}

// InitializeModel builds the starting model.
func InitializeModel(cfg TUIConfig) *Model {
	if cfg.Logs == nil {
		cfg.Logs = logging.NewBuffer(logging.DefaultBufferCapacity)
	}
	m := &Model{
		CurrentAppMode: ModeMainDashboard,
		Version:        cfg.Version,
		ServerName:     cfg.ServerName,
		Controller:     cfg.Controller,
		Logs:           cfg.Logs,
		LogFilter:      cfg.LogFilter,
		LogViewport:    viewport.New(0, 0),
		Keys:           DefaultKeyMap(),
		Help:           help.New(),
	}
	m.Refresh()
	return m
}

// Init starts the refresh ticker.
func (m *Model) Init() tea.Cmd {
	return TickCmd()
}
