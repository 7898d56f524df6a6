package controller

import (
	tea "github.com/charmbracelet/bubbletea"

	"intifacectl/internal/tui/model"
)

// NewProgram creates the Bubble Tea program for the engine dashboard.
func NewProgram(cfg model.TUIConfig) *tea.Program {
	m := model.InitializeModel(cfg)
	app := NewAppModel(m)
	return tea.NewProgram(app, tea.WithAltScreen())
}
