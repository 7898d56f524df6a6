package model

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"intifacectl/internal/supervisor"
)

// TickCmd schedules the next refresh.
func TickCmd() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// ToggleEngineCmd starts a stopped engine or stops a running one. The
// request runs off the update loop.
func (m *Model) ToggleEngineCmd() tea.Cmd {
	ctrl := m.Controller
	if ctrl == nil {
		return nil
	}
	switch m.EngineState {
	case supervisor.StateNotRunning:
		return func() tea.Msg {
			return EngineActionResultMsg{Action: "start", Err: ctrl.Start()}
		}
	case supervisor.StateRunning:
		return func() tea.Msg {
			return EngineActionResultMsg{Action: "stop", Err: ctrl.Stop()}
		}
	default:
		return nil
	}
}

// SetStatusMessage shows msg and schedules its removal.
func (m *Model) SetStatusMessage(msg string, t MessageType, d time.Duration) tea.Cmd {
	m.StatusMessageID++
	id := m.StatusMessageID
	m.StatusMessage = msg
	m.StatusMessageType = t
	return tea.Tick(d, func(time.Time) tea.Msg {
		return ClearStatusBarMsg{ID: id}
	})
}
