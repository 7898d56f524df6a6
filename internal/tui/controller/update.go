package controller

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"intifacectl/internal/supervisor"
	"intifacectl/internal/tui/model"
	"intifacectl/internal/tui/view"
	"intifacectl/pkg/logging"
)

const subsystem = "TUI"

// Update is the main message dispatcher.
func Update(msg tea.Msg, m *model.Model) (*model.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width
		m.LogViewport.Width, m.LogViewport.Height = view.LogViewportSize(msg.Width, msg.Height)
		view.SyncLogViewport(m)
		return m, nil

	case model.TickMsg:
		if m.QuitApp {
			return m, nil
		}
		m.Refresh()
		view.SyncLogViewport(m)
		return m, model.TickCmd()

	case model.EngineActionResultMsg:
		m.ActionPending = false
		m.Refresh()
		if msg.Err != nil {
			logging.Error(subsystem, msg.Err, "Engine %s failed", msg.Action)
			return m, m.SetStatusMessage(fmt.Sprintf("Engine %s failed: %v", msg.Action, msg.Err), model.StatusBarError, model.StatusMessageDuration)
		}
		text := "Engine starting"
		if msg.Action == "stop" {
			text = "Engine stopping"
		}
		return m, m.SetStatusMessage(text, model.StatusBarSuccess, model.StatusMessageDuration)

	case model.ClearStatusBarMsg:
		if msg.ID == m.StatusMessageID {
			m.StatusMessage = ""
		}
		return m, nil

	case tea.KeyMsg:
		return handleKeyMsgGlobal(m, msg)
	}
	return m, nil
}

func toggleEngine(m *model.Model) tea.Cmd {
	if m.ActionPending {
		return nil
	}
	cmd := m.ToggleEngineCmd()
	if cmd == nil {
		if m.EngineState == supervisor.StateStarting || m.EngineState == supervisor.StateStopping {
			return m.SetStatusMessage(fmt.Sprintf("Engine is %s", m.EngineState), model.StatusBarInfo, model.StatusMessageDuration)
		}
		return nil
	}
	m.ActionPending = true
	return cmd
}
