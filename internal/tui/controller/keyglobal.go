package controller

import (
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"intifacectl/internal/tui/model"
	"intifacectl/internal/tui/view"
	"intifacectl/pkg/logging"
)

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

// handleKeyMsgGlobal processes key presses for the dashboard and the help overlay.
func handleKeyMsgGlobal(m *model.Model, keyMsg tea.KeyMsg) (*model.Model, tea.Cmd) {
	if key.Matches(keyMsg, m.Keys.Quit) {
		m.QuitApp = true
		m.CurrentAppMode = model.ModeQuitting
		return m, tea.Quit
	}

	if m.CurrentAppMode == model.ModeHelpOverlay {
		if key.Matches(keyMsg, m.Keys.Help) || key.Matches(keyMsg, m.Keys.Esc) {
			m.CurrentAppMode = model.ModeMainDashboard
		}
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.Keys.Help):
		m.CurrentAppMode = model.ModeHelpOverlay
		return m, nil

	case key.Matches(keyMsg, m.Keys.StartStop):
		return m, toggleEngine(m)

	case key.Matches(keyMsg, m.Keys.ClearLogs):
		m.Logs.Clear()
		view.SyncLogViewport(m)
		return m, m.SetStatusMessage("Logs cleared", model.StatusBarInfo, model.StatusMessageDuration)

	case key.Matches(keyMsg, m.Keys.CopyLogs):
		if err := writeClipboard(view.PlainLogContent(m.VisibleLogEntries())); err != nil {
			logging.Error(subsystem, err, "Failed to copy logs")
			return m, m.SetStatusMessage("Copy logs failed", model.StatusBarError, model.StatusMessageDuration)
		}
		return m, m.SetStatusMessage("Logs copied to clipboard", model.StatusBarSuccess, model.StatusMessageDuration)

	case key.Matches(keyMsg, m.Keys.FilterDebug):
		return setFilter(m, logging.LevelDebug)
	case key.Matches(keyMsg, m.Keys.FilterInfo):
		return setFilter(m, logging.LevelInfo)
	case key.Matches(keyMsg, m.Keys.FilterWarn):
		return setFilter(m, logging.LevelWarn)
	case key.Matches(keyMsg, m.Keys.FilterError):
		return setFilter(m, logging.LevelError)

	case key.Matches(keyMsg, m.Keys.Up, m.Keys.Down, m.Keys.PageUp, m.Keys.PageDown):
		var cmd tea.Cmd
		m.LogViewport, cmd = m.LogViewport.Update(keyMsg)
		return m, cmd
	}
	return m, nil
}

func setFilter(m *model.Model, level logging.LogLevel) (*model.Model, tea.Cmd) {
	m.LogFilter = level
	view.SyncLogViewport(m)
	return m, nil
}
