package view

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"intifacectl/internal/color"
	"intifacectl/internal/tui/model"
	"intifacectl/pkg/logging"
)

// PrepareLogContent renders entries as styled lines no wider than maxWidth.
func PrepareLogContent(entries []logging.LogEntry, maxWidth int) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		line := strings.ReplaceAll(e.String(), "\n", " ")
		if maxWidth > 0 {
			line = runewidth.Truncate(line, maxWidth, "…")
		}
		lines[i] = styleLogLine(e.Level, line)
	}
	return strings.Join(lines, "\n")
}

// PlainLogContent is the unstyled text of entries, for the clipboard.
func PlainLogContent(entries []logging.LogEntry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}

func styleLogLine(level logging.LogLevel, line string) string {
	switch level {
	case logging.LevelError:
		return color.LogErrorStyle.Render(line)
	case logging.LevelWarn:
		return color.LogWarnStyle.Render(line)
	case logging.LevelDebug:
		return color.LogDebugStyle.Render(line)
	default:
		return color.LogInfoStyle.Render(line)
	}
}

// SyncLogViewport refreshes the viewport content if the log changed,
// keeping the view pinned to the bottom when it already was.
func SyncLogViewport(m *model.Model) {
	if !m.LogsDirty() {
		return
	}
	atBottom := m.LogViewport.AtBottom() || m.LastLogSeq == 0
	m.LogViewport.SetContent(PrepareLogContent(m.VisibleLogEntries(), m.LogViewport.Width))
	if atBottom {
		m.LogViewport.GotoBottom()
	}
	m.MarkLogsRendered()
}

func renderLogPanel(m *model.Model, width int) string {
	title := color.PanelTitleStyle.Render(IconScroll+" Log") + "  " + renderFilterTabs(m.LogFilter)
	content := lipgloss.JoinVertical(lipgloss.Left, title, m.LogViewport.View())
	return color.PanelStyle.Width(width - color.PanelStyle.GetHorizontalBorderSize()).Render(content)
}

func renderFilterTabs(active logging.LogLevel) string {
	levels := []logging.LogLevel{logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError}
	tabs := make([]string, len(levels))
	for i, l := range levels {
		label := string(rune('1'+i)) + " " + strings.ToLower(l.String())
		if l == active {
			tabs[i] = color.FilterActiveStyle.Render(label)
		} else {
			tabs[i] = color.FilterInactiveStyle.Render(label)
		}
	}
	return strings.Join(tabs, "  ")
}
