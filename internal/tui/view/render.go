package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"intifacectl/internal/color"
	"intifacectl/internal/supervisor"
	"intifacectl/internal/tui/model"
)

// Render draws the whole screen.
func Render(m *model.Model) string {
	if m.CurrentAppMode == model.ModeQuitting {
		return "Shutting down...\n"
	}
	if m.Width == 0 || m.Height == 0 {
		return "Initializing..."
	}

	header := renderHeader(m)
	statusBar := renderStatusBar(m)

	if m.CurrentAppMode == model.ModeHelpOverlay {
		help := m.Help
		help.ShowAll = true
		body := color.PanelStyle.
			Width(m.Width - color.PanelStyle.GetHorizontalBorderSize()).
			Render(lipgloss.JoinVertical(lipgloss.Left,
				color.PanelTitleStyle.Render("Keys"),
				help.View(m.Keys),
			))
		return lipgloss.JoinVertical(lipgloss.Left, header, body, statusBar)
	}

	half := m.Width / 2
	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		renderEnginePanel(m, half),
		renderDevicesPanel(m, m.Width-half),
	)
	return lipgloss.JoinVertical(lipgloss.Left, header, panels, renderLogPanel(m, m.Width), statusBar)
}

// LogViewportSize returns the log viewport size for a terminal of w by h.
func LogViewportSize(w, h int) (int, int) {
	width := w - color.PanelStyle.GetHorizontalFrameSize()
	// One line of the panel is its title.
	height := h - headerHeight - statusBarHeight - infoPanelHeight - color.PanelStyle.GetVerticalFrameSize() - 1
	if width < 0 {
		width = 0
	}
	if height < minLogHeight {
		height = minLogHeight
	}
	return width, height
}

func renderHeader(m *model.Model) string {
	title := "Intiface Engine Control"
	if m.ServerName != "" {
		title += " · " + m.ServerName
	}
	if m.Version != "" {
		title += "  " + m.Version
	}
	return color.HeaderStyle.Width(m.Width).Render(title)
}

func renderEnginePanel(m *model.Model, width int) string {
	client := color.LabelStyle.Render("none")
	if m.ClientName != "" {
		client = m.ClientName
	}
	lines := []string{
		color.PanelTitleStyle.Render("Engine"),
		color.LabelStyle.Render("State:  ") + renderState(m.EngineState, m.ActionPending),
		color.LabelStyle.Render("Client: ") + client,
	}
	return panel(lines, width)
}

func renderDevicesPanel(m *model.Model, width int) string {
	lines := []string{color.PanelTitleStyle.Render(fmt.Sprintf("Devices (%d)", len(m.Devices)))}
	if len(m.Devices) == 0 {
		lines = append(lines, color.LabelStyle.Render("No devices connected"))
	}
	max := infoPanelHeight - color.PanelStyle.GetVerticalFrameSize() - 1
	for i, d := range m.Devices {
		if i == max-1 && len(m.Devices) > max {
			lines = append(lines, color.LabelStyle.Render(fmt.Sprintf("… %d more", len(m.Devices)-i)))
			break
		}
		line := fmt.Sprintf("%s %d %s", IconPlug, d.Index, d.Label())
		if d.Address != "" {
			line += color.LabelStyle.Render(" " + d.Address)
		}
		lines = append(lines, line)
	}
	return panel(lines, width)
}

func panel(lines []string, width int) string {
	inner := infoPanelHeight - color.PanelStyle.GetVerticalBorderSize()
	return color.PanelStyle.
		Width(width - color.PanelStyle.GetHorizontalBorderSize()).
		Height(inner).
		MaxHeight(infoPanelHeight).
		Render(strings.Join(lines, "\n"))
}

func renderState(s supervisor.State, pending bool) string {
	label := s.String()
	if pending {
		label += " " + IconHourglass
	}
	switch s {
	case supervisor.StateRunning:
		return color.StateRunningStyle.Render(IconPlay + " " + label)
	case supervisor.StateStarting, supervisor.StateStopping:
		return color.StateTransitionStyle.Render(IconHourglass + " " + label)
	default:
		return color.StateStoppedStyle.Render(IconStop + " " + label)
	}
}

func renderStatusBar(m *model.Model) string {
	if m.StatusMessage != "" {
		style := color.StatusBarInfoStyle
		switch m.StatusMessageType {
		case model.StatusBarSuccess:
			style = color.StatusBarSuccessStyle
		case model.StatusBarError:
			style = color.StatusBarErrorStyle
		}
		return style.Width(m.Width).Render(m.StatusMessage)
	}
	return color.StatusBarStyle.Width(m.Width).Render(m.Help.ShortHelpView(m.Keys.ShortHelp()))
}
