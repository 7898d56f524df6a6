package color

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	Primary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	Success = lipgloss.AdaptiveColor{Light: "#05A167", Dark: "#05D176"}
	Error   = lipgloss.AdaptiveColor{Light: "#E06A56", Dark: "#F97171"}
	Warning = lipgloss.AdaptiveColor{Light: "#E0A956", Dark: "#F9C171"}
	Info    = lipgloss.AdaptiveColor{Light: "#5A9FE0", Dark: "#71B7F9"}
	Subtle  = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	Border  = lipgloss.AdaptiveColor{Light: "#D1D1D1", Dark: "#3C3C3C"}
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#FFFFFF"}).
			Background(Primary).
			Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Border).
			Padding(0, 1)

	PanelTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary)
	LabelStyle      = lipgloss.NewStyle().Foreground(Subtle)

	StateRunningStyle    = lipgloss.NewStyle().Bold(true).Foreground(Success)
	StateTransitionStyle = lipgloss.NewStyle().Bold(true).Foreground(Warning)
	StateStoppedStyle    = lipgloss.NewStyle().Bold(true).Foreground(Error)

	LogDebugStyle = lipgloss.NewStyle().Foreground(Subtle)
	LogInfoStyle  = lipgloss.NewStyle()
	LogWarnStyle  = lipgloss.NewStyle().Foreground(Warning)
	LogErrorStyle = lipgloss.NewStyle().Foreground(Error)

	StatusBarStyle        = lipgloss.NewStyle().Foreground(Subtle)
	StatusBarInfoStyle    = lipgloss.NewStyle().Foreground(Info)
	StatusBarSuccessStyle = lipgloss.NewStyle().Foreground(Success)
	StatusBarErrorStyle   = lipgloss.NewStyle().Foreground(Error)

	FilterActiveStyle   = lipgloss.NewStyle().Bold(true).Foreground(Primary).Underline(true)
	FilterInactiveStyle = lipgloss.NewStyle().Foreground(Subtle)
)

// Initialize sets the background assumption used by the adaptive colors.
func Initialize(isDarkMode bool) {
	lipgloss.SetHasDarkBackground(isDarkMode)
}
