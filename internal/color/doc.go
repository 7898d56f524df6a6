// Package color holds the terminal palette and the lipgloss styles shared by
// the TUI.
//
// Colors are adaptive: each one carries a light and a dark variant and
// lipgloss picks one based on the detected terminal background. Initialize
// overrides that detection.
//
// Styles are grouped by the part of the screen they belong to:
//   - Header and panels
//   - Engine state badges
//   - Log lines, one style per level
//   - The status bar and log filter tabs
package color
