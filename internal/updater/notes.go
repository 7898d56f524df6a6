package updater

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// RenderNotes formats markdown release notes for the terminal. The raw
// text is returned if rendering fails.
func RenderNotes(markdown string, width int) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(out, "\n")
}
