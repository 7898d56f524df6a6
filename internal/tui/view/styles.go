package view

// Layout constants
const (
	headerHeight    = 1
	statusBarHeight = 1
	// infoPanelHeight covers the engine and device panels including borders.
	infoPanelHeight = 8
	minLogHeight    = 3
)

// Icons
const (
	IconPlay      = "▶"
	IconStop      = "■"
	IconHourglass = "⏳"
	IconPlug      = "⚡"
	IconScroll    = "≡"
)
