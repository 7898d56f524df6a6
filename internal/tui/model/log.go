package model

import (
	"intifacectl/pkg/logging"
)

// Refresh re-reads the engine snapshot from the controller.
func (m *Model) Refresh() {
	if m.Controller == nil {
		return
	}
	m.EngineState = m.Controller.State()
	m.ClientName, _ = m.Controller.CurrentClientName()
	m.Devices = m.Controller.ConnectedDevices()
}

// VisibleLogEntries returns buffered entries at or above the filter level.
func (m *Model) VisibleLogEntries() []logging.LogEntry {
	all := m.Logs.Entries()
	out := all[:0:0]
	for _, e := range all {
		if e.Level >= m.LogFilter {
			out = append(out, e)
		}
	}
	return out
}

// LogsDirty reports whether the log panel needs re-rendering.
func (m *Model) LogsDirty() bool {
	return m.Logs.Seq() != m.LastLogSeq ||
		m.LogFilter != m.LastLogFilter ||
		m.LogViewport.Width != m.LastLogWidth
}

// MarkLogsRendered records the state the log panel was rendered for.
func (m *Model) MarkLogsRendered() {
	m.LastLogSeq = m.Logs.Seq()
	m.LastLogFilter = m.LogFilter
	m.LastLogWidth = m.LogViewport.Width
}
