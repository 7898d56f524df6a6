package supervisor

import (
	"bytes"
	"log/slog"
	"sync"

	"intifacectl/pkg/logging"
)

const outputSubsystem = "Engine-Output"

// maxOutputLine caps a buffered line that never sees a newline.
const maxOutputLine = 64 * 1024

// lineLogger forwards each line written to it as a log entry.
type lineLogger struct {
	mu     sync.Mutex
	level  logging.LogLevel
	stream string
	buf    []byte
}

func newLineLogger(level logging.LogLevel, stream string) *lineLogger {
	return &lineLogger{level: level, stream: stream}
}

func (w *lineLogger) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) > maxOutputLine {
		w.emit(w.buf)
		w.buf = nil
	}
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *lineLogger) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *lineLogger) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	logging.Log(w.level, outputSubsystem, string(line), slog.String("stream", w.stream))
}
