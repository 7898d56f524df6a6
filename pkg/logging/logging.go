package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel defines the severity of the log entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes LogLevel satisfy the fmt.Stringer interface.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo // Default to INFO for unknown
	}
}

// ParseLevel converts a textual level into a LogLevel. Trace is folded into
// debug. Unknown input yields LevelInfo together with an error.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace", "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// LogEntry is the structured log entry kept in the ring buffer.
type LogEntry struct {
	Timestamp  time.Time
	Level      LogLevel
	Subsystem  string
	Message    string
	Err        error
	Attributes []slog.Attr
}

// String renders the entry as a single display line.
func (e LogEntry) String() string {
	var b strings.Builder
	b.WriteString(e.Timestamp.Format("15:04:05.000"))
	b.WriteByte(' ')
	fmt.Fprintf(&b, "%-5s", e.Level)
	b.WriteString(" [")
	b.WriteString(e.Subsystem)
	b.WriteString("] ")
	b.WriteString(e.Message)
	for _, a := range e.Attributes {
		b.WriteByte(' ')
		b.WriteString(a.String())
	}
	if e.Err != nil {
		b.WriteString(" error=")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// FileOptions configures the rotating log file sink.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Options selects the sinks a log entry is delivered to. A nil field
// disables that sink.
type Options struct {
	Level  LogLevel
	Output io.Writer
	File   *FileOptions
	Buffer *Buffer
}

type sinks struct {
	level  LogLevel
	logger *slog.Logger
	buffer *Buffer
	file   io.Closer
}

var (
	mu      sync.RWMutex
	current = &sinks{level: LevelInfo}
)

// Init replaces the active sinks. Any previously opened log file is closed.
func Init(opts Options) {
	var writers []io.Writer
	if opts.Output != nil {
		writers = append(writers, opts.Output)
	}

	var file io.Closer
	if opts.File != nil && opts.File.Path != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File.Path,
			MaxSize:    opts.File.MaxSizeMB,
			MaxBackups: opts.File.MaxBackups,
			MaxAge:     opts.File.MaxAgeDays,
			Compress:   opts.File.Compress,
		}
		writers = append(writers, lj)
		file = lj
	}

	next := &sinks{level: opts.Level, buffer: opts.Buffer, file: file}
	if len(writers) > 0 {
		handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
			Level: slog.LevelDebug, // filtering happens before the handler
		})
		next.logger = slog.New(handler)
		slog.SetDefault(next.logger)
	}

	mu.Lock()
	prev := current
	current = next
	mu.Unlock()

	if prev.file != nil {
		_ = prev.file.Close()
	}
}

// InitForCLI initializes the logging system for CLI mode.
// Logs are written to the provided output.
func InitForCLI(filterLevel LogLevel, output io.Writer) {
	Init(Options{Level: filterLevel, Output: output})
}

// InitForTUI initializes the logging system for TUI mode. Entries go to the
// buffer the log panel reads and, when configured, to the rotating file;
// nothing is written to the terminal the TUI owns.
func InitForTUI(filterLevel LogLevel, buffer *Buffer, file *FileOptions) {
	Init(Options{Level: filterLevel, Buffer: buffer, File: file})
}

// Close releases the file sink, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if current.file == nil {
		return nil
	}
	err := current.file.Close()
	current.file = nil
	return err
}

// Enabled reports whether entries at level would be delivered.
func Enabled(level LogLevel) bool {
	mu.RLock()
	defer mu.RUnlock()
	return level >= current.level
}

func logInternal(level LogLevel, subsystem string, err error, msg string, attrs []slog.Attr) {
	mu.RLock()
	s := current
	mu.RUnlock()

	if level < s.level {
		return
	}

	now := time.Now()

	if s.buffer != nil {
		s.buffer.Append(LogEntry{
			Timestamp:  now,
			Level:      level,
			Subsystem:  subsystem,
			Message:    msg,
			Err:        err,
			Attributes: attrs,
		})
	}

	if s.logger == nil {
		if s.buffer == nil {
			fmt.Fprintf(os.Stderr, "[LOGGING_ERROR] Logger not initialized. Log: %s [%s] %s\n", now.Format(time.RFC3339), level, msg)
		}
		return
	}

	slogAttrs := make([]slog.Attr, 0, len(attrs)+2)
	slogAttrs = append(slogAttrs, slog.String("subsystem", subsystem))
	slogAttrs = append(slogAttrs, attrs...)
	if err != nil {
		slogAttrs = append(slogAttrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(context.Background(), level.SlogLevel(), msg, slogAttrs...)
}

func format(messageFmt string, args []interface{}) string {
	if len(args) == 0 {
		return messageFmt
	}
	return fmt.Sprintf(messageFmt, args...)
}

// Log emits a pre-formatted message with structured attributes.
func Log(level LogLevel, subsystem string, message string, attrs ...slog.Attr) {
	logInternal(level, subsystem, nil, message, attrs)
}

// Debug logs a debug message.
func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, subsystem, nil, format(messageFmt, args), nil)
}

// Info logs an informational message.
func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, subsystem, nil, format(messageFmt, args), nil)
}

// Warn logs a warning message.
func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, subsystem, nil, format(messageFmt, args), nil)
}

// Error logs an error message.
func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, subsystem, err, format(messageFmt, args), nil)
}
