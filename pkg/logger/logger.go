// Package logger provides leveled logging with structured key-value fields.
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel controls which messages a Logger emits.
type LogLevel int32

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the level name used in log output.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name to a LogLevel. Parsing is
// case-insensitive and accepts "WARNING" as an alias for WARN. An unknown
// name returns INFO along with an error so callers can fall back safely.
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level: %q", level)
	}
}

const (
	// FormatText renders "<timestamp> [LEVEL] message key=value".
	FormatText = "text"
	// FormatConsole renders a compact dialect for interactive runs: a
	// per-level prefix instead of timestamp and level tag.
	FormatConsole = "console"
)

// Config configures a Logger. A nil Output means stderr; an empty Format
// means FormatText.
type Config struct {
	Level  LogLevel
	Output io.Writer
	Format string
}

// Logger writes leveled, field-annotated log lines to a single output.
// A Logger is safe for concurrent use.
type Logger struct {
	mu     sync.Mutex
	level  LogLevel
	format string
	fields map[string]interface{}
	output io.Writer
}

// New returns a Logger at INFO level writing text format to stderr.
func New() *Logger {
	return &Logger{
		level:  INFO,
		format: FormatText,
		fields: make(map[string]interface{}),
		output: os.Stderr,
	}
}

// NewWithConfig returns a Logger configured by cfg.
func NewWithConfig(cfg Config) *Logger {
	l := New()
	l.level = cfg.Level
	if cfg.Output != nil {
		l.output = cfg.Output
	}
	if cfg.Format != "" {
		l.format = cfg.Format
	}
	return l
}

// WithField returns a new Logger that attaches key=value to every message.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(key, value)
}

// WithFields returns a new Logger with additional key-value pairs. Args are
// consumed pairwise; a trailing key without a value is dropped.
func (l *Logger) WithFields(args ...interface{}) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	child := &Logger{
		level:  l.level,
		format: l.format,
		fields: make(map[string]interface{}, len(l.fields)+len(args)/2),
		output: l.output,
	}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for i := 0; i+1 < len(args); i += 2 {
		child.fields[fmt.Sprintf("%v", args[i])] = args[i+1]
	}
	return child
}

// SetLevel changes the minimum level this Logger emits.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current minimum level.
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// IsDebugEnabled reports whether DEBUG messages are emitted.
func (l *Logger) IsDebugEnabled() bool { return l.GetLevel() <= DEBUG }

// IsInfoEnabled reports whether INFO messages are emitted.
func (l *Logger) IsInfoEnabled() bool { return l.GetLevel() <= INFO }

// Debug logs msg with optional key-value args at DEBUG level.
func (l *Logger) Debug(msg string, args ...interface{}) { l.log(DEBUG, msg, args) }

// Info logs msg with optional key-value args at INFO level.
func (l *Logger) Info(msg string, args ...interface{}) { l.log(INFO, msg, args) }

// Warn logs msg with optional key-value args at WARN level.
func (l *Logger) Warn(msg string, args ...interface{}) { l.log(WARN, msg, args) }

// Error logs msg with optional key-value args at ERROR level.
func (l *Logger) Error(msg string, args ...interface{}) { l.log(ERROR, msg, args) }

func (l *Logger) log(level LogLevel, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	fields := make(map[string]interface{}, len(l.fields)+len(args)/2)
	for k, v := range l.fields {
		fields[k] = v
	}
	for i := 0; i+1 < len(args); i += 2 {
		fields[fmt.Sprintf("%v", args[i])] = args[i+1]
	}

	var b strings.Builder
	switch l.format {
	case FormatConsole:
		b.WriteString(consolePrefix(level))
	default:
		b.WriteString(time.Now().UTC().Format(time.RFC3339))
		b.WriteString(" [")
		b.WriteString(level.String())
		b.WriteString("] ")
	}
	b.WriteString(msg)

	// Sorted keys keep the key=value stream deterministic.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatValue(fields[k]))
	}
	b.WriteByte('\n')

	_, _ = io.WriteString(l.output, b.String())
}

func consolePrefix(level LogLevel) string {
	switch level {
	case DEBUG:
		return "  * "
	case WARN:
		return "!!! "
	case ERROR:
		return "xxx "
	default:
		return "  - "
	}
}

// formatValue renders a field value, quoting strings that contain
// whitespace so the key=value stream stays splittable.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case string:
		if strings.ContainsAny(val, " \t") {
			return fmt.Sprintf("%q", val)
		}
		return val
	case error:
		return fmt.Sprintf("%q", val.Error())
	case time.Duration:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

var defaultLogger = New()

// SetLevel changes the level of the package default logger.
func SetLevel(level LogLevel) { defaultLogger.SetLevel(level) }

// Debug logs to the package default logger.
func Debug(msg string, args ...interface{}) { defaultLogger.Debug(msg, args...) }

// Info logs to the package default logger.
func Info(msg string, args ...interface{}) { defaultLogger.Info(msg, args...) }

// Warn logs to the package default logger.
func Warn(msg string, args ...interface{}) { defaultLogger.Warn(msg, args...) }

// Error logs to the package default logger.
func Error(msg string, args ...interface{}) { defaultLogger.Error(msg, args...) }

// WithField returns a child of the package default logger with one field.
func WithField(key string, value interface{}) *Logger {
	return defaultLogger.WithField(key, value)
}

// WithFields returns a child of the package default logger with fields.
func WithFields(args ...interface{}) *Logger {
	return defaultLogger.WithFields(args...)
}
