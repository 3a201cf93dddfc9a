package centrifuge

// LogLevel describes the severity of a LogEntry.
type LogLevel int

const (
	// LogLevelNone turns logging off completely.
	LogLevelNone LogLevel = 0
	// LogLevelDebug is for verbose internal state transitions.
	LogLevelDebug LogLevel = 1
	// LogLevelInfo is for connection lifecycle events.
	LogLevelInfo LogLevel = 2
	// LogLevelWarn is for recoverable protocol/transport failures.
	LogLevelWarn LogLevel = 3
	// LogLevelError is for failures that reach a user callback.
	LogLevelError LogLevel = 4
)

// LogLevelToString returns a human-readable name for level.
func LogLevelToString(level LogLevel) string {
	switch level {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	default:
		return ""
	}
}

// LogEntry is a single structured log event.
type LogEntry struct {
	Level   LogLevel
	Message string
	Fields  map[string]any
}

// newLogEntry builds a LogEntry, taking the first fields map if any were given.
func newLogEntry(level LogLevel, message string, fields ...map[string]any) LogEntry {
	var f map[string]any
	if len(fields) > 0 {
		f = fields[0]
	}
	return LogEntry{
		Level:   level,
		Message: message,
		Fields:  f,
	}
}

// LogHandler is called for every LogEntry whose level is enabled.
type LogHandler func(LogEntry)

// logger gates LogEntry delivery by level.
type logger struct {
	level   LogLevel
	handler LogHandler
}

// newLogger constructs a logger; a nil handler makes it a no-op logger.
func newLogger(level LogLevel, handler LogHandler) *logger {
	return &logger{level: level, handler: handler}
}

func (l *logger) enabled(level LogLevel) bool {
	if l == nil || l.handler == nil {
		return false
	}
	return level >= l.level && l.level != LogLevelNone
}

func (l *logger) log(entry LogEntry) {
	if !l.enabled(entry.Level) {
		return
	}
	l.handler(entry)
}
