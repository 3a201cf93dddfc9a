package centrifuge

import "testing"

type testLogHandler struct{ count int }

func (h *testLogHandler) Handle(_ LogEntry) { h.count++ }

func TestLogger(t *testing.T) {
	h := testLogHandler{}
	l := newLogger(LogLevelError, h.Handle)
	l.log(newLogEntry(LogLevelDebug, "test"))
	l.log(newLogEntry(LogLevelError, "test"))
	if h.count != 1 {
		t.Fatalf("expected 1 logged entry, got %d", h.count)
	}
	if l.enabled(LogLevelDebug) {
		t.Fatal("debug must not be enabled at error level")
	}
	if !l.enabled(LogLevelError) {
		t.Fatal("error must be enabled at error level")
	}
}

func TestNewLogEntry(t *testing.T) {
	entry := newLogEntry(LogLevelDebug, "test")
	if entry.Level != LogLevelDebug || entry.Message != "test" || entry.Fields != nil {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	entry = newLogEntry(LogLevelError, "test", map[string]any{"one": true})
	v, ok := entry.Fields["one"].(bool)
	if !ok || !v {
		t.Fatalf("expected Fields[\"one\"] == true, got %+v", entry.Fields)
	}
}

func TestLogLevelToString(t *testing.T) {
	cases := map[LogLevel]string{
		LogLevelNone:  "",
		LogLevelDebug: "debug",
		LogLevelInfo:  "info",
		LogLevelWarn:  "warn",
		LogLevelError: "error",
	}
	for level, want := range cases {
		if got := LogLevelToString(level); got != want {
			t.Fatalf("LogLevelToString(%d) = %q, want %q", level, got, want)
		}
	}
}
