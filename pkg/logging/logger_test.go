package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogLevelWarn, &buf, "test")

	l.Debug("hidden %d", 1)
	l.Info("hidden %d", 2)
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn level, got %q", buf.String())
	}

	l.Warn("shown %d", 3)
	if !strings.Contains(buf.String(), "shown 3") {
		t.Errorf("warn message missing from output: %q", buf.String())
	}
}

func TestLoggerDisabled(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogLevelDebug, &buf, "test")
	l.SetEnabled(false)
	l.Error("nothing")
	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote %q", buf.String())
	}

	l.SetEnabled(true)
	l.SetLevel(LogLevelNone)
	l.Error("still nothing")
	if buf.Len() != 0 {
		t.Errorf("LogLevelNone logger wrote %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LogLevelDebug},
		{"info", LogLevelInfo},
		{"warn", LogLevelWarn},
		{"error", LogLevelError},
		{"off", LogLevelNone},
		{"bogus", LogLevelWarn},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
