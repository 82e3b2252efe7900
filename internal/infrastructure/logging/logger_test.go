package logging

import (
	"log/slog"
	"testing"

	"github.com/nerrad567/temper-core/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNew_ReturnsUsableLogger(t *testing.T) {
	logger := New(config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}, "test")
	if logger == nil || logger.Logger == nil {
		t.Fatal("New() returned nil logger")
	}

	// With must not mutate the original.
	child := logger.With("component", "test")
	if child == logger {
		t.Error("With() returned the same logger instance")
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	// Must not panic and must accept arbitrary attrs.
	logger.Info("dropped", "key", "value")
	logger.Error("dropped too")
}
