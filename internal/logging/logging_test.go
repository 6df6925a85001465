package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Level
	}{
		{"trace", LevelTrace},
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"err", LevelErr},
		{"critical", LevelCritical},
		{"off", LevelOff},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	t.Parallel()

	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewRespectsLevelFiltering(t *testing.T) {
	t.Parallel()

	lvl, err := ParseLevel("warn")
	if err != nil {
		t.Fatalf("ParseLevel() error = %v", err)
	}

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(lvl.zerologLevel())

	logger.Debug().Msg("should be filtered")
	if buf.Len() != 0 {
		t.Errorf("expected debug message to be filtered, got %q", buf.String())
	}

	logger.Warn().Msg("should appear")
	if buf.Len() == 0 {
		t.Error("expected warn message to be logged")
	}
}

func TestCriticalTagsEvent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	Critical(&logger).Msg("bind failed")

	if !bytes.Contains(buf.Bytes(), []byte(`"critical":true`)) {
		t.Errorf("expected critical field in output, got %q", buf.String())
	}
}

func TestOffDisablesLogging(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New("off")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger = logger.Output(&buf)

	Critical(&logger).Msg("should still be suppressed by disabled level")
	logger.Error().Msg("suppressed")

	if buf.Len() != 0 {
		t.Errorf("expected no output at off level, got %q", buf.String())
	}
}
