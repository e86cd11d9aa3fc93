package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDefaultLogger(LevelInfo, &buf)

	logger.Debug("debug message")
	assert.Empty(t, buf.String(), "debug should be filtered at info level")

	logger.Info("info %s", "message")
	assert.Contains(t, buf.String(), "[INFO]")
	assert.Contains(t, buf.String(), "info message")

	buf.Reset()
	logger.Error("boom")
	assert.Contains(t, buf.String(), "[ERROR]")
}

func TestDefaultLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDefaultLogger(LevelInfo, &buf)

	child := logger.WithField("class", "java/lang/String")
	child.Info("validated")

	assert.Contains(t, buf.String(), "class=java/lang/String")

	// Parent is unaffected.
	buf.Reset()
	logger.Info("plain")
	assert.NotContains(t, buf.String(), "class=")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"ERROR", LevelError},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogLevel(tt.input))
		})
	}
}

func TestMockClock(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := NewMockClock(start)

	assert.Equal(t, start, clock.Now())
	clock.Advance(2 * time.Second)
	assert.Equal(t, 2*time.Second, clock.Since(start))
}
