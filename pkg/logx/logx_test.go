package logx

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	return &buf
}

func TestLogFormat(t *testing.T) {
	buf := captureLogs(t)

	NewLogger("coder").Info("wrote %s", "index.html")

	line := buf.String()
	assert.Contains(t, line, "[coder]")
	assert.Contains(t, line, "INFO: wrote index.html")
	assert.True(t, strings.HasPrefix(line, "["))
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestLogLevels(t *testing.T) {
	buf := captureLogs(t)
	logger := NewLogger("pipeline")

	tests := []struct {
		logFunc  func(string, ...any)
		expected Level
	}{
		{logger.Info, LevelInfo},
		{logger.Warn, LevelWarn},
		{logger.Error, LevelError},
	}

	for _, tt := range tests {
		buf.Reset()
		tt.logFunc("message")
		assert.Contains(t, buf.String(), string(tt.expected)+": message")
	}
}

func TestDebugDomainFiltering(t *testing.T) {
	buf := captureLogs(t)
	SetDebug(true)
	SetDebugDomains([]string{"coder"})
	t.Cleanup(func() {
		SetDebug(false)
		SetDebugDomains(nil)
	})

	NewLogger("coder").Debug("visible")
	NewLogger("planner").Debug("hidden")
	Debug(context.Background(), "coder", "also visible")

	out := buf.String()
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "also visible")
	assert.NotContains(t, out, "hidden")
}

func TestDebugDisabled(t *testing.T) {
	buf := captureLogs(t)
	SetDebug(false)

	NewLogger("coder").Debug("nothing")
	assert.Empty(t, buf.String())
	assert.False(t, IsDebugEnabledForDomain("coder"))
}

func TestErrorfAndWrap(t *testing.T) {
	buf := captureLogs(t)
	base := errors.New("disk full")

	err := Errorf("write failed: %w", base)
	require.Error(t, err)
	assert.ErrorIs(t, err, base)

	wrapped := Wrap(base, "fallback write")
	assert.ErrorIs(t, wrapped, base)
	assert.Equal(t, "fallback write: disk full", wrapped.Error())

	assert.Contains(t, buf.String(), "ERROR: write failed: disk full")
	assert.EqualError(t, Wrap(nil, "no cause"), "no cause")
}
