package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_InfoWritesKeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo, false)

	l.With("component", "runner").Info("status set", "identity", "alice", "count", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "status set", line["message"])
	assert.Equal(t, "runner", line["component"])
	assert.Equal(t, "alice", line["identity"])
	assert.EqualValues(t, 3, line["count"])
}

func TestLogger_ErrorIncludesErr(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo, false)

	l.Error("fetch failed", errors.New("boom"), "url", "https://example.com/...(redacted)")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "boom", line["error"])
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelError, false)

	l.Debug("hidden")
	l.Info("hidden too")
	assert.Empty(t, buf.String())

	l.Error("shown", nil)
	assert.True(t, strings.Contains(buf.String(), "shown"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelError, ParseLevel(" ERROR "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("x")
		l.With("a", 1).Debug("y")
	})
}
