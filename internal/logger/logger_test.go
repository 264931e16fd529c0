package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetLevel("INFO")
		SetFormat(FormatText)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel("warn")

	Info("hidden %d", 1)
	Warn("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 2")
	assert.False(t, Enabled(LevelDebug))
	assert.True(t, Enabled(LevelError))
}

func TestUnknownLevelIgnored(t *testing.T) {
	capture(t)
	SetLevel("DEBUG")
	SetLevel("verbose")
	assert.True(t, Enabled(LevelDebug))
}

func TestJSONFormat(t *testing.T) {
	buf := capture(t)
	SetFormat("JSON")

	Error("boom: %s", "disk")

	line := strings.TrimSpace(buf.String())
	var entry map[string]string
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "boom: disk", entry["msg"])
	assert.NotEmpty(t, entry["time"])
}
