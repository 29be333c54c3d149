package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T, cfg LogConfig) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := SetOutput(buf)
	color.NoColor = true
	Configure(cfg)
	t.Cleanup(func() {
		SetOutput(prev)
		Configure(LogConfig{Level: INFO, Format: Text})
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLogs(t, LogConfig{Level: WARN, Format: Text})

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message", assert.AnError)
	Progress("progress message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "WARN : warn message")
	assert.Contains(t, out, "error message: "+assert.AnError.Error())
	assert.Contains(t, out, "progress message")
}

func TestJSONFormat(t *testing.T) {
	buf := captureLogs(t, LogConfig{Level: DEBUG, Format: JSON})

	DiskSkipped("/subscriptions/s/disks/d", "unsupported SKU")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "Skipping disk", entry["message"])

	data, ok := entry["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "/subscriptions/s/disks/d", data["disk_id"])
}

func TestParseLevelAndFormat(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))

	assert.Equal(t, JSON, ParseFormat("JSON"))
	assert.Equal(t, Text, ParseFormat("text"))
	assert.Equal(t, Text, ParseFormat(""))
}

func TestEnabled(t *testing.T) {
	captureLogs(t, LogConfig{Level: ERROR, Format: Text})
	assert.False(t, Enabled(INFO))
	assert.True(t, Enabled(ERROR))
	assert.True(t, Enabled(PROGRESS))
}

func TestStageHelpers(t *testing.T) {
	buf := captureLogs(t, LogConfig{Level: INFO, Format: Text})

	StageStart("metrics", 3)
	StageComplete("metrics", 3, 0)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Starting stage")
	assert.Contains(t, lines[1], "Stage completed")
}
