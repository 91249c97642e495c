package logger

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn")

	log.Info("dropped")
	log.Warn("kept", "session_id", "s1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "s1", entry["session_id"])
}

func TestUnknownLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "chatty").Info("hello")
	assert.Contains(t, buf.String(), `"hello"`)
}
