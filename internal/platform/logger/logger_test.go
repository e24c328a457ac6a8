package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Format: "json", Level: "debug", Output: &buf})
	log.Debug("hello", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "boxoffice", rec["service"])
	assert.Equal(t, "v", rec["k"])
}

func TestNewTextInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Development: true, Output: &buf})
	log.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Output: &buf})
	log.Info("dropped")
	assert.Empty(t, buf.String())
}
