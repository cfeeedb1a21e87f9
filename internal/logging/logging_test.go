// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jeranaias/sermonchat/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_JSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "json", File: path})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("Stream failed", zap.Int64("conversation_id", 4))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Stream failed", entry["msg"])
	assert.Equal(t, float64(4), entry["conversation_id"])
}

func TestNew_Console(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := New(config.LoggingConfig{Level: "debug", Format: "console", File: path})
	require.NoError(t, err)

	logger.Debug("Turn finalized", zap.Int("chars", 12))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Turn finalized")
	assert.Contains(t, string(data), `"chars": 12`)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
	_, err = New(config.LoggingConfig{Level: "chatty"})
	assert.Error(t, err)
}
