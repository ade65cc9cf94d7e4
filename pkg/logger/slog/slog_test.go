package slog_test

import (
	"bytes"
	"encoding/json"
	stdslog "log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logslog "github.com/havenhome/haven.go/pkg/logger/slog"
)

func TestHandlerRoutesLevelsAndPairs(t *testing.T) {
	var buf bytes.Buffer
	log := logslog.New(stdslog.NewJSONHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelDebug}))

	log.Debug("dialing", "endpoint", "wss://gw.example.com")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "DEBUG", line["level"])
	assert.Equal(t, "dialing", line["msg"])
	assert.Equal(t, "wss://gw.example.com", line["endpoint"])
}

func TestFromSlogKeepsAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := stdslog.New(stdslog.NewJSONHandler(&buf, nil)).With("component", "connection")
	log := logslog.FromSlog(base)

	log.Info("connected")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "connected", line["msg"])
	assert.Equal(t, "connection", line["component"])
}
