package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, int64(4096), cfg.WebSocket.ReadLimit)
	assert.Equal(t, 256, cfg.WebSocket.SendBuffer)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CREATIX_SERVER_PORT", "9090")
	t.Setenv("CREATIX_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}
