package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "adpulse", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "gemini-2.5-flash-lite", cfg.Gemini.Model)
	assert.Equal(t, 30, cfg.Sync.DefaultWindowDays)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ADPULSE_APP_PORT", "9090")
	t.Setenv("ADPULSE_LOG_FORMAT", "json")
	t.Setenv("ADPULSE_GEMINI_APIKEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "test-key", cfg.Gemini.APIKey)
}

func TestLoadRejectsUnknownEnv(t *testing.T) {
	t.Setenv("ADPULSE_APP_ENV", "staging")
	_, err := Load()
	assert.Error(t, err)
}
