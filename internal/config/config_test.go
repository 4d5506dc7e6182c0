package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://localhost:8001", cfg.Backend.BaseURL)
	assert.Equal(t, 120*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "openai", cfg.Chat.Provider)
	assert.False(t, cfg.Chat.UseFallback)
	assert.Equal(t, "nova", cfg.Voice.Voice)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, 1, cfg.Audio.Channels)
	assert.NotEmpty(t, cfg.Discovery.Ports)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	viper.Reset()
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Backend.BaseURL, cfg.Backend.BaseURL)

	configDir, err := GetConfigDir()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(configDir, "config.yaml"))
	assert.NoError(t, err, "first load writes a default config file")
}

func TestSaveAndReload(t *testing.T) {
	viper.Reset()
	t.Setenv("HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.Backend.BaseURL = "http://example.com:9000"
	cfg.Chat.Provider = "groq"
	cfg.Voice.Voice = "onyx"
	require.NoError(t, Save(cfg))

	viper.Reset()
	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://example.com:9000", loaded.Backend.BaseURL)
	assert.Equal(t, "groq", loaded.Chat.Provider)
	assert.Equal(t, "onyx", loaded.Voice.Voice)
}

func TestGetConfigDir(t *testing.T) {
	t.Setenv("HOME", "/tmp/test-home")

	dir, err := GetConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test-home/.companion", dir)
}
