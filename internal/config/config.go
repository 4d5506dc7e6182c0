// Package config provides configuration management for the companion client
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Backend   BackendConfig   `mapstructure:"backend"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Voice     VoiceConfig     `mapstructure:"voice"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// BackendConfig configures the backend API client
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ChatConfig configures text chat defaults
type ChatConfig struct {
	Provider    string `mapstructure:"provider"`     // openai, anthropic, emergent_llm, ...
	UseFallback bool   `mapstructure:"use_fallback"` // willing to accept a non-preferred provider
}

// VoiceConfig configures the voice pipeline
type VoiceConfig struct {
	Voice string `mapstructure:"voice"` // TTS voice tag (alloy, echo, fable, onyx, nova, shimmer)
}

// AudioConfig configures audio capture/playback coordination
type AudioConfig struct {
	SampleRate      int `mapstructure:"sample_rate"`       // Default: 16000 Hz
	Channels        int `mapstructure:"channels"`          // Default: 1 (mono)
	BitDepth        int `mapstructure:"bit_depth"`         // Default: 16
	ChunkDurationMs int `mapstructure:"chunk_duration_ms"` // Default: 100ms
}

// DiscoveryConfig configures backend endpoint discovery
type DiscoveryConfig struct {
	Ports           []int         `mapstructure:"ports"`
	CustomURLs      []string      `mapstructure:"custom_urls"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// FeedConfig configures the websocket event feed for the UI
type FeedConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig configures logging output
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8001",
			Timeout: 120 * time.Second,
		},
		Chat: ChatConfig{
			Provider:    "openai",
			UseFallback: false,
		},
		Voice: VoiceConfig{
			Voice: "nova",
		},
		Audio: AudioConfig{
			SampleRate:      16000,
			Channels:        1,
			BitDepth:        16,
			ChunkDurationMs: 100,
		},
		Discovery: DiscoveryConfig{
			Ports:           []int{8001, 8080},
			CustomURLs:      []string{},
			Timeout:         2 * time.Second,
			RefreshInterval: 30 * time.Second,
		},
		Feed: FeedConfig{
			Enabled: true,
			Addr:    "127.0.0.1:7455",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configDir, err := GetConfigDir()
	if err != nil {
		return cfg, err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("COMPANION")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		// Config file not found, use defaults and create one
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Watch reloads the configuration when the config file changes.
// The callback receives the freshly unmarshaled configuration.
func Watch(onChange func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg := DefaultConfig()
		if err := viper.Unmarshal(cfg); err != nil {
			return
		}
		onChange(cfg)
	})
	viper.WatchConfig()
}

// Save writes the configuration to file
func Save(cfg *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	viper.Set("backend", cfg.Backend)
	viper.Set("chat", cfg.Chat)
	viper.Set("voice", cfg.Voice)
	viper.Set("audio", cfg.Audio)
	viper.Set("discovery", cfg.Discovery)
	viper.Set("feed", cfg.Feed)
	viper.Set("logging", cfg.Logging)

	configPath := filepath.Join(configDir, "config.yaml")
	return viper.WriteConfigAs(configPath)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".companion"), nil
}
