// Package config loads application configuration from environment variables
// and an optional config file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App    AppConfig
	Log    LogConfig
	Gemini GeminiConfig
	Sync   SyncConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name string
	Env  string // development, production
	Port string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// GeminiConfig holds the language-model API settings.
type GeminiConfig struct {
	APIKey   string
	Model    string
	Endpoint string
}

// SyncConfig holds historical-sync settings.
type SyncConfig struct {
	DefaultWindowDays int
}

// Load reads configuration from the environment (ADPULSE_ prefix) and, when
// present, a config.yaml in the working directory or /etc/adpulse.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("app.name", "adpulse")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("gemini.model", "gemini-2.5-flash-lite")
	v.SetDefault("gemini.endpoint", "https://generativelanguage.googleapis.com/v1beta/models")
	v.SetDefault("sync.defaultwindowdays", 30)

	v.SetEnvPrefix("ADPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/adpulse")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Gemini: GeminiConfig{
			APIKey:   v.GetString("gemini.apikey"),
			Model:    v.GetString("gemini.model"),
			Endpoint: v.GetString("gemini.endpoint"),
		},
		Sync: SyncConfig{
			DefaultWindowDays: v.GetInt("sync.defaultwindowdays"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.App.Env {
	case "development", "production":
	default:
		return fmt.Errorf("invalid app env %q", c.App.Env)
	}
	if c.Sync.DefaultWindowDays <= 0 {
		return fmt.Errorf("sync window must be positive, got %d", c.Sync.DefaultWindowDays)
	}
	return nil
}
