// Package config loads tableclock settings from a YAML file, .env and the
// environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Clock struct {
		TickMs     int  `yaml:"tick_ms"`
		MaxPlayers int  `yaml:"max_players"`
		KeepAwake  bool `yaml:"keep_awake"`
	} `yaml:"clock"`

	NATS struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
		Stream  string `yaml:"stream"`
	} `yaml:"nats"`

	History struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"history"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{LogLevel: "info"}
	cfg.Server.Port = "8080"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Clock.TickMs = 10
	cfg.Clock.MaxPlayers = DefaultMaxPlayers
	cfg.Clock.KeepAwake = true
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.NATS.Stream = "TABLECLOCK_EVENTS"
	return cfg
}

// DefaultPath is the config file location under the user's config home.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "tableclock", "config.yaml")
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Server.Port = getEnv("TABLECLOCK_PORT", getEnv("PORT", c.Server.Port))
	c.Clock.TickMs = getEnvAsInt("TABLECLOCK_TICK_MS", c.Clock.TickMs)
	c.Clock.MaxPlayers = getEnvAsInt("TABLECLOCK_MAX_PLAYERS", c.Clock.MaxPlayers)
	c.Clock.KeepAwake = getEnvAsBool("TABLECLOCK_KEEP_AWAKE", c.Clock.KeepAwake)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.Enabled = getEnvAsBool("NATS_ENABLED", c.NATS.Enabled)
	c.History.Enabled = getEnvAsBool("HISTORY_ENABLED", c.History.Enabled)
}

// TickQuantum returns the scheduler period.
func (c *Config) TickQuantum() time.Duration {
	return time.Duration(c.Clock.TickMs) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
