package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	envConfigPath      = "DXMSG_CONFIG"
	envDiagnostics     = "DXMSG_DIAGNOSTICS"
	envHistoryCapacity = "DXMSG_HISTORY_CAPACITY"
)

// ErrConfigNotFound is returned by LoadConfig when no config file exists in
// any of the searched locations and DXMSG_CONFIG is unset.
var ErrConfigNotFound = errors.New("config.json not found")

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Bus     BusConfig     `json:"bus"`
	Sim     SimConfig     `json:"sim"`
	Server  ServerConfig  `json:"server"`
	Logging LoggingConfig `json:"logging,omitempty"`
}

// BusConfig controls diagnostics and metrics of the message bus.
type BusConfig struct {
	Diagnostics     bool `json:"diagnostics"`
	HistoryCapacity int  `json:"history_capacity"`
	Metrics         bool `json:"metrics"`
}

// SimConfig sizes the demo world.
type SimConfig struct {
	Actors     int   `json:"actors"`
	Ticks      int   `json:"ticks"`
	TickMillis int   `json:"tick_millis"`
	Seed       int64 `json:"seed"`
}

// ServerConfig configures the HTTP status server bind settings.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Bus: BusConfig{
			HistoryCapacity: 256,
		},
		Sim: SimConfig{
			Actors:     4,
			Ticks:      20,
			TickMillis: 50,
			Seed:       1,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 18790,
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// LoadConfig resolves config.json, unmarshals it over Default, and applies
// environment overrides.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	return LoadFile(configPath)
}

// LoadFile reads the config at path.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault behaves like LoadConfig but falls back to Default, with
// environment overrides applied, when no config file is found.
func LoadOrDefault() (*Config, error) {
	cfg, err := LoadConfig()
	if errors.Is(err, ErrConfigNotFound) {
		cfg = Default()
		if err := applyEnvOverrides(cfg); err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}

	return cfg, err
}

// Validate rejects values the bus and the demo world cannot run with.
func (c *Config) Validate() error {
	if c.Bus.HistoryCapacity < 0 {
		return fmt.Errorf("bus.history_capacity must not be negative, got %d", c.Bus.HistoryCapacity)
	}
	if c.Sim.Actors < 0 {
		return fmt.Errorf("sim.actors must not be negative, got %d", c.Sim.Actors)
	}
	if c.Sim.Ticks < 0 {
		return fmt.Errorf("sim.ticks must not be negative, got %d", c.Sim.Ticks)
	}
	if c.Sim.TickMillis < 0 {
		return fmt.Errorf("sim.tick_millis must not be negative, got %d", c.Sim.TickMillis)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be within 0..65535, got %d", c.Server.Port)
	}

	return nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	if value := strings.TrimSpace(os.Getenv(envDiagnostics)); value != "" {
		cfg.Bus.Diagnostics = parseBool(value)
	}

	if value := strings.TrimSpace(os.Getenv(envHistoryCapacity)); value != "" {
		capacity, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", envHistoryCapacity, err)
		}
		cfg.Bus.HistoryCapacity = capacity
	}

	return nil
}

func parseBool(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// findConfigPath resolves the active config file location.
//
// Precedence is DXMSG_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w (checked %s and %s)", ErrConfigNotFound, candidates[0], candidates[1])
}
