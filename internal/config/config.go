// Package config provides layered configuration loading and
// persistence for the terminal multiplexer daemon.
//
// Configuration is loaded from:
// 1. ~/.config/termcore/config.json (file)
// 2. Environment variables (override file values)
//
// Environment variables:
//   - TERMCORE_CONFIG_DIR: Override config directory (for testing)
//   - TERMCORE_LISTEN_ADDR: Listen address for the active transport
//   - TERMCORE_TRANSPORT: Transport to serve on (websocket, ssh, tsnet)
//   - TERMCORE_BUFFER_CAPACITY: ReplayBuffer capacity in bytes
//   - TERMCORE_GRACE_PERIOD_MS: Session destroy grace window, in ms
//   - TERMCORE_MAX_SESSIONS: Maximum concurrent sessions
//   - TERMCORE_IDLE_TIMEOUT_SECONDS: Seconds without PTY output or client
//     input before a session is killed (0 disables the idle reaper)
//   - TERMCORE_SHELLS: Comma-separated shell allow-list override
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all configuration for the multiplexer daemon.
type Config struct {
	// ListenAddr is the address the active transport listens on.
	ListenAddr string `json:"listen_addr"`

	// Transport selects which ClientConn transport serve uses:
	// "websocket", "ssh", or "tsnet".
	Transport string `json:"transport"`

	// BufferCapacity is the default ReplayBuffer capacity in bytes.
	BufferCapacity int `json:"buffer_capacity"`

	// GracePeriodMS is the session destroy grace window, in
	// milliseconds, after a PTY exit broadcast. It is loaded and
	// saved, but serve does not apply it: sessions always start with
	// session.DefaultGracePeriod.
	GracePeriodMS int `json:"grace_period_ms"`

	// MaxSessions is the maximum concurrent sessions the registry
	// will accept before spawn requests are rejected.
	MaxSessions int `json:"max_sessions"`

	// IdleTimeoutSeconds is how long a session may go without PTY
	// output or client input before it is killed. Zero disables the
	// idle reaper.
	IdleTimeoutSeconds uint64 `json:"idle_timeout_seconds"`

	// Shells is the shell allow-list, defaulting to the built-in
	// set but configurable for deployments that vet additional
	// shells.
	Shells []string `json:"shells"`
}

// DefaultConfig returns configuration with the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:         ":7681",
		Transport:          "websocket",
		BufferCapacity:     64 * 1024,
		GracePeriodMS:      100,
		MaxSessions:        32,
		IdleTimeoutSeconds: 0,
		Shells:             []string{"/bin/zsh", "/bin/bash", "/bin/sh"},
	}
}

// ConfigDir returns the configuration directory path, creating it if
// necessary. Respects TERMCORE_CONFIG_DIR for testing.
func ConfigDir() (string, error) {
	if testDir := os.Getenv("TERMCORE_CONFIG_DIR"); testDir != "" {
		if err := os.MkdirAll(testDir, 0700); err != nil {
			return "", fmt.Errorf("could not create config directory: %w", err)
		}
		return testDir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".config", "termcore")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("could not create config directory: %w", err)
	}

	return dir, nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration from file and applies environment
// variable overrides. Priority: environment variables > config file
// > defaults. A missing or corrupt config file is not an error — it
// just falls back to defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	_ = cfg.loadFromFile()

	cfg.applyEnvOverrides()

	return cfg, nil
}

func (c *Config) loadFromFile() error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, c)
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("TERMCORE_LISTEN_ADDR"); addr != "" {
		c.ListenAddr = addr
	}

	if transport := os.Getenv("TERMCORE_TRANSPORT"); transport != "" {
		c.Transport = transport
	}

	if capacity := os.Getenv("TERMCORE_BUFFER_CAPACITY"); capacity != "" {
		if val, err := strconv.Atoi(capacity); err == nil {
			c.BufferCapacity = val
		}
	}

	if grace := os.Getenv("TERMCORE_GRACE_PERIOD_MS"); grace != "" {
		if val, err := strconv.Atoi(grace); err == nil {
			c.GracePeriodMS = val
		}
	}

	if maxSessions := os.Getenv("TERMCORE_MAX_SESSIONS"); maxSessions != "" {
		if val, err := strconv.Atoi(maxSessions); err == nil {
			c.MaxSessions = val
		}
	}

	if idle := os.Getenv("TERMCORE_IDLE_TIMEOUT_SECONDS"); idle != "" {
		if val, err := strconv.ParseUint(idle, 10, 64); err == nil {
			c.IdleTimeoutSeconds = val
		}
	}

	if shells := os.Getenv("TERMCORE_SHELLS"); shells != "" {
		c.Shells = strings.Split(shells, ",")
	}
}

// Save writes configuration to the config file.
func (c *Config) Save() error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("could not write config file: %w", err)
	}

	return nil
}
