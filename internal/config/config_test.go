package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// setupTestEnv creates a temporary config directory and clears env vars.
// Returns a cleanup function to restore state.
func setupTestEnv(t *testing.T) func() {
	t.Helper()

	origConfigDir := os.Getenv("TERMCORE_CONFIG_DIR")
	origListenAddr := os.Getenv("TERMCORE_LISTEN_ADDR")
	origTransport := os.Getenv("TERMCORE_TRANSPORT")
	origCapacity := os.Getenv("TERMCORE_BUFFER_CAPACITY")
	origGrace := os.Getenv("TERMCORE_GRACE_PERIOD_MS")
	origMaxSessions := os.Getenv("TERMCORE_MAX_SESSIONS")
	origIdle := os.Getenv("TERMCORE_IDLE_TIMEOUT_SECONDS")
	origShells := os.Getenv("TERMCORE_SHELLS")

	tmpDir := t.TempDir()
	os.Setenv("TERMCORE_CONFIG_DIR", tmpDir)

	os.Unsetenv("TERMCORE_LISTEN_ADDR")
	os.Unsetenv("TERMCORE_TRANSPORT")
	os.Unsetenv("TERMCORE_BUFFER_CAPACITY")
	os.Unsetenv("TERMCORE_GRACE_PERIOD_MS")
	os.Unsetenv("TERMCORE_MAX_SESSIONS")
	os.Unsetenv("TERMCORE_IDLE_TIMEOUT_SECONDS")
	os.Unsetenv("TERMCORE_SHELLS")

	return func() {
		os.Setenv("TERMCORE_CONFIG_DIR", origConfigDir)
		if origListenAddr != "" {
			os.Setenv("TERMCORE_LISTEN_ADDR", origListenAddr)
		}
		if origTransport != "" {
			os.Setenv("TERMCORE_TRANSPORT", origTransport)
		}
		if origCapacity != "" {
			os.Setenv("TERMCORE_BUFFER_CAPACITY", origCapacity)
		}
		if origGrace != "" {
			os.Setenv("TERMCORE_GRACE_PERIOD_MS", origGrace)
		}
		if origMaxSessions != "" {
			os.Setenv("TERMCORE_MAX_SESSIONS", origMaxSessions)
		}
		if origIdle != "" {
			os.Setenv("TERMCORE_IDLE_TIMEOUT_SECONDS", origIdle)
		}
		if origShells != "" {
			os.Setenv("TERMCORE_SHELLS", origShells)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ListenAddr != ":7681" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":7681")
	}
	if cfg.Transport != "websocket" {
		t.Errorf("Transport = %q, want %q", cfg.Transport, "websocket")
	}
	if cfg.BufferCapacity != 64*1024 {
		t.Errorf("BufferCapacity = %d, want %d", cfg.BufferCapacity, 64*1024)
	}
	if cfg.GracePeriodMS != 100 {
		t.Errorf("GracePeriodMS = %d, want 100", cfg.GracePeriodMS)
	}
	if cfg.MaxSessions != 32 {
		t.Errorf("MaxSessions = %d, want 32", cfg.MaxSessions)
	}
	if cfg.IdleTimeoutSeconds != 0 {
		t.Errorf("IdleTimeoutSeconds = %d, want 0", cfg.IdleTimeoutSeconds)
	}
	if len(cfg.Shells) != 3 {
		t.Errorf("Shells = %v, want 3 entries", cfg.Shells)
	}
}

func TestConfigSerialization(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ListenAddr = ":9000"
	cfg.Transport = "ssh"

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if loaded.ListenAddr != cfg.ListenAddr {
		t.Errorf("ListenAddr = %q, want %q", loaded.ListenAddr, cfg.ListenAddr)
	}
	if loaded.Transport != cfg.Transport {
		t.Errorf("Transport = %q, want %q", loaded.Transport, cfg.Transport)
	}
}

func TestLoadFromFile(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	configPath, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath() failed: %v", err)
	}

	fileConfig := &Config{
		ListenAddr:     ":6000",
		Transport:      "tsnet",
		BufferCapacity: 4096,
		GracePeriodMS:  250,
		MaxSessions:    5,
		Shells:         []string{"/bin/bash"},
	}

	data, err := json.MarshalIndent(fileConfig, "", "  ")
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ListenAddr != ":6000" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":6000")
	}
	if cfg.Transport != "tsnet" {
		t.Errorf("Transport = %q, want %q", cfg.Transport, "tsnet")
	}
	if cfg.GracePeriodMS != 250 {
		t.Errorf("GracePeriodMS = %d, want 250", cfg.GracePeriodMS)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	configPath, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath() failed: %v", err)
	}

	fileConfig := &Config{ListenAddr: ":6000", Transport: "ssh", GracePeriodMS: 100}
	data, _ := json.MarshalIndent(fileConfig, "", "  ")
	os.WriteFile(configPath, data, 0600)

	os.Setenv("TERMCORE_LISTEN_ADDR", ":9999")
	os.Setenv("TERMCORE_GRACE_PERIOD_MS", "500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q, want %q (env override)", cfg.ListenAddr, ":9999")
	}
	if cfg.GracePeriodMS != 500 {
		t.Errorf("GracePeriodMS = %d, want 500 (env override)", cfg.GracePeriodMS)
	}
	if cfg.Transport != "ssh" {
		t.Errorf("Transport = %q, want %q (from file, not overridden)", cfg.Transport, "ssh")
	}
}

func TestAllEnvOverrides(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("TERMCORE_LISTEN_ADDR", ":1111")
	os.Setenv("TERMCORE_TRANSPORT", "tsnet")
	os.Setenv("TERMCORE_BUFFER_CAPACITY", "2048")
	os.Setenv("TERMCORE_GRACE_PERIOD_MS", "50")
	os.Setenv("TERMCORE_MAX_SESSIONS", "8")
	os.Setenv("TERMCORE_IDLE_TIMEOUT_SECONDS", "600")
	os.Setenv("TERMCORE_SHELLS", "/bin/bash,/bin/sh")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ListenAddr != ":1111" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":1111")
	}
	if cfg.Transport != "tsnet" {
		t.Errorf("Transport = %q, want %q", cfg.Transport, "tsnet")
	}
	if cfg.BufferCapacity != 2048 {
		t.Errorf("BufferCapacity = %d, want 2048", cfg.BufferCapacity)
	}
	if cfg.GracePeriodMS != 50 {
		t.Errorf("GracePeriodMS = %d, want 50", cfg.GracePeriodMS)
	}
	if cfg.MaxSessions != 8 {
		t.Errorf("MaxSessions = %d, want 8", cfg.MaxSessions)
	}
	if cfg.IdleTimeoutSeconds != 600 {
		t.Errorf("IdleTimeoutSeconds = %d, want 600", cfg.IdleTimeoutSeconds)
	}
	if len(cfg.Shells) != 2 || cfg.Shells[0] != "/bin/bash" {
		t.Errorf("Shells = %v, want [/bin/bash /bin/sh]", cfg.Shells)
	}
}

func TestSaveAndLoad(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	cfg := DefaultConfig()
	cfg.ListenAddr = ":5555"
	cfg.MaxSessions = 99

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if loaded.ListenAddr != ":5555" {
		t.Errorf("ListenAddr = %q, want %q", loaded.ListenAddr, ":5555")
	}
	if loaded.MaxSessions != 99 {
		t.Errorf("MaxSessions = %d, want 99", loaded.MaxSessions)
	}
}

func TestConfigDirOverride(t *testing.T) {
	tmpDir := t.TempDir()
	customDir := filepath.Join(tmpDir, "custom_config")

	os.Setenv("TERMCORE_CONFIG_DIR", customDir)
	defer os.Unsetenv("TERMCORE_CONFIG_DIR")

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() failed: %v", err)
	}

	if dir != customDir {
		t.Errorf("ConfigDir() = %q, want %q", dir, customDir)
	}

	if _, err := os.Stat(customDir); os.IsNotExist(err) {
		t.Errorf("Config directory was not created")
	}
}

func TestLoadWithNoFile(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ListenAddr != ":7681" {
		t.Errorf("ListenAddr = %q, want default", cfg.ListenAddr)
	}
	if cfg.MaxSessions != 32 {
		t.Errorf("MaxSessions = %d, want default 32", cfg.MaxSessions)
	}
}

func TestInvalidEnvVarsIgnored(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("TERMCORE_BUFFER_CAPACITY", "not_a_number")
	os.Setenv("TERMCORE_MAX_SESSIONS", "invalid")
	os.Setenv("TERMCORE_IDLE_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.BufferCapacity != 64*1024 {
		t.Errorf("BufferCapacity = %d, want default (invalid env ignored)", cfg.BufferCapacity)
	}
	if cfg.MaxSessions != 32 {
		t.Errorf("MaxSessions = %d, want default 32 (invalid env ignored)", cfg.MaxSessions)
	}
	if cfg.IdleTimeoutSeconds != 0 {
		t.Errorf("IdleTimeoutSeconds = %d, want default 0 (empty env ignored)", cfg.IdleTimeoutSeconds)
	}
}
