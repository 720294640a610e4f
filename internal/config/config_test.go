package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGenerateDefaultValidates(t *testing.T) {
	cfg := GenerateDefault()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.SocketPath != "/tmp/llm_server.sock" {
		t.Errorf("SocketPath = %s", cfg.SocketPath)
	}
	if cfg.Engine.ReadyMarker != "SERVER_READY" {
		t.Errorf("ReadyMarker = %s", cfg.Engine.ReadyMarker)
	}
}

func TestValidateMissingFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"version", func(c *Config) { c.Version = "" }, "version"},
		{"socket path", func(c *Config) { c.SocketPath = "" }, "socket_path"},
		{"log path", func(c *Config) { c.LogPath = "" }, "log_path"},
		{"engine cmd", func(c *Config) { c.Engine.Cmd = nil }, "engine.cmd"},
		{"ready marker", func(c *Config) { c.Engine.ReadyMarker = "" }, "ready_marker"},
		{"fallback cmd", func(c *Config) { c.Fallback.Cmd = nil }, "fallback.cmd"},
	}
	for _, tc := range cases {
		cfg := GenerateDefault()
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: validation passed", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
		if !strings.Contains(err.Error(), "Hint:") {
			t.Errorf("%s: error lacks a hint", tc.name)
		}
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphgate.json")

	original := GenerateDefault()
	original.SocketPath = "/run/custom/engine.sock"
	original.Timeouts.RecvS = 45
	original.Engine.Cmd = []string{"python3", "-u", "llm_server.py"}

	if err := original.SaveToFile(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.SocketPath != original.SocketPath {
		t.Errorf("SocketPath = %s", loaded.SocketPath)
	}
	if loaded.Timeouts.RecvS != 45 {
		t.Errorf("RecvS = %d", loaded.Timeouts.RecvS)
	}
	if len(loaded.Engine.Cmd) != 3 || loaded.Engine.Cmd[1] != "-u" {
		t.Errorf("Engine.Cmd = %v", loaded.Engine.Cmd)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("load of a missing file succeeded")
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := GenerateDefault()
	if cfg.RecvTimeout() != 120*time.Second {
		t.Errorf("RecvTimeout = %s", cfg.RecvTimeout())
	}
	if cfg.SendTimeout() != 10*time.Second {
		t.Errorf("SendTimeout = %s", cfg.SendTimeout())
	}
	if cfg.PollInterval() != time.Second {
		t.Errorf("PollInterval = %s", cfg.PollInterval())
	}
	if cfg.ProbeTimeout() != 5*time.Second {
		t.Errorf("ProbeTimeout = %s", cfg.ProbeTimeout())
	}
}
