// Package config defines the graphgate.json configuration file. Every
// path and timeout the components need is supplied here at construction
// time; nothing reads ambient global state.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// DefaultFileName is the config file searched for in the working directory.
const DefaultFileName = "graphgate.json"

// Config is the root of graphgate.json.
type Config struct {
	Version    string         `json:"version"`
	SocketPath string         `json:"socket_path"`
	LogPath    string         `json:"log_path"`
	PIDPath    string         `json:"pid_path"`
	LockPath   string         `json:"lock_path"`
	Engine     EngineConfig   `json:"engine"`
	Timeouts   TimeoutConfig  `json:"timeouts"`
	Fallback   FallbackConfig `json:"fallback"`
	HTTP       HTTPConfig     `json:"http"`
	LogLevel   string         `json:"log_level,omitempty"`
}

// EngineConfig describes how the persistent engine process is launched
// and how its readiness is detected.
type EngineConfig struct {
	// Cmd is the argv vector that starts the persistent engine.
	Cmd []string `json:"cmd"`
	// ReadyMarker is the literal token the engine appends to its log
	// once it can accept queries.
	ReadyMarker string `json:"ready_marker"`
	// ReadyTimeoutS bounds the wait for the marker.
	ReadyTimeoutS int `json:"ready_timeout_s"`
	// PollIntervalMs is the log-scan interval during startup.
	PollIntervalMs int `json:"poll_interval_ms"`
	// StopGraceS is how long a graceful stop waits before force-kill.
	StopGraceS int `json:"stop_grace_s"`
	// LogTailLines is how many trailing log lines status reports carry.
	LogTailLines int `json:"log_tail_lines"`
}

// TimeoutConfig bounds the protocol client and health prober.
type TimeoutConfig struct {
	ConnectS int `json:"connect_s"`
	SendS    int `json:"send_s"`
	RecvS    int `json:"recv_s"`
	ProbeS   int `json:"probe_s"`
}

// FallbackConfig describes the one-shot engine invocation.
type FallbackConfig struct {
	Cmd      []string `json:"cmd"`
	TimeoutS int      `json:"timeout_s"`
}

// HTTPConfig configures the management HTTP surface.
type HTTPConfig struct {
	Addr string `json:"addr"`
}

// GenerateDefault creates a Config mirroring the engine's stock
// deployment: socket and log under /tmp, SERVER_READY marker, python3
// entry points for both the persistent server and the one-shot path.
func GenerateDefault() *Config {
	return &Config{
		Version:    "1.0",
		SocketPath: "/tmp/llm_server.sock",
		LogPath:    "/tmp/llm_server.log",
		PIDPath:    "/tmp/llm_server.pid",
		LockPath:   "/tmp/llm_server.lock",
		Engine: EngineConfig{
			Cmd:            []string{"python3", "llm_server.py"},
			ReadyMarker:    "SERVER_READY",
			ReadyTimeoutS:  60,
			PollIntervalMs: 1000,
			StopGraceS:     2,
			LogTailLines:   20,
		},
		Timeouts: TimeoutConfig{
			ConnectS: 120,
			SendS:    10,
			RecvS:    120,
			ProbeS:   5,
		},
		Fallback: FallbackConfig{
			Cmd:      []string{"python3", "main_web.py"},
			TimeoutS: 300,
		},
		HTTP: HTTPConfig{
			Addr: "127.0.0.1:8089",
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration and returns hint-bearing messages
// for operator mistakes.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("configuration error: missing required field 'version'\n\nHint: Add a version field like:\n  \"version\": \"1.0\"")
	}
	if c.SocketPath == "" {
		return fmt.Errorf("configuration error: missing required field 'socket_path'\n\nHint: Point it at the engine's Unix socket:\n  \"socket_path\": \"/tmp/llm_server.sock\"")
	}
	if c.LogPath == "" {
		return fmt.Errorf("configuration error: missing required field 'log_path'\n\nHint: The supervisor watches this file for the readiness marker:\n  \"log_path\": \"/tmp/llm_server.log\"")
	}
	if len(c.Engine.Cmd) == 0 {
		return fmt.Errorf("configuration error: 'engine.cmd' is empty\n\nHint: Specify the argv vector that starts the engine:\n  \"cmd\": [\"python3\", \"llm_server.py\"]")
	}
	if c.Engine.ReadyMarker == "" {
		return fmt.Errorf("configuration error: 'engine.ready_marker' is empty\n\nHint: The engine logs a literal token once initialized:\n  \"ready_marker\": \"SERVER_READY\"")
	}
	if len(c.Fallback.Cmd) == 0 {
		return fmt.Errorf("configuration error: 'fallback.cmd' is empty\n\nHint: Specify the one-shot engine entry point:\n  \"cmd\": [\"python3\", \"main_web.py\"]")
	}
	return nil
}

// Duration accessors so components never re-derive units from the raw
// integer fields.

func (c *Config) ConnectTimeout() time.Duration { return secs(c.Timeouts.ConnectS) }
func (c *Config) SendTimeout() time.Duration    { return secs(c.Timeouts.SendS) }
func (c *Config) RecvTimeout() time.Duration    { return secs(c.Timeouts.RecvS) }
func (c *Config) ProbeTimeout() time.Duration   { return secs(c.Timeouts.ProbeS) }
func (c *Config) ReadyTimeout() time.Duration   { return secs(c.Engine.ReadyTimeoutS) }
func (c *Config) StopGrace() time.Duration      { return secs(c.Engine.StopGraceS) }
func (c *Config) FallbackTimeout() time.Duration { return secs(c.Fallback.TimeoutS) }

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollIntervalMs) * time.Millisecond
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

// LoadFromFile loads a configuration from a JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}

// SaveToFile writes the configuration to a JSON file with 0600 permissions.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}
