package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Node.Binary != "anvil" {
		t.Fatalf("binary: %q", cfg.Node.Binary)
	}
	if cfg.Node.Host != "0.0.0.0" || cfg.Node.Port != 8545 {
		t.Fatalf("bind: %s:%d", cfg.Node.Host, cfg.Node.Port)
	}
	if cfg.Files.PIDFile != "anvil.pid" || cfg.Files.StateFile != "anvil_state.json" {
		t.Fatalf("files: %+v", cfg.Files)
	}
	if cfg.Log.Append {
		t.Fatalf("default policy is truncate-on-start")
	}
	if cfg.Endpoint() != "http://127.0.0.1:8545" {
		t.Fatalf("endpoint: %s", cfg.Endpoint())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anvilctl.toml")
	content := `
[node]
host = "127.0.0.1"
port = 9545
binary = "anvil"
extra_args = ["--block-time", "1"]

[files]
pid_file = "/tmp/x/anvil.pid"
state_file = "/tmp/x/state.json"
log_file = "/tmp/x/anvil.log"

[log]
append = true

[rpc]
timeout = "10s"

[history]
dsn = "history.db"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Node.Host != "127.0.0.1" || cfg.Node.Port != 9545 {
		t.Fatalf("node not loaded: %+v", cfg.Node)
	}
	if len(cfg.Node.ExtraArgs) != 2 || cfg.Node.ExtraArgs[0] != "--block-time" {
		t.Fatalf("extra args not loaded: %v", cfg.Node.ExtraArgs)
	}
	if !cfg.Log.Append {
		t.Fatalf("append policy not loaded")
	}
	if cfg.RPCTimeout() != 10*time.Second {
		t.Fatalf("rpc timeout: %v", cfg.RPCTimeout())
	}
	if cfg.History.DSN != "history.db" {
		t.Fatalf("history dsn: %q", cfg.History.DSN)
	}
	if cfg.Endpoint() != "http://127.0.0.1:9545" {
		t.Fatalf("endpoint: %s", cfg.Endpoint())
	}
}

func TestEnvOverrideWithoutFile(t *testing.T) {
	t.Setenv("ANVILCTL_NODE_PORT", "9999")
	t.Setenv("ANVILCTL_LOG_APPEND", "true")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Node.Port != 9999 {
		t.Fatalf("env port override ignored: %d", cfg.Node.Port)
	}
	if !cfg.Log.Append {
		t.Fatalf("env append override ignored")
	}
	if cfg.Endpoint() != "http://127.0.0.1:9999" {
		t.Fatalf("endpoint: %s", cfg.Endpoint())
	}
}

func TestEnvOverrideBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anvilctl.toml")
	content := `
[node]
port = 9545
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ANVILCTL_NODE_PORT", "7777")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Node.Port != 7777 {
		t.Fatalf("env must take precedence over the file, got %d", cfg.Node.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"empty binary":    func(c *Config) { c.Node.Binary = " " },
		"port too low":    func(c *Config) { c.Node.Port = 0 },
		"port too high":   func(c *Config) { c.Node.Port = 70000 },
		"empty pid file":  func(c *Config) { c.Files.PIDFile = "" },
		"empty state":     func(c *Config) { c.Files.StateFile = "" },
		"empty log":       func(c *Config) { c.Files.LogFile = "" },
		"negative expiry": func(c *Config) { c.RPC.Timeout = -time.Second },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestRPCTimeoutFallback(t *testing.T) {
	cfg := Default()
	cfg.RPC.Timeout = 0
	if cfg.RPCTimeout() != 5*time.Second {
		t.Fatalf("zero timeout must fall back, got %v", cfg.RPCTimeout())
	}
}
