package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Node describes the managed anvil instance and how to reach it.
type Node struct {
	Binary    string   `toml:"binary" mapstructure:"binary"`
	Host      string   `toml:"host" mapstructure:"host"`
	Port      int      `toml:"port" mapstructure:"port"`
	ExtraArgs []string `toml:"extra_args" mapstructure:"extra_args"`
}

// Files holds the three singleton on-disk resources owned by the supervisor.
type Files struct {
	PIDFile   string `toml:"pid_file" mapstructure:"pid_file"`
	StateFile string `toml:"state_file" mapstructure:"state_file"`
	LogFile   string `toml:"log_file" mapstructure:"log_file"`
}

// Log configures the captured node output and the supervisor's own log.
// Append=false truncates the node log at every start (clean-slate default).
// SelfFile, when set, routes anvilctl's structured log to a rotating file.
type Log struct {
	Append     bool   `toml:"append" mapstructure:"append"`
	SelfFile   string `toml:"self_file" mapstructure:"self_file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
	Debug      bool   `toml:"debug" mapstructure:"debug"`
}

// RPC configures the local state-dump call issued at stop time.
type RPC struct {
	Timeout time.Duration `toml:"timeout" mapstructure:"timeout"`
}

// History configures the lifecycle-event sink. Empty DSN disables it.
type History struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

// Server configures the optional status/metrics HTTP endpoint.
type Server struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type Config struct {
	Node    Node    `toml:"node" mapstructure:"node"`
	Files   Files   `toml:"files" mapstructure:"files"`
	Log     Log     `toml:"log" mapstructure:"log"`
	RPC     RPC     `toml:"rpc" mapstructure:"rpc"`
	History History `toml:"history" mapstructure:"history"`
	Server  Server  `toml:"server" mapstructure:"server"`
}

// Default mirrors the conventional local anvil deployment: listen on all
// interfaces on 8545, bookkeeping files in the working directory.
func Default() Config {
	return Config{
		Node: Node{
			Binary: "anvil",
			Host:   "0.0.0.0",
			Port:   8545,
		},
		Files: Files{
			PIDFile:   "anvil.pid",
			StateFile: "anvil_state.json",
			LogFile:   filepath.Join("data", "anvil.log"),
		},
		RPC: RPC{
			Timeout: 5 * time.Second,
		},
		Server: Server{
			Listen:   "127.0.0.1:8546",
			BasePath: "/api",
		},
	}
}

// Load reads a TOML config file and merges it over the defaults.
// path may be empty, in which case defaults plus ANVILCTL_* env overrides apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("ANVILCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	// Seed viper with the defaults: Unmarshal only visits keys viper knows
	// about, so env overrides for keys absent from the file would otherwise
	// never apply.
	seedDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func seedDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("node.binary", cfg.Node.Binary)
	v.SetDefault("node.host", cfg.Node.Host)
	v.SetDefault("node.port", cfg.Node.Port)
	v.SetDefault("node.extra_args", cfg.Node.ExtraArgs)
	v.SetDefault("files.pid_file", cfg.Files.PIDFile)
	v.SetDefault("files.state_file", cfg.Files.StateFile)
	v.SetDefault("files.log_file", cfg.Files.LogFile)
	v.SetDefault("log.append", cfg.Log.Append)
	v.SetDefault("log.self_file", cfg.Log.SelfFile)
	v.SetDefault("log.max_size_mb", cfg.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", cfg.Log.MaxBackups)
	v.SetDefault("log.max_age_days", cfg.Log.MaxAgeDays)
	v.SetDefault("log.compress", cfg.Log.Compress)
	v.SetDefault("log.debug", cfg.Log.Debug)
	v.SetDefault("rpc.timeout", cfg.RPC.Timeout)
	v.SetDefault("history.dsn", cfg.History.DSN)
	v.SetDefault("server.listen", cfg.Server.Listen)
	v.SetDefault("server.base_path", cfg.Server.BasePath)
}

// Validate rejects configurations the supervisor cannot act on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Node.Binary) == "" {
		return fmt.Errorf("node.binary must not be empty")
	}
	if c.Node.Port <= 0 || c.Node.Port > 65535 {
		return fmt.Errorf("node.port out of range: %d", c.Node.Port)
	}
	if strings.TrimSpace(c.Files.PIDFile) == "" {
		return fmt.Errorf("files.pid_file must not be empty")
	}
	if strings.TrimSpace(c.Files.StateFile) == "" {
		return fmt.Errorf("files.state_file must not be empty")
	}
	if strings.TrimSpace(c.Files.LogFile) == "" {
		return fmt.Errorf("files.log_file must not be empty")
	}
	if c.RPC.Timeout < 0 {
		return fmt.Errorf("rpc.timeout must not be negative")
	}
	return nil
}

// Endpoint is the local RPC URL used for the stop-time state dump.
// The node may bind 0.0.0.0 but the dump always goes through loopback.
func (c Config) Endpoint() string {
	return fmt.Sprintf("http://127.0.0.1:%d", c.Node.Port)
}

// RPCTimeout returns the configured dump timeout, falling back to the default
// so an unreachable node can never hang a stop indefinitely.
func (c Config) RPCTimeout() time.Duration {
	if c.RPC.Timeout <= 0 {
		return 5 * time.Second
	}
	return c.RPC.Timeout
}
