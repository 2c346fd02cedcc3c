package anvilctl

import (
	"github.com/anvilops/anvilctl/internal/config"
	"github.com/anvilops/anvilctl/internal/history"
	"github.com/anvilops/anvilctl/internal/history/factory"
	"github.com/anvilops/anvilctl/internal/logsink"
	"github.com/anvilops/anvilctl/internal/pidfile"
	"github.com/anvilops/anvilctl/internal/statestore"
	"github.com/anvilops/anvilctl/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = config.Config

type Status = supervisor.Status

type State = supervisor.State

type HistorySink = history.Sink

const (
	StateStopped  = supervisor.StateStopped
	StateStarting = supervisor.StateStarting
	StateRunning  = supervisor.StateRunning
	StateStopping = supervisor.StateStopping
)

// Lifecycle errors, re-exported for errors.Is checks by embedders.
var (
	ErrAlreadyRunning = supervisor.ErrAlreadyRunning
	ErrNotRunning     = supervisor.ErrNotRunning
	ErrBinaryNotFound = supervisor.ErrBinaryNotFound
	ErrSpawnFailed    = supervisor.ErrSpawnFailed
	ErrStopFailed     = supervisor.ErrStopFailed
)

// DefaultConfig returns the conventional local deployment configuration.
func DefaultConfig() Config { return config.Default() }

// LoadConfig reads a TOML config file merged over the defaults.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// Supervisor is a thin facade over the internal node supervisor, providing a
// stable public API for embedding.
type Supervisor = supervisor.Supervisor

// New wires a Supervisor from cfg. An optional history sink is attached when
// cfg.History.DSN is set; a sink construction error is returned rather than
// silently dropped so embedders can decide how to degrade.
func New(cfg Config) (*Supervisor, error) {
	opts := []supervisor.Option{}
	if cfg.History.DSN != "" {
		sink, err := factory.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			return nil, err
		}
		opts = append(opts, supervisor.WithHistory(sink))
	}
	return supervisor.New(
		supervisor.Config{
			Binary:    cfg.Node.Binary,
			Host:      cfg.Node.Host,
			Port:      cfg.Node.Port,
			ExtraArgs: cfg.Node.ExtraArgs,
			Endpoint:  cfg.Endpoint(),
		},
		pidfile.New(cfg.Files.PIDFile),
		logsink.New(cfg.Files.LogFile, cfg.Log.Append),
		statestore.New(cfg.Files.StateFile, cfg.RPCTimeout()),
		opts...,
	), nil
}

// NewSinkFromDSN builds a history sink from a DSN (sqlite, postgres,
// clickhouse, opensearch). Exposed for embedders that manage sink lifetime
// themselves.
func NewSinkFromDSN(dsn string) (HistorySink, error) {
	return factory.NewSinkFromDSN(dsn)
}
