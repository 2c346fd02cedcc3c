package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/anvilops/anvilctl/internal/history"
	"github.com/anvilops/anvilctl/internal/logsink"
	"github.com/anvilops/anvilctl/internal/metrics"
	"github.com/anvilops/anvilctl/internal/pidfile"
	"github.com/anvilops/anvilctl/internal/statestore"
)

var (
	// ErrAlreadyRunning is returned by Start when a record is present.
	// The policy is strict: no double-launch, no silent orphaning.
	ErrAlreadyRunning = errors.New("node appears to be already running")
	// ErrNotRunning is returned by Stop/Save when no record exists.
	ErrNotRunning = errors.New("node is not running")
	// ErrBinaryNotFound means the node binary is absent from PATH.
	ErrBinaryNotFound = errors.New("node binary not found")
	// ErrSpawnFailed covers launch errors other than a missing binary.
	ErrSpawnFailed = errors.New("failed to launch node")
	// ErrStopFailed is returned when the termination signal fails for a
	// reason other than "process absent". Cleanup still runs.
	ErrStopFailed = errors.New("failed to stop node")
)

// State is the derived lifecycle state of the managed node.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Status is computed from the persisted record plus a liveness probe; it is
// never stored. Stale means a record exists but its process no longer does.
type Status struct {
	State           State `json:"state"`
	PID             int   `json:"pid,omitempty"`
	Stale           bool  `json:"stale,omitempty"`
	SnapshotPresent bool  `json:"snapshot_present"`
}

// Config carries the launch parameters for the node binary.
type Config struct {
	Binary    string
	Host      string
	Port      int
	ExtraArgs []string
	Endpoint  string // local RPC URL for the stop-time state dump
}

// Supervisor orchestrates the node lifecycle over three injected singleton
// resources: the PID record, the captured-output sink, and the state store.
// It drives at most one external spawn and one RPC call at a time; the
// spawned node runs detached and deliberately outlives the supervisor.
type Supervisor struct {
	cfg    Config
	pid    *pidfile.File
	sink   *logsink.Sink
	store  *statestore.Store
	hist   history.Sink
	logger *slog.Logger

	mu sync.Mutex // serializes start/stop/save within this invocation
}

// Option configures optional collaborators.
type Option func(*Supervisor)

// WithHistory attaches a lifecycle-event sink.
func WithHistory(h history.Sink) Option {
	return func(s *Supervisor) { s.hist = h }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

func New(cfg Config, pid *pidfile.File, sink *logsink.Sink, store *statestore.Store, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:    cfg,
		pid:    pid,
		sink:   sink,
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sink exposes the log sink for the operator surface (tail/follow).
func (s *Supervisor) Sink() *logsink.Sink { return s.sink }

// Store exposes the state store for the operator surface (reset).
func (s *Supervisor) Store() *statestore.Store { return s.store }

// Handle exposes the PID record for the operator surface.
func (s *Supervisor) Handle() *pidfile.File { return s.pid }

// Start launches the node as a detached process and records its PID.
// Launch mode depends solely on snapshot presence: fresh chain without one,
// --load-state with one. Neither ErrBinaryNotFound nor ErrSpawnFailed leaves
// a record behind.
func (s *Supervisor) Start(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.pid.Current(); err == nil {
		return 0, fmt.Errorf("%w (check %s)", ErrAlreadyRunning, s.pid.Path())
	}

	args := []string{"--host", s.cfg.Host, "--port", strconv.Itoa(s.cfg.Port)}
	loadArgs := s.store.LaunchArgs()
	args = append(args, loadArgs...)
	args = append(args, s.cfg.ExtraArgs...)

	mode := "fresh chain"
	if len(loadArgs) > 0 {
		mode = "load state from " + s.store.Path()
	}
	s.logger.Info("starting node", "binary", s.cfg.Binary, "mode", mode)

	path, err := exec.LookPath(s.cfg.Binary)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not in PATH", ErrBinaryNotFound, s.cfg.Binary)
	}

	out, err := s.sink.Open()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}
	pid, err := spawnDetached(path, args, out)
	// The child holds its own descriptor after a successful spawn; either
	// way our copy is no longer needed.
	_ = out.Close()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	if err := s.pid.Register(pid); err != nil {
		return pid, fmt.Errorf("node started with pid %d but recording it failed: %w", pid, err)
	}

	metrics.IncStart()
	metrics.SetNodeUp(true)
	s.record(ctx, history.Event{Type: history.EventStart, PID: pid, Detail: mode})
	s.logger.Info("node started", "pid", pid, "host", s.cfg.Host, "port", s.cfg.Port, "log", s.sink.Path())
	return pid, nil
}

// Stop brings the system to Stopped through three independent steps:
// snapshot capture (failure absorbed), graceful termination signal
// ("process absent" absorbed), and unconditional record removal. Only a
// signal failure other than process-absent surfaces as ErrStopFailed.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.pid.Current()
	if err != nil {
		if errors.Is(err, pidfile.ErrNotRegistered) {
			return ErrNotRunning
		}
		// Corrupt record: nothing sensible to signal; reconcile and report.
		_ = s.pid.Clear()
		return fmt.Errorf("unreadable pid record cleared: %w", err)
	}

	var degraded []string

	// Step 1: capture a fresh snapshot from the live node. A stop must not
	// be blocked by a failed capture.
	if err := s.store.CaptureFromLive(ctx, s.cfg.Endpoint); err != nil {
		metrics.ObserveCapture(false, 0)
		degraded = append(degraded, err.Error())
		s.logger.Warn("state capture failed, stopping anyway", "error", err)
	} else {
		size := fileSize(s.store.Path())
		metrics.ObserveCapture(true, size)
		s.logger.Info("state saved", "path", s.store.Path(), "bytes", size)
	}

	// Step 2: graceful termination. An already-dead process is a success.
	var signalErr error
	if err := signalTerm(rec.PID); err != nil {
		if isNoSuchProcess(err) {
			s.logger.Info("process already stopped", "pid", rec.PID)
		} else {
			signalErr = err
			s.logger.Error("failed to signal node", "pid", rec.PID, "error", err)
		}
	} else {
		s.logger.Info("termination signal sent", "pid", rec.PID)
	}

	// Step 3: clear the record unconditionally, so a dead process can never
	// be believed running forever.
	if err := s.pid.Clear(); err != nil {
		s.logger.Warn("failed to remove pid record", "path", s.pid.Path(), "error", err)
	}

	metrics.IncStop()
	metrics.SetNodeUp(false)
	ev := history.Event{Type: history.EventStop, PID: rec.PID, Detail: "stopped"}
	if signalErr != nil {
		ev.Err = signalErr.Error()
	} else if len(degraded) > 0 {
		ev.Err = strings.Join(degraded, "; ")
	}
	s.record(ctx, ev)

	if signalErr != nil {
		return fmt.Errorf("%w: signal pid %d: %v", ErrStopFailed, rec.PID, signalErr)
	}
	return nil
}

// Save captures a snapshot from the live node without stopping it.
// Unlike the stop path, a capture failure here is surfaced: the snapshot is
// the whole point of the operation.
func (s *Supervisor) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.pid.Current()
	if err != nil {
		return ErrNotRunning
	}
	if err := s.store.CaptureFromLive(ctx, s.cfg.Endpoint); err != nil {
		metrics.ObserveCapture(false, 0)
		return err
	}
	size := fileSize(s.store.Path())
	metrics.ObserveCapture(true, size)
	s.record(ctx, history.Event{Type: history.EventSave, PID: rec.PID, Detail: "snapshot saved"})
	s.logger.Info("state saved", "path", s.store.Path(), "bytes", size)
	return nil
}

// Status derives the lifecycle state. Absence of a record is authoritative
// Stopped; a present record is verified with a liveness probe rather than
// trusted, so an externally killed node reads as Stopped (stale record).
func (s *Supervisor) Status() Status {
	st := Status{State: StateStopped, SnapshotPresent: s.store.Exists()}
	rec, err := s.pid.Current()
	if err != nil {
		metrics.SetNodeUp(false)
		return st
	}
	st.PID = rec.PID
	if rec.Alive() {
		st.State = StateRunning
	} else {
		st.Stale = true
	}
	metrics.SetNodeUp(st.State == StateRunning)
	return st
}

func (s *Supervisor) record(ctx context.Context, ev history.Event) {
	if s.hist == nil {
		return
	}
	ev.OccurredAt = time.Now()
	if err := s.hist.Send(ctx, ev); err != nil {
		s.logger.Warn("failed to record history event", "type", ev.Type, "error", err)
	}
}

func fileSize(path string) int {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return int(st.Size())
}
