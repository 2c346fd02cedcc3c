package anvilctl

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Files.PIDFile = filepath.Join(dir, "anvil.pid")
	cfg.Files.StateFile = filepath.Join(dir, "state.json")
	cfg.Files.LogFile = filepath.Join(dir, "anvil.log")
	return cfg
}

func TestNewFromDefaultConfig(t *testing.T) {
	sup, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	st := sup.Status()
	if st.State != StateStopped {
		t.Fatalf("fresh supervisor state = %q", st.State)
	}
	if st.SnapshotPresent {
		t.Fatalf("no snapshot expected for a fresh config")
	}
}

func TestStopWithoutRecord(t *testing.T) {
	sup, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sup.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("stop without record = %v, want ErrNotRunning", err)
	}
}

func TestNewWithSQLiteHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.DSN = filepath.Join(t.TempDir(), "history.db")
	sup, err := New(cfg)
	if err != nil {
		t.Fatalf("New with history: %v", err)
	}
	if sup == nil {
		t.Fatalf("nil supervisor")
	}
}

func TestNewWithBadHistoryDSN(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.DSN = "mysql://not-supported"
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected error for unsupported history DSN")
	}
}
