package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/anvilops/anvilctl/internal/history"
)

func TestSendAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	events := []history.Event{
		{Type: history.EventStart, OccurredAt: time.Now(), PID: 100, Detail: "fresh chain"},
		{Type: history.EventSave, OccurredAt: time.Now(), PID: 100, Detail: "snapshot saved"},
		{Type: history.EventStop, OccurredAt: time.Now(), PID: 100, Detail: "stopped", Err: "state dump failed: timeout"},
	}
	for _, e := range events {
		if err := s.Send(ctx, e); err != nil {
			t.Fatalf("Send(%s): %v", e.Type, err)
		}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM node_history`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != len(events) {
		t.Fatalf("want %d rows, got %d", len(events), count)
	}

	var errText *string
	row := s.db.QueryRowContext(ctx, `SELECT error FROM node_history WHERE event = ?`, "stop")
	if err := row.Scan(&errText); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if errText == nil || *errText != "state dump failed: timeout" {
		t.Fatalf("unexpected error column: %v", errText)
	}

	row = s.db.QueryRowContext(ctx, `SELECT error FROM node_history WHERE event = ?`, "start")
	if err := row.Scan(&errText); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if errText != nil {
		t.Fatalf("clean start should store NULL error, got %q", *errText)
	}
}

func TestDSNParsing(t *testing.T) {
	dir := t.TempDir()

	s, err := New("sqlite://" + filepath.Join(dir, "a.db"))
	if err != nil {
		t.Fatalf("prefixed DSN: %v", err)
	}
	_ = s.Close()

	s, err = New(filepath.Join(dir, "b.db"))
	if err != nil {
		t.Fatalf("bare path DSN: %v", err)
	}
	_ = s.Close()

	if _, err := New(""); err == nil {
		t.Fatalf("empty DSN must fail")
	}
	if _, err := New("   "); err == nil {
		t.Fatalf("blank DSN must fail")
	}
}
