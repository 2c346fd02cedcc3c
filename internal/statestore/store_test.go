package statestore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func rpcServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestLaunchArgsFreshChain(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "anvil_state.json"), time.Second)
	if args := s.LaunchArgs(); args != nil {
		t.Fatalf("no snapshot should mean fresh args, got %v", args)
	}
}

func TestLaunchArgsWithSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anvil_state.json")
	// Content is irrelevant to the decision, only presence counts.
	if err := os.WriteFile(path, []byte(`{"accounts":{}}`), 0o640); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := New(path, time.Second)
	want := []string{"--load-state", path}
	if got := s.LaunchArgs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestCaptureWritesResultVerbatim(t *testing.T) {
	srv := rpcServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"x":1}}`))
	})

	path := filepath.Join(t.TempDir(), "anvil_state.json")
	s := New(path, time.Second)
	if err := s.CaptureFromLive(context.Background(), srv.URL); err != nil {
		t.Fatalf("CaptureFromLive: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if string(b) != `{"x":1}` {
		t.Fatalf("result not written verbatim: %q", b)
	}
}

func TestCaptureUnreachableEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anvil_state.json")
	s := New(path, 500*time.Millisecond)
	err := s.CaptureFromLive(context.Background(), "http://127.0.0.1:1")
	if !errors.Is(err, ErrDumpFailed) {
		t.Fatalf("expected ErrDumpFailed, got %v", err)
	}
	if s.Exists() {
		t.Fatalf("failed capture must not create a snapshot")
	}
}

func TestCaptureFailureLeavesPreviousSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anvil_state.json")
	prev := []byte(`{"accounts":{"0xabc":{}}}`)
	if err := os.WriteFile(path, prev, 0o640); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := map[string]http.HandlerFunc{
		"rpc error": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`))
		},
		"garbage body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`this is not json`))
		},
		"http error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"null result": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := rpcServer(t, handler)
			s := New(path, time.Second)
			if err := s.CaptureFromLive(context.Background(), srv.URL); !errors.Is(err, ErrDumpFailed) {
				t.Fatalf("expected ErrDumpFailed, got %v", err)
			}
			b, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read snapshot: %v", err)
			}
			if string(b) != string(prev) {
				t.Fatalf("previous snapshot corrupted: %q", b)
			}
		})
	}
}

func TestCaptureTimeout(t *testing.T) {
	srv := rpcServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	})
	s := New(filepath.Join(t.TempDir(), "anvil_state.json"), 200*time.Millisecond)
	start := time.Now()
	err := s.CaptureFromLive(context.Background(), srv.URL)
	if !errors.Is(err, ErrDumpFailed) {
		t.Fatalf("expected ErrDumpFailed, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 1500*time.Millisecond {
		t.Fatalf("timeout not enforced, call took %v", elapsed)
	}
}

func TestCaptureOverwritesOldSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anvil_state.json")
	if err := os.WriteFile(path, []byte(`{"old":true}`), 0o640); err != nil {
		t.Fatalf("seed: %v", err)
	}
	srv := rpcServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"new":true}}`))
	})
	s := New(path, time.Second)
	if err := s.CaptureFromLive(context.Background(), srv.URL); err != nil {
		t.Fatalf("CaptureFromLive: %v", err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != `{"new":true}` {
		t.Fatalf("snapshot not replaced: %q", b)
	}
	// No temp files left behind by the atomic write.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("stray files after capture: %v", entries)
	}
}

func TestResetIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anvil_state.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o640); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := New(path, time.Second)
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if s.Exists() {
		t.Fatalf("snapshot should be gone")
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
}
