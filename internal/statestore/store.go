package statestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrDumpFailed wraps any failure of the live state-dump call: RPC errors,
// timeouts, or an unreachable node. A previously persisted snapshot is left
// untouched in every failure case.
var ErrDumpFailed = errors.New("state dump failed")

// Store owns the snapshot file. The content is an opaque blob produced by the
// node's own dump method; it is never parsed here, only carried verbatim.
type Store struct {
	path    string
	timeout time.Duration
}

// New creates a Store for path. timeout bounds the dump RPC so an unreachable
// node cannot hang a stop indefinitely.
func New(path string, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Store{path: path, timeout: timeout}
}

func (s *Store) Path() string { return s.path }

// Exists reports whether a snapshot is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// LaunchArgs returns the extra node arguments implied by snapshot presence:
// nil for a fresh chain, or --load-state pointing at the snapshot. The
// decision depends only on presence, never on content.
func (s *Store) LaunchArgs() []string {
	if s.Exists() {
		return []string{"--load-state", s.path}
	}
	return nil
}

// CaptureFromLive asks the running node for a full state dump over endpoint
// and persists it atomically: the blob is written to a temp file in the same
// directory and renamed over the snapshot, so an interrupted write can never
// corrupt a previously valid snapshot.
func (s *Store) CaptureFromLive(ctx context.Context, endpoint string) error {
	blob, err := dumpState(ctx, endpoint, s.timeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDumpFailed, err)
	}
	if err := s.writeAtomic(blob); err != nil {
		return fmt.Errorf("%w: %v", ErrDumpFailed, err)
	}
	return nil
}

func (s *Store) writeAtomic(blob []byte) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o640); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

// Reset removes the snapshot. Absence is not an error.
func (s *Store) Reset() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
