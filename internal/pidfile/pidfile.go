package pidfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNotRegistered is returned by Current when no record exists on disk.
var ErrNotRegistered = errors.New("no node process registered")

// Record is the persisted identity of the last launched node process.
// StartUnix, when non-zero, is the process start time used to detect PID
// reuse after reboots or long gaps between operator sessions.
type Record struct {
	PID       int
	StartUnix int64
}

type meta struct {
	StartUnix int64 `json:"start_unix"`
}

// File owns the single-slot PID record on disk. Presence of the file means a
// start was attempted; it does not by itself guarantee the process is alive.
type File struct {
	path string
}

func New(path string) *File { return &File{path: path} }

func (f *File) Path() string { return f.path }

// Register persists pid as the sole record, overwriting any prior one.
// The write is unconditional: no liveness check is performed here.
func (f *File) Register(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("refusing to register invalid pid %d", pid)
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create pidfile dir: %w", err)
		}
	}
	var b strings.Builder
	b.WriteString(strconv.Itoa(pid))
	b.WriteByte('\n')
	if start := processStartUnix(pid); start > 0 {
		mb, _ := json.Marshal(meta{StartUnix: start})
		b.Write(mb)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(f.path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write pidfile: %w", err)
	}
	return nil
}

// Current reads the persisted record. It fails with ErrNotRegistered when the
// file is absent and with a parse error when the file is corrupt.
func (f *File) Current() (Record, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrNotRegistered
		}
		return Record{}, err
	}
	pidLine, rest, _ := strings.Cut(strings.ReplaceAll(string(b), "\r\n", "\n"), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil {
		return Record{}, fmt.Errorf("invalid pid in %s: %w", f.path, err)
	}
	rec := Record{PID: pid}
	if rest = strings.TrimSpace(rest); rest != "" {
		var m meta
		if err := json.Unmarshal([]byte(rest), &m); err == nil {
			rec.StartUnix = m.StartUnix
		}
	}
	return rec, nil
}

// Clear removes the record. Absence is not an error.
func (f *File) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsLikelyRunning reports whether a record is present. It is an inference,
// not a guarantee: a stale record after an external kill reads as running
// until the next stop attempt reconciles it.
func (f *File) IsLikelyRunning() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Alive probes the recorded process: existence via signal 0 plus a start-time
// comparison so a reused PID is not mistaken for our node.
func (r Record) Alive() bool {
	if r.PID <= 0 {
		return false
	}
	if r.StartUnix > 0 {
		if cur := processStartUnix(r.PID); cur > 0 && cur != r.StartUnix {
			return false // PID reused; not our process
		}
	}
	return pidAlive(r.PID)
}
