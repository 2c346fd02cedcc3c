package logsink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrSinkNotFound is returned when the node log has never been created.
var ErrSinkNotFound = errors.New("node log not found")

// Sink owns the captured-output file for the node. The child process writes
// to it directly through an inherited file handle, so Open must hand back a
// real *os.File rather than a userspace writer.
type Sink struct {
	path   string
	append bool
}

// New creates a Sink for path. With append=false the file is truncated at
// every Open (clean-slate policy); with append=true output accumulates
// across restarts. The policy is fixed at construction so all call sites
// behave consistently.
func New(path string, append bool) *Sink {
	return &Sink{path: path, append: append}
}

func (s *Sink) Path() string { return s.path }

// Exists reports whether the log file has been created.
func (s *Sink) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Open acquires the write handle the spawned node inherits as stdout+stderr.
// The caller closes its copy after a successful spawn; the child keeps its
// own descriptor for its lifetime.
func (s *Sink) Open() (*os.File, error) {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	flags := os.O_CREATE | os.O_WRONLY
	if s.append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(s.path, flags, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open node log: %w", err)
	}
	return f, nil
}

// Tail returns up to n trailing lines of the log, oldest first.
func (s *Sink) Tail(n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSinkNotFound
		}
		return nil, err
	}
	text := strings.TrimRight(string(b), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
