package logsink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// pollInterval backs up fsnotify on filesystems that don't deliver events.
const pollInterval = 500 * time.Millisecond

// Follow streams content appended to the log after the call, writing it to w
// until ctx is canceled or the log is deleted out from under it. It fails
// with ErrSinkNotFound when the log has never been created. The read loop
// holds no lock, so start/stop from another invocation are never blocked by
// an operator tailing the log.
func (s *Sink) Follow(ctx context.Context, w io.Writer) error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrSinkNotFound
		}
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek node log: %w", err)
	}

	watcher, werr := fsnotify.NewWatcher()
	if werr == nil {
		defer func() { _ = watcher.Close() }()
		_ = watcher.Add(s.path)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	r := bufio.NewReader(f)
	for {
		if err := drain(r, w); err != nil {
			return err
		}
		// Truncation (a fresh start under the clean-slate policy) moves the
		// file backwards; reposition instead of reporting EOF forever.
		// A deleted sink ends the stream: everything written before the
		// removal has been drained through the still-open descriptor.
		if pos, err := f.Seek(0, io.SeekCurrent); err == nil {
			st, serr := os.Stat(s.path)
			switch {
			case os.IsNotExist(serr):
				return ErrSinkNotFound
			case serr == nil && st.Size() < pos:
				if _, err := f.Seek(0, io.SeekStart); err != nil {
					return err
				}
				r.Reset(f)
			}
		}

		if watcher != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-watcher.Events:
			case <-watcher.Errors:
			case <-ticker.C:
			}
		} else {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
}

// drain copies everything currently readable, stopping at EOF.
func drain(r *bufio.Reader, w io.Writer) error {
	for {
		chunk, err := r.ReadBytes('\n')
		if len(chunk) > 0 {
			if _, werr := w.Write(chunk); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
