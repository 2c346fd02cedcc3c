//go:build !windows

package supervisor

import (
	"os"
	"os/exec"
	"syscall"
)

// spawnDetached starts path with args in a new session (setsid) so the node
// is detached from the controlling terminal and survives supervisor exit,
// and a broad signal to the supervisor's own group never reaches it.
// stdout and stderr both go to out, interleaved.
func spawnDetached(path string, args []string, out *os.File) (int, error) {
	// #nosec G204 -- binary and args come from validated config
	cmd := exec.Command(path, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// Reap the child if it exits while this supervisor is still around.
	// When the supervisor exits first the node is re-parented, which is the
	// intended detached behavior, not a leak.
	go func() { _ = cmd.Wait() }()
	return pid, nil
}
