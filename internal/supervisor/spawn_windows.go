//go:build windows

package supervisor

import (
	"os"
	"os/exec"
	"syscall"
)

// Windows creation flags
const (
	createNewProcessGroup = 0x00000200
	detachedProcess       = 0x00000008
)

// spawnDetached starts path with args detached from the parent console so
// the node survives supervisor exit. stdout and stderr both go to out.
func spawnDetached(path string, args []string, out *os.File) (int, error) {
	// #nosec G204 -- binary and args come from validated config
	cmd := exec.Command(path, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: createNewProcessGroup | detachedProcess,
	}
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	go func() { _ = cmd.Wait() }()
	return pid, nil
}
