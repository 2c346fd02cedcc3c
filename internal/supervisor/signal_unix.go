//go:build !windows

package supervisor

import (
	"errors"
	"syscall"
)

// signalTerm sends a graceful termination signal to pid.
func signalTerm(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}

// isNoSuchProcess reports whether err means the process is already gone.
func isNoSuchProcess(err error) bool {
	return errors.Is(err, syscall.ESRCH)
}
