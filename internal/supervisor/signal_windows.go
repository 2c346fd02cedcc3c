//go:build windows

package supervisor

import (
	"errors"
	"syscall"
)

var errProcessGone = errors.New("process does not exist")

const processTerminate = 0x0001

var (
	kernel32             = syscall.NewLazyDLL("kernel32.dll")
	procTerminateProcess = kernel32.NewProc("TerminateProcess")
)

// signalTerm terminates a Windows process by PID. Windows has no SIGTERM
// equivalent for unrelated processes, so this is as graceful as it gets.
func signalTerm(pid int) error {
	if pid <= 0 {
		return errProcessGone
	}
	h, err := syscall.OpenProcess(processTerminate, false, uint32(pid))
	if err != nil {
		// Cannot open: the process is most likely gone already.
		return errProcessGone
	}
	defer func() { _ = syscall.CloseHandle(h) }()
	ret, _, callErr := procTerminateProcess.Call(uintptr(h), uintptr(1))
	if ret == 0 {
		return callErr
	}
	return nil
}

// isNoSuchProcess reports whether err means the process is already gone.
func isNoSuchProcess(err error) bool {
	return errors.Is(err, errProcessGone)
}
