//go:build windows

package terminator

import (
	"errors"
	"syscall"
)

var (
	kernel32             = syscall.NewLazyDLL("kernel32.dll")
	procOpenProcess      = kernel32.NewProc("OpenProcess")
	procTerminateProcess = kernel32.NewProc("TerminateProcess")
	procCloseHandle      = kernel32.NewProc("CloseHandle")
)

const (
	PROCESS_TERMINATE         = 0x0001
	PROCESS_QUERY_INFORMATION = 0x0400
)

// killProcess terminates a Windows process by PID. Tree termination goes
// through taskkill; this path exists for the fallback single-process kill
// and for signal-0 existence checks.
func killProcess(pid int, signal syscall.Signal) error {
	if pid == 0 {
		return nil
	}
	// Negative pid means "process group" on Unix; on Windows just use the
	// absolute value.
	actualPid := pid
	if pid < 0 {
		actualPid = -pid
	}

	if signal == 0 {
		return checkProcessExists(actualPid)
	}

	handle, err := openProcess(PROCESS_TERMINATE, false, uint32(actualPid))
	if err != nil {
		// Unable to open usually means the process is already gone, which
		// is common during rapid termination. Count it as success.
		return nil
	}
	defer func() { _ = closeHandle(handle) }()

	ret, _, callErr := procTerminateProcess.Call(uintptr(handle), uintptr(1))
	if ret == 0 {
		return callErr
	}
	return nil
}

// PidAlive reports whether a process with the given pid exists.
func PidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return checkProcessExists(pid) == nil
}

func isGone(err error) bool {
	return errors.Is(err, syscall.ESRCH)
}

func checkProcessExists(pid int) error {
	handle, err := openProcess(PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return err
	}
	defer func() { _ = closeHandle(handle) }()
	return nil
}

func openProcess(access uint32, inheritHandle bool, processID uint32) (syscall.Handle, error) {
	inherit := 0
	if inheritHandle {
		inherit = 1
	}
	ret, _, err := procOpenProcess.Call(
		uintptr(access),
		uintptr(inherit),
		uintptr(processID),
	)
	if ret == 0 {
		return 0, err
	}
	return syscall.Handle(ret), nil
}

func closeHandle(handle syscall.Handle) error {
	ret, _, err := procCloseHandle.Call(uintptr(handle))
	if ret == 0 {
		return err
	}
	return nil
}
