//go:build !windows

package terminator

import (
	"errors"
	"syscall"
)

// killProcess sends a signal to a Unix process. Negative pid targets the
// process group.
func killProcess(pid int, signal syscall.Signal) error {
	return syscall.Kill(pid, signal)
}

// PidAlive returns true if a process with the given pid exists (or EPERM,
// which still means something is there).
func PidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

func isGone(err error) bool {
	return errors.Is(err, syscall.ESRCH)
}
