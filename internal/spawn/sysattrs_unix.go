//go:build !windows

package spawn

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places each role in its own process group so a
// tree kill aimed at one role cannot take its sibling down with it.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
