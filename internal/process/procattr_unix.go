//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// setDetachedProcAttr runs the child in a new session without a controlling
// terminal so it survives the parent's exit.
func setDetachedProcAttr(cmd *exec.Cmd) bool {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	return true
}
