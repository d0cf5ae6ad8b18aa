package process

import (
	"os/exec"
	"syscall"
)

// detachedProcess is DETACHED_PROCESS from the Win32 process creation flags.
const detachedProcess = 0x00000008

// setDetachedProcAttr runs the child outside the parent's console and process group.
func setDetachedProcAttr(cmd *exec.Cmd) bool {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess,
	}

	return true
}
