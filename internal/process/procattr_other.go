//go:build !unix && !windows

package process

import "os/exec"

func setDetachedProcAttr(_ *exec.Cmd) bool {
	return false
}
