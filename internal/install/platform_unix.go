//go:build unix

package install

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// unameVersion renders "<sysname> <release>" from uname(2).
func unameVersion() string {
	var name unix.Utsname
	if err := unix.Uname(&name); err != nil {
		return runtime.GOOS
	}

	return unix.ByteSliceToString(name.Sysname[:]) + " " + unix.ByteSliceToString(name.Release[:])
}
