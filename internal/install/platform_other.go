//go:build !unix

package install

import "runtime"

// PlatformVersion returns the operating system name where uname(2) is unavailable.
func PlatformVersion() string {
	return runtime.GOOS
}
