//go:build darwin

package install

import "golang.org/x/sys/unix"

// PlatformVersion returns "macOS <product version>", falling back to the kernel release.
func PlatformVersion() string {
	if product, err := unix.Sysctl("kern.osproductversion"); err == nil && product != "" {
		return "macOS " + product
	}

	return unameVersion()
}
