//go:build unix && !darwin

package install

// PlatformVersion returns "<OS name> <release>" as reported by uname(2).
func PlatformVersion() string {
	return unameVersion()
}
