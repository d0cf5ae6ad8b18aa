// Package install resolves where the running application lives on disk.
//
// The layout is derived from the process's own executable, never from a
// caller-supplied path, and is computed once per update attempt. The package
// also reads the installed version from bundle metadata and reports the
// platform version shown to the host UI.
package install
