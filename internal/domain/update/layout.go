package update

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Layout is the resolved set of filesystem locations for the running application.
// It is computed fresh on every update attempt from the process's own location.
type Layout struct {
	// AppBundlePath is the ".app" bundle for macOS bundles, otherwise the executable's directory.
	AppBundlePath string `yaml:"app_bundle_path"`
	// InstallRoot is the destination the staging tree is synchronized onto.
	InstallRoot string `yaml:"install_root"`
	// StagingPath is the staged update tree.
	StagingPath string `yaml:"staging_path"`
	// ExecutablePath is the resolved path of the installed executable.
	ExecutablePath string `yaml:"executable_path"`
	// ProcessName is the name the process table reports for the running application.
	ProcessName string `yaml:"process_name"`
	// IsBundle tells whether the installation is a macOS application bundle.
	IsBundle bool `yaml:"is_bundle"`
}

var (
	// errPathNotAbsolute is returned when a layout or artifact path is relative.
	errPathNotAbsolute = errors.New("path must be absolute")
	// errStagingOutsideInstall is returned when staging does not live inside the install root.
	errStagingOutsideInstall = errors.New("staging path must be inside the install root")
	// errProcessNameEmpty is returned when there is nothing to wait for.
	errProcessNameEmpty = errors.New("process name must be provided")
)

// Validate checks the layout invariants: absolute paths, staging inside the
// install root, and a non-empty process name.
func (l *Layout) Validate() error {
	paths := map[string]string{
		"app bundle":   l.AppBundlePath,
		"install root": l.InstallRoot,
		"staging":      l.StagingPath,
		"executable":   l.ExecutablePath,
	}

	for name, path := range paths {
		if !filepath.IsAbs(path) {
			return fmt.Errorf("%s %q: %w", name, path, errPathNotAbsolute)
		}
	}

	if !IsWithin(l.InstallRoot, l.StagingPath) || filepath.Clean(l.InstallRoot) == filepath.Clean(l.StagingPath) {
		return fmt.Errorf("%q not in %q: %w", l.StagingPath, l.InstallRoot, errStagingOutsideInstall)
	}

	if strings.TrimSpace(l.ProcessName) == "" {
		return errProcessNameEmpty
	}

	return nil
}

// IsWithin reports whether path equals root or lies below it. Both are cleaned
// lexically; symlinks are not evaluated.
func IsWithin(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
