package install

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/oshokin/desktop-updater/internal/config"
	"github.com/oshokin/desktop-updater/internal/domain/update"
)

const (
	// bundleMarker separates the .app bundle from its contents in an executable path.
	bundleMarker = ".app" + string(filepath.Separator) + "Contents" + string(filepath.Separator)
	// contentsDir is the bundle's installation root.
	contentsDir = "Contents"
	// resourcesDir is the bundle's resource area holding the staging tree.
	resourcesDir = "Resources"
	// openCommand relaunches bundles through LaunchServices.
	openCommand = "/usr/bin/open"
)

var errExecutableNotAbsolute = errors.New("executable path must be absolute")

// Current resolves the layout of the running process from its own executable
// and working directory. Symlinks in the executable path are evaluated.
func Current(cfg *config.Config) (*update.Layout, error) {
	executable, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}

	if resolved, evalErr := filepath.EvalSymlinks(executable); evalErr == nil {
		executable = resolved
	}

	workingDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}

	return Resolve(executable, workingDir, cfg)
}

// Resolve computes the layout for the executable at executablePath.
//
// In bundle mode an executable inside "<name>.app/Contents/" synchronizes onto
// Contents with staging under Contents/Resources/<staging_dir>; a flat
// installation uses the executable's directory for all three. In working_dir
// mode staging is <workingDir>/<staging_dir> onto workingDir.
func Resolve(executablePath, workingDir string, cfg *config.Config) (*update.Layout, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	if !filepath.IsAbs(executablePath) {
		return nil, fmt.Errorf("%q: %w", executablePath, errExecutableNotAbsolute)
	}

	executablePath = filepath.Clean(executablePath)

	layout := &update.Layout{
		ExecutablePath: executablePath,
		ProcessName:    cfg.ProcessName,
	}

	if layout.ProcessName == "" {
		layout.ProcessName = filepath.Base(executablePath)
	}

	bundle, isBundle := bundlePath(executablePath)

	switch {
	case cfg.StagingMode == config.StagingWorkingDir:
		root := filepath.Clean(workingDir)
		layout.AppBundlePath = root
		layout.InstallRoot = root
		layout.StagingPath = filepath.Join(root, cfg.StagingDir)
		layout.IsBundle = isBundle

		if isBundle {
			layout.AppBundlePath = bundle
		}
	case isBundle:
		layout.AppBundlePath = bundle
		layout.InstallRoot = filepath.Join(bundle, contentsDir)
		layout.StagingPath = filepath.Join(bundle, contentsDir, resourcesDir, cfg.StagingDir)
		layout.IsBundle = true
	default:
		root := filepath.Dir(executablePath)
		layout.AppBundlePath = root
		layout.InstallRoot = root
		layout.StagingPath = filepath.Join(root, cfg.StagingDir)
	}

	if err := layout.Validate(); err != nil {
		return nil, err
	}

	return layout, nil
}

// RelaunchCommand returns the argv that starts the application again.
// macOS bundles are reopened through open(1), everything else by executable path.
func RelaunchCommand(layout *update.Layout) []string {
	if layout.IsBundle && runtime.GOOS == "darwin" {
		return []string{openCommand, layout.AppBundlePath}
	}

	return []string{layout.ExecutablePath}
}

// bundlePath returns the ".app" directory enclosing executablePath.
func bundlePath(executablePath string) (string, bool) {
	idx := strings.LastIndex(executablePath, bundleMarker)
	if idx <= 0 {
		return "", false
	}

	return executablePath[:idx+len(".app")], true
}
