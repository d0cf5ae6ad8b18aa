package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StagingMode selects where the staged update tree and the destination live.
type StagingMode string

const (
	// StagingBundle places staging under the installation's resource area and
	// synchronizes onto the installation root derived from the executable.
	StagingBundle StagingMode = "bundle"
	// StagingWorkingDir uses <cwd>/<staging_dir> onto <cwd>.
	StagingWorkingDir StagingMode = "working_dir"
)

// ScriptMode selects how the out-of-process relaunch step is expressed.
type ScriptMode string

const (
	// ScriptHelper hands a serialized command to a detached copy of this binary.
	ScriptHelper ScriptMode = "helper"
	// ScriptShell renders a strictly escaped bash script.
	ScriptShell ScriptMode = "shell"
)

// Config holds the relaunch policy shared by the orchestrator, the helper and the CLI.
type Config struct {
	// StagingMode picks the staging/destination policy.
	StagingMode StagingMode `yaml:"staging_mode"`
	// StagingDir is the staging subpath relative to the resource area (or cwd).
	StagingDir string `yaml:"staging_dir"`
	// ScriptMode picks helper handoff or shell script.
	ScriptMode ScriptMode `yaml:"script_mode"`
	// VisibleTerminal launches the shell script in Terminal.app for debugging.
	VisibleTerminal bool `yaml:"visible_terminal"`
	// TempDir overrides the system temporary directory for script, command and result files.
	TempDir string `yaml:"temp_dir"`
	// LogFile is the diagnostic trace written by the helper.
	LogFile string `yaml:"log_file"`
	// PollInterval is the sleep between process table scans while waiting for exit.
	PollInterval time.Duration `yaml:"poll_interval"`
	// ProcessName overrides the process name to wait for; defaults to the executable name.
	// Set it when the updater binary is not the application, since every running copy
	// of the updater carries the same name.
	ProcessName string `yaml:"process_name"`
	// ControlAddress is the loopback address of the gRPC control server.
	ControlAddress string `yaml:"control_addr"`
	// Timeout bounds control RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum level for console and trace output.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultStagingDir mirrors the "update" folder the download side produces.
	DefaultStagingDir = "update"

	// DefaultPollInterval is the wait-for-exit polling period.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultControlAddress binds the control server to loopback only.
	DefaultControlAddress = "127.0.0.1:50515"

	// DefaultTimeout is the default duration for control RPC calls.
	DefaultTimeout = 5 * time.Second

	// DefaultLogLevel is used when the config leaves the level empty.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// ScriptFilename is the fixed name of the relaunch script inside TempDir.
	ScriptFilename = "desktop_update.sh"
	// HelperFilename is the fixed name of the installed helper binary inside TempDir.
	HelperFilename = "desktop_update_helper"
	// CommandFilename is the fixed name of the serialized handoff inside TempDir.
	CommandFilename = "desktop_update_command.yaml"
	// ResultFilename is the fixed name of the last attempt's result record inside TempDir.
	ResultFilename = "desktop_updater_result.yaml"
	// LogFilename is the fixed name of the diagnostic trace inside TempDir.
	LogFilename = "desktop_updater_log.txt"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownStagingMode is returned for unsupported staging policies.
	errUnknownStagingMode = errors.New("unknown staging mode")
	// errUnknownScriptMode is returned for unsupported script policies.
	errUnknownScriptMode = errors.New("unknown script mode")
	// errStagingDirInvalid is returned when staging_dir escapes its base directory.
	errStagingDirInvalid = errors.New("staging dir must be a relative path inside the installation")
	// errUnknownLogLevel is returned when log_level cannot be parsed.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Default returns a configuration populated with built-in values.
func Default() *Config {
	cfg := new(Config)
	_ = Validate(cfg) // Defaults always validate.

	return cfg
}

// Load reads configuration from the provided path and validates it.
// An empty path yields Default; an explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and rejects unsupported values.
//
//nolint:cyclop // Flat list of independent field checks.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	switch settings.StagingMode {
	case "":
		settings.StagingMode = StagingBundle
	case StagingBundle, StagingWorkingDir:
	default:
		return fmt.Errorf("%w: %q", errUnknownStagingMode, settings.StagingMode)
	}

	switch settings.ScriptMode {
	case "":
		settings.ScriptMode = ScriptHelper
	case ScriptHelper, ScriptShell:
	default:
		return fmt.Errorf("%w: %q", errUnknownScriptMode, settings.ScriptMode)
	}

	if settings.StagingDir == "" {
		settings.StagingDir = DefaultStagingDir
	}

	clean := filepath.Clean(settings.StagingDir)
	if filepath.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %q", errStagingDirInvalid, settings.StagingDir)
	}

	settings.StagingDir = clean

	if settings.TempDir == "" {
		settings.TempDir = os.TempDir()
	}

	// Every artifact path ends up in the relaunch script or helper argv, which
	// run with an unrelated working directory.
	tempDir, err := filepath.Abs(settings.TempDir)
	if err != nil {
		return fmt.Errorf("resolve temp dir %q: %w", settings.TempDir, err)
	}

	settings.TempDir = tempDir

	if settings.LogFile == "" {
		settings.LogFile = filepath.Join(settings.TempDir, LogFilename)
	}

	logFile, err := filepath.Abs(settings.LogFile)
	if err != nil {
		return fmt.Errorf("resolve log file %q: %w", settings.LogFile, err)
	}

	settings.LogFile = logFile

	if settings.PollInterval <= 0 {
		settings.PollInterval = DefaultPollInterval
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.ControlAddress == "" {
		settings.ControlAddress = DefaultControlAddress
	}

	if _, _, err = net.SplitHostPort(settings.ControlAddress); err != nil {
		return fmt.Errorf("invalid control address: %w", err)
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if !isKnownLevel(settings.LogLevel) {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, settings.LogLevel)
	}

	return nil
}

// ScriptPath is the fixed location of the relaunch script.
func (c *Config) ScriptPath() string {
	return filepath.Join(c.TempDir, ScriptFilename)
}

// HelperPath is the fixed location of the installed helper binary.
func (c *Config) HelperPath() string {
	return filepath.Join(c.TempDir, HelperFilename)
}

// CommandPath is the fixed location of the serialized handoff.
func (c *Config) CommandPath() string {
	return filepath.Join(c.TempDir, CommandFilename)
}

// ResultPath is the fixed location of the last attempt's result record.
func (c *Config) ResultPath() string {
	return filepath.Join(c.TempDir, ResultFilename)
}

// isKnownLevel mirrors logger.ParseLogLevel without importing it to keep config leaf-level.
func isKnownLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "warn", "warning", "error", "dpanic", "panic", "fatal":
		return true
	default:
		return false
	}
}
