package update

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Command is the serializable handoff the host gives to the detached helper.
// After the host exits it is the only description of what remains to be done.
type Command struct {
	// AttemptID correlates the command, trace lines and result record.
	AttemptID string `yaml:"attempt_id"`
	// CreatedAt is when the host produced the command.
	CreatedAt time.Time `yaml:"created_at"`
	// HostPID is the process that must be gone before files are touched.
	HostPID int `yaml:"host_pid"`
	// Layout is the installation the helper operates on.
	Layout Layout `yaml:"layout"`
	// FromVersion is the installed version at trigger time.
	FromVersion string `yaml:"from_version"`
	// PollInterval is the sleep between process table scans.
	PollInterval time.Duration `yaml:"poll_interval"`
	// Relaunch is the argv used to start the application after the swap.
	Relaunch []string `yaml:"relaunch"`
	// LogFile is the diagnostic trace path.
	LogFile string `yaml:"log_file"`
	// ResultFile is where the helper records the outcome.
	ResultFile string `yaml:"result_file"`
	// HelperPath is the installed helper binary, deleted when the helper finishes.
	HelperPath string `yaml:"helper_path"`
}

var (
	// errAttemptIDRequired is returned when the command is not correlated.
	errAttemptIDRequired = errors.New("attempt id must be provided")
	// errRelaunchRequired is returned when the command has no relaunch argv.
	errRelaunchRequired = errors.New("relaunch command must be provided")
)

// Validate checks that the command can be executed without the host's help.
func (c *Command) Validate() error {
	if c.AttemptID == "" {
		return errAttemptIDRequired
	}

	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}

	if len(c.Relaunch) == 0 || c.Relaunch[0] == "" {
		return errRelaunchRequired
	}

	for _, path := range []string{c.LogFile, c.ResultFile, c.HelperPath} {
		if path != "" && !filepath.IsAbs(path) {
			return fmt.Errorf("%q: %w", path, errPathNotAbsolute)
		}
	}

	return nil
}

// MarshalCommand validates and encodes the command as YAML.
func MarshalCommand(c *Command) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}

	return data, nil
}

// ParseCommand decodes and validates a YAML command.
func ParseCommand(data []byte) (*Command, error) {
	var c Command
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}
