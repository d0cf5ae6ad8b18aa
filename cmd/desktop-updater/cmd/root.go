package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/desktop-updater/internal/config"
	"github.com/oshokin/desktop-updater/internal/logger"
	"github.com/oshokin/desktop-updater/internal/version"
)

var (
	// configPath to the configuration YAML file; empty means built-in defaults.
	configPath string
	// logLevel overrides the configured log level when set.
	logLevel string

	// rootCmd represents the base command for the desktop updater.
	rootCmd = &cobra.Command{
		Use:   "desktop-updater",
		Short: "Apply a staged application update and relaunch the application.",
		Long: `Synchronizes a staged update tree onto the installed application and relaunches it.

The running application triggers the update through the control API or the trigger
command. A detached helper waits until the application has exited, copies the staged
files over the installation, removes staging, starts the application again and
deletes itself. Every step is written to the diagnostic trace in the temp directory.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if logLevel == "" {
				return nil
			}

			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errUnknownLogLevel, logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}
)

// Execute runs the desktop-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext cancels on SIGTERM or SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// loadSettings reads the configuration and applies the log level override to it,
// so the level reaches the helper through the handoff.
func loadSettings() (*config.Config, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if logLevel != "" {
		settings.LogLevel = logLevel
	} else if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	}

	return settings, nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error)")
}
