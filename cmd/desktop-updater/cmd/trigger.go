package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/desktop-updater/internal/install"
	"github.com/oshokin/desktop-updater/internal/service/relaunch"
)

// triggerCmd runs the relaunch protocol for the installation of this binary.
var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Hand the staged update to a detached helper and exit.",
	Long: `Writes the helper handoff (or the shell script), launches it detached and exits.
The helper waits for this process to exit before copying anything. On failure nothing
is touched and the command exits with a non-zero status.

The helper waits on the executable name, which is "desktop-updater" when this CLI is not
the application binary itself. A concurrent "desktop-updater serve" or "status --wait"
carries the same name and keeps the helper waiting; set process_name in the configuration
to the application's process name in that setup.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		settings, err := loadSettings()
		if err != nil {
			return err
		}

		layout, err := install.Current(settings)
		if err != nil {
			return fmt.Errorf("resolve layout: %w", err)
		}

		orchestrator, err := relaunch.New(settings, layout)
		if err != nil {
			return err
		}

		return orchestrator.Trigger(ctx)
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(triggerCmd)
}
