package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/desktop-updater/internal/domain/update"
	"github.com/oshokin/desktop-updater/internal/repository/result"
)

var (
	// waitForResult blocks until a result record appears.
	waitForResult bool
	// attemptID restricts status to a specific attempt.
	attemptID string
	// waitTimeout bounds --wait; zero waits until interrupted.
	waitTimeout time.Duration
)

// statusCmd prints the result record of the last update attempt.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the outcome of the last update attempt.",
	Long: `Reads the result record the helper writes when it finishes.
With --wait the command blocks until the record appears, which is useful right after trigger.
Exits with a non-zero status when the recorded attempt failed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		settings, err := loadSettings()
		if err != nil {
			return err
		}

		repo := result.NewFileRepository(settings.ResultPath())

		var res *update.Result

		if waitForResult {
			if waitTimeout > 0 {
				var cancel context.CancelFunc

				ctx, cancel = context.WithTimeout(ctx, waitTimeout)
				defer cancel()
			}

			res, err = repo.Watch(ctx, attemptID)
		} else {
			res, err = repo.Load(ctx)
		}

		if err != nil {
			return err
		}

		data, err := yaml.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}

		if _, err = cmd.OutOrStdout().Write(data); err != nil {
			return err
		}

		if !res.Success {
			return fmt.Errorf("%w: %s at stage %s", errUpdateNotSuccessful, res.ErrorKind, res.Stage)
		}

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	statusCmd.Flags().BoolVarP(&waitForResult, "wait", "w", false, "wait until a result is recorded")
	statusCmd.Flags().StringVar(&attemptID, "attempt", "", "only accept the result of this attempt")
	statusCmd.Flags().DurationVar(&waitTimeout, "timeout", 0, "give up waiting after this duration")

	rootCmd.AddCommand(statusCmd)
}
