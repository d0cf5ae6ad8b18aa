package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/desktop-updater/internal/service/helper"
)

// commandPath is the serialized handoff consumed by apply.
var commandPath string

// applyCmd is the helper entry point launched by trigger.
var applyCmd = &cobra.Command{
	Use:    "apply",
	Short:  "Finish an update after the application has exited (helper mode).",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		return helper.Run(ctx, &helper.Options{CommandPath: commandPath})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	applyCmd.Flags().StringVar(&commandPath, "command", "", "path to the serialized update command")
	_ = applyCmd.MarkFlagRequired("command")

	rootCmd.AddCommand(applyCmd)
}
