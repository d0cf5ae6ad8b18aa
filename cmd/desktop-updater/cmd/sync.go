package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/desktop-updater/internal/treesync"
)

// dryRun prints the plan without touching the destination.
var dryRun bool

// syncCmd exposes the tree synchronizer on its own.
var syncCmd = &cobra.Command{
	Use:   "sync [source] [destination]",
	Short: "Merge a source tree onto a destination tree.",
	Long: `Creates missing directories and replaces files one by one with an atomic rename.
Destination entries that are not in the source are left alone.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		out := cmd.OutOrStdout()

		if dryRun {
			plan, err := treesync.Plan(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			for _, entry := range plan.Entries {
				if _, err = fmt.Fprintf(out, "%-9s %s\n", entry.Kind, entry.DestPath); err != nil {
					return err
				}
			}

			return nil
		}

		report, err := treesync.Sync(ctx, args[0], args[1])
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(out, "directories created: %d, files copied: %d, files replaced: %d, symlinks: %d\n",
			report.DirectoriesCreated, report.FilesCopied, report.FilesReplaced, report.SymlinksCreated)

		return err
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	syncCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print the plan without applying it")

	rootCmd.AddCommand(syncCmd)
}
