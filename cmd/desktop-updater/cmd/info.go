package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/desktop-updater/internal/install"
)

var (
	// currentVersionCmd prints the installed application's version.
	currentVersionCmd = &cobra.Command{
		Use:   "current-version",
		Short: "Print the installed application's version.",
		Long: `Prints the bundle version of the application this binary belongs to.
Outside a bundle, or when the bundle does not declare one, the build version is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			layout, err := install.Current(settings)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), install.CurrentVersion(layout))

			return err
		},
	}

	// executablePathCmd prints the resolved executable path.
	executablePathCmd = &cobra.Command{
		Use:   "executable-path",
		Short: "Print the resolved path of the running executable.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			layout, err := install.Current(settings)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), layout.ExecutablePath)

			return err
		},
	}

	// platformVersionCmd prints "<OS name> <release>".
	platformVersionCmd = &cobra.Command{
		Use:   "platform-version",
		Short: "Print the operating system name and release.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), install.PlatformVersion())
			return err
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(currentVersionCmd, executablePathCmd, platformVersionCmd)
}
