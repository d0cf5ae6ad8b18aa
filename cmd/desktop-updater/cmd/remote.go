package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/desktop-updater/internal/service/common"
)

// remoteAddress overrides control_addr for remote commands.
var remoteAddress string

// remoteCmd groups calls to a running application's control API.
var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Call the control API of a running application.",
}

// withClient dials the control server and runs fn with a signal-aware context.
func withClient(fn func(ctx context.Context, client *common.Client) error) error {
	ctx, stop := signalContext()
	defer stop()

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	address := settings.ControlAddress
	if remoteAddress != "" {
		address = remoteAddress
	}

	client, err := common.Dial(ctx, address, common.WithCallTimeout(settings.Timeout))
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	return fn(ctx, client)
}

// remoteQuery builds a subcommand that prints a single string reply.
func remoteQuery(use, short string, call func(*common.Client, context.Context) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(func(ctx context.Context, client *common.Client) error {
				value, err := call(client, ctx)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), value)

				return err
			})
		},
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	remoteCmd.PersistentFlags().StringVarP(&remoteAddress, "address", "a", "", "control server address (defaults to control_addr)")

	remoteCmd.AddCommand(
		remoteQuery("current-version", "Print the running application's version.", (*common.Client).CurrentVersion),
		remoteQuery("executable-path", "Print the running application's executable path.", (*common.Client).ExecutablePath),
		remoteQuery("platform-version", "Print the running application's platform.", (*common.Client).PlatformVersion),
		&cobra.Command{
			Use:   "trigger",
			Short: "Ask the running application to update and relaunch.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withClient(func(ctx context.Context, client *common.Client) error {
					if err := client.TriggerUpdateAndRelaunch(ctx); err != nil {
						return err
					}

					_, err := fmt.Fprintln(cmd.OutOrStdout(), "update handed to helper, application is exiting")

					return err
				})
			},
		},
	)

	rootCmd.AddCommand(remoteCmd)
}
