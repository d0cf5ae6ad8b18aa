package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/desktop-updater/internal/service/server"
)

// serveCmd runs the control API for the installation of this binary.
var serveCmd = &cobra.Command{
	Use:   "serve [listen-address]",
	Short: "Serve the control API until an update is triggered.",
	Long: `Starts the loopback gRPC control server. A successful TriggerUpdateAndRelaunch
stops the server and exits so the helper can replace the installation.
The listen address argument overrides control_addr from the configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		// Resolve the log level before the server loads its own copy of the settings.
		if _, err := loadSettings(); err != nil {
			return err
		}

		var listenAddress string
		if len(args) > 0 {
			listenAddress = args[0]
		}

		return server.Run(ctx, &server.Options{
			ConfigPath:    configPath,
			ListenAddress: listenAddress,
			LogLevel:      logLevel,
		})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(serveCmd)
}
