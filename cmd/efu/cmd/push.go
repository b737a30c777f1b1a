package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/efota/efu/internal/service/push"
)

// pushCmd sends a local package file to the update server.
var pushCmd = &cobra.Command{
	Use:   "push [package-file]",
	Short: "Send a package to the update server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		options := &push.Options{
			ConfigPath: configPath,
		}

		if len(args) > 0 {
			options.PackagePath = args[0]
		}

		return push.Run(ctx, options)
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(pushCmd)
}
