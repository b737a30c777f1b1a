package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/efota/efu/internal/service/status"
)

// statusCmd queries a pushed package's server-side state.
var statusCmd = &cobra.Command{
	Use:   "status <package-uid>",
	Short: "Query a package's server-side status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cobraCmd *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		options := &status.Options{
			ConfigPath: configPath,
			UID:        args[0],
			Out: func(state string) {
				_, _ = fmt.Fprintln(cobraCmd.OutOrStdout(), state)
			},
		}

		return status.Run(ctx, options)
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(statusCmd)
}
