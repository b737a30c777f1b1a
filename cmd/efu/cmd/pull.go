package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/efota/efu/internal/service/pull"
)

var (
	// pullOutput overrides the package file destination.
	pullOutput string
	// pullMetadataOnly skips the object payload downloads.
	pullMetadataOnly bool

	// pullCmd fetches a published package from the update server.
	pullCmd = &cobra.Command{
		Use:   "pull <package-uid>",
		Short: "Fetch a package from the update server",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &pull.Options{
				ConfigPath:   configPath,
				UID:          args[0],
				OutputPath:   pullOutput,
				MetadataOnly: pullMetadataOnly,
			}

			return pull.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	pullCmd.Flags().StringVarP(&pullOutput, "output", "o", "", "path to write the package file")
	pullCmd.Flags().BoolVar(&pullMetadataOnly, "metadata-only", false, "fetch metadata without object payloads")

	rootCmd.AddCommand(pullCmd)
}
