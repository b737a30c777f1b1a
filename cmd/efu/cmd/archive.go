package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/efota/efu/internal/service/export"
)

var (
	// archiveOutput overrides the conventional archive name.
	archiveOutput string
	// archiveForce replaces an existing archive.
	archiveForce bool

	// archiveCmd exports a local package into a self-contained tarball.
	archiveCmd = &cobra.Command{
		Use:   "archive [package-file]",
		Short: "Export a package as a self-contained archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &export.Options{
				OutputPath: archiveOutput,
				Force:      archiveForce,
			}

			if len(args) > 0 {
				options.PackagePath = args[0]
			}

			return export.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	archiveCmd.Flags().StringVarP(&archiveOutput, "output", "o", "", "path to write the archive")
	archiveCmd.Flags().BoolVar(&archiveForce, "force", false, "replace an existing archive")

	rootCmd.AddCommand(archiveCmd)
}
