package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/efota/efu/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for building and transferring
	// update packages.
	rootCmd = &cobra.Command{
		Use:   "efu",
		Short: "Build and transfer firmware update packages",
	}
)

// Execute runs the efu CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
}
