// Package push implements the workflow sending a local package file to the
// update server.
package push

import (
	"context"
	"fmt"

	"github.com/efota/efu/internal/logger"
	"github.com/efota/efu/internal/option"
	"github.com/efota/efu/internal/service/common"
	"github.com/efota/efu/internal/update"
)

// DefaultPackageFilename is the conventional name for the local package file.
const DefaultPackageFilename = "efu-package.json"

// Options contains inputs for the push entry point.
type Options struct {
	// ConfigPath is an optional path to the server settings (defaults to
	// the per-user file).
	ConfigPath string
	// PackagePath is the local package file to send.
	PackagePath string
}

// Run executes the push workflow: load the package, upload metadata,
// transfer objects, finish the server-side transaction.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "efu-push")

	c, cfg, err := common.LoadClient(opts.ConfigPath)
	if err != nil {
		return err
	}

	path := opts.PackagePath
	if path == "" {
		path = DefaultPackageFilename
	}

	pkg, err := update.FromFile(option.DefaultRegistry(), path, cfg.ChunkSize)
	if err != nil {
		return fmt.Errorf("load package: %w", err)
	}

	logger.InfoKV(ctx, "Pushing package",
		"product", pkg.Product, "version", pkg.Version)

	if err := pkg.Push(ctx, c, common.NewLogReporter(ctx)); err != nil {
		return fmt.Errorf("push failed: %w", err)
	}

	logger.InfoKV(ctx, "Package pushed successfully", "uid", pkg.UID)

	return nil
}
