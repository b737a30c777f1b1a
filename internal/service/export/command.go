// Package export implements the workflow archiving a local package into a
// self-contained tarball.
package export

import (
	"context"
	"fmt"

	"github.com/efota/efu/internal/archive"
	"github.com/efota/efu/internal/logger"
	"github.com/efota/efu/internal/object"
	"github.com/efota/efu/internal/option"
	"github.com/efota/efu/internal/service/common"
	"github.com/efota/efu/internal/service/push"
	"github.com/efota/efu/internal/update"
)

// Options contains inputs for the archive entry point.
type Options struct {
	// PackagePath is the local package file to archive.
	PackagePath string
	// OutputPath overrides the conventional archive name.
	OutputPath string
	// Force replaces an existing archive.
	Force bool
}

// Run executes the archive workflow: load the package, compute its
// metadata and write the tarball.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "efu-archive")

	path := opts.PackagePath
	if path == "" {
		path = push.DefaultPackageFilename
	}

	pkg, err := update.FromFile(option.DefaultRegistry(), path, object.DefaultChunkSize)
	if err != nil {
		return fmt.Errorf("load package: %w", err)
	}

	out := opts.OutputPath
	if out == "" {
		out = archive.DefaultName(pkg)
	}

	logger.InfoKV(ctx, "Archiving package",
		"product", pkg.Product, "version", pkg.Version, "path", out)

	if err := archive.Write(ctx, pkg, out, opts.Force, common.NewLogReporter(ctx)); err != nil {
		return fmt.Errorf("archive failed: %w", err)
	}

	logger.InfoKV(ctx, "Package archived successfully", "path", out)

	return nil
}
