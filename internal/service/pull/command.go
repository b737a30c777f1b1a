// Package pull implements the workflow fetching a published package from
// the update server into the working directory.
package pull

import (
	"context"
	"errors"
	"fmt"

	"github.com/efota/efu/internal/logger"
	"github.com/efota/efu/internal/option"
	"github.com/efota/efu/internal/service/common"
	"github.com/efota/efu/internal/service/push"
	"github.com/efota/efu/internal/update"
)

// Options contains inputs for the pull entry point.
type Options struct {
	// ConfigPath is an optional path to the server settings.
	ConfigPath string
	// UID is the server identity of the package to fetch.
	UID string
	// OutputPath is where to write the reconstructed package file.
	OutputPath string
	// MetadataOnly skips the object payload downloads.
	MetadataOnly bool
}

// errUIDRequired is returned when no package identity was provided.
var errUIDRequired = errors.New("package UID must be provided")

// Run executes the pull workflow: fetch metadata, rebuild the package,
// download the payloads unless asked not to, and dump the package file.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "efu-pull")

	if opts.UID == "" {
		return errUIDRequired
	}

	c, cfg, err := common.LoadClient(opts.ConfigPath)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Pulling package", "uid", opts.UID)

	pkg, err := update.Pull(ctx, c, option.DefaultRegistry(), opts.UID, cfg.ChunkSize, !opts.MetadataOnly)
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	path := opts.OutputPath
	if path == "" {
		path = push.DefaultPackageFilename
	}

	if err := pkg.Dump(path); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Package pulled successfully",
		"product", pkg.Product, "version", pkg.Version, "path", path)

	return nil
}
