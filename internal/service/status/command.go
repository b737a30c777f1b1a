// Package status implements the workflow querying where a pushed package
// stands in its server-side lifecycle.
package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/efota/efu/internal/logger"
	"github.com/efota/efu/internal/service/common"
)

// Options contains inputs for the status entry point.
type Options struct {
	// ConfigPath is an optional path to the server settings.
	ConfigPath string
	// UID is the server identity of the package to query.
	UID string
	// Out receives the status line; when nil the status is only logged.
	Out func(string)
}

// errUIDRequired is returned when no package identity was provided.
var errUIDRequired = errors.New("package UID must be provided")

// Run executes the status query.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "efu-status")

	if opts.UID == "" {
		return errUIDRequired
	}

	c, _, err := common.LoadClient(opts.ConfigPath)
	if err != nil {
		return err
	}

	state, err := c.GetStatus(ctx, opts.UID)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	logger.InfoKV(ctx, "Package status", "uid", opts.UID, "status", state)

	if opts.Out != nil {
		opts.Out(state)
	}

	return nil
}
