package update

import (
	"context"
	"errors"
	"fmt"

	"github.com/efota/efu/internal/client"
	"github.com/efota/efu/internal/progress"
)

// ErrUploadIncomplete means at least one object transfer failed, so the
// package must not be finished.
var ErrUploadIncomplete = errors.New("some objects have not been fully uploaded")

// UploadMetadata computes and validates the package metadata, posts it,
// and records the server-issued UID on the package.
func (p *Package) UploadMetadata(ctx context.Context, c *client.Client, reporter progress.Reporter) error {
	metadata, err := p.Metadata(ctx, reporter)
	if err != nil {
		return err
	}

	if err := ValidateMetadata(metadata); err != nil {
		return fmt.Errorf("invalid package: %w", err)
	}

	uid, err := c.UploadMetadata(ctx, metadata)
	if err != nil {
		return err
	}

	p.UID = uid

	return nil
}

// UploadObjects transfers the payloads of the first installation set. The
// active and inactive sets reference the same content, so one pass covers
// both. A failed transfer does not abort the remaining objects; the
// aggregate failure is reported at the end so a retry only re-sends what
// is missing.
func (p *Package) UploadObjects(ctx context.Context, c *client.Client, reporter progress.Reporter) error {
	failed := false

	for _, obj := range p.Objects.FirstSet() {
		reporter.ObjectUploadStarted(obj.Filename())

		result, err := c.UploadObject(ctx, p.UID, obj, reporter)
		if err != nil {
			return err
		}

		reporter.ObjectUploadFinished(obj.Filename(), string(result))

		if result == client.UploadFailed {
			failed = true
		}
	}

	if failed {
		return ErrUploadIncomplete
	}

	return nil
}

// FinishPush closes the server-side transaction. Only valid after every
// object reported success or exists.
func (p *Package) FinishPush(ctx context.Context, c *client.Client, reporter progress.Reporter) error {
	if err := c.FinishPush(ctx, p.UID); err != nil {
		return err
	}

	reporter.PushFinished(p.UID)

	return nil
}

// Push runs the full upload sequence: metadata, then objects, then the
// finishing call. Each phase gates the next.
func (p *Package) Push(ctx context.Context, c *client.Client, reporter progress.Reporter) error {
	if err := p.UploadMetadata(ctx, c, reporter); err != nil {
		return err
	}

	reporter.PushStarted(p.UID)

	if err := p.UploadObjects(ctx, c, reporter); err != nil {
		return err
	}

	return p.FinishPush(ctx, c, reporter)
}

// GetStatus asks the server where the package stands in its lifecycle.
func (p *Package) GetStatus(ctx context.Context, c *client.Client) (string, error) {
	if p.UID == "" {
		return "", errors.New("package has no UID")
	}

	return c.GetStatus(ctx, p.UID)
}
