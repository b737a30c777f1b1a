package update

import (
	"context"
	"fmt"

	"github.com/efota/efu/internal/client"
	"github.com/efota/efu/internal/object"
	"github.com/efota/efu/internal/option"
)

// ConflictError means a pull would overwrite a local file whose content
// differs from the object about to be downloaded.
type ConflictError struct {
	Filename string
}

// Error implements error.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s would be overwritten", e.Filename)
}

// downloadList splits the first installation set into the objects that
// actually need downloading: files already present with matching content
// are skipped, files present with diverging content abort the pull before
// any byte is written.
func (p *Package) downloadList() ([]*object.Object, error) {
	var out []*object.Object

	for _, obj := range p.Objects.FirstSet() {
		if !obj.Exists() {
			out = append(out, obj)
			continue
		}

		local, err := obj.LocalDigest()
		if err != nil {
			return nil, fmt.Errorf("inspect %s: %w", obj.Filename(), err)
		}

		if local != obj.SHA256() {
			return nil, &ConflictError{Filename: obj.Filename()}
		}
	}

	return out, nil
}

// DownloadObjects fetches the payloads missing locally. The conflict
// check runs over the whole set first, so a divergent file is reported
// before anything touches the disk.
func (p *Package) DownloadObjects(ctx context.Context, c *client.Client) error {
	list, err := p.downloadList()
	if err != nil {
		return err
	}

	for _, obj := range list {
		if err := c.DownloadObject(ctx, p.UID, obj); err != nil {
			return err
		}
	}

	return nil
}

// Pull fetches a package by UID: metadata first, then the payloads if
// asked for. The reconstructed package carries the server's UID.
func Pull(ctx context.Context, c *client.Client, registry *option.Registry, uid string, chunkSize int64, fetchObjects bool) (*Package, error) {
	metadata, err := c.DownloadMetadata(ctx, uid)
	if err != nil {
		return nil, err
	}

	pkg, err := FromMetadata(registry, metadata, chunkSize)
	if err != nil {
		return nil, fmt.Errorf("rebuild package %s: %w", uid, err)
	}

	pkg.UID = uid

	if fetchObjects {
		if err := pkg.DownloadObjects(ctx, c); err != nil {
			return nil, err
		}
	}

	return pkg, nil
}
