// Package archive exports a loaded package as a single gzip-compressed
// tarball carrying the metadata document plus every payload, stored under
// its content digest so identical payloads are archived once.
package archive

import (
	"archive/tar"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/efota/efu/internal/object"
	"github.com/efota/efu/internal/progress"
	"github.com/efota/efu/internal/update"
)

// MetadataMember is the archive member holding the metadata document.
const MetadataMember = "metadata"

// ErrArchiveExists guards against silently replacing a previous export.
var ErrArchiveExists = errors.New("archive already exists")

// DefaultName derives the conventional archive file name from the package
// identity.
func DefaultName(pkg *update.Package) string {
	return fmt.Sprintf("%s-%s.efupkg", pkg.Product, pkg.Version)
}

// Write produces the archive at path. The package is loaded on demand so
// every digest and computed field in the embedded metadata is final.
// An existing file at path is an error unless force is set.
func Write(ctx context.Context, pkg *update.Package, path string, force bool, reporter progress.Reporter) error {
	path = filepath.Clean(path)

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrArchiveExists, path)
		}
	}

	metadata, err := pkg.Metadata(ctx, reporter)
	if err != nil {
		return err
	}

	if err := update.ValidateMetadata(metadata); err != nil {
		return fmt.Errorf("invalid package: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	if err := writeMetadata(tw, metadata); err != nil {
		return err
	}

	if err := writeObjects(tw, pkg.Objects.FirstSet()); err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}

	if err := gz.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}

	return nil
}

func writeMetadata(tw *tar.Writer, metadata map[string]any) error {
	doc, err := json.MarshalIndent(metadata, "", "    ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	doc = append(doc, '\n')

	header := &tar.Header{
		Name:    MetadataMember,
		Mode:    0o644,
		Size:    int64(len(doc)),
		ModTime: time.Now(),
	}

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write metadata header: %w", err)
	}

	if _, err := tw.Write(doc); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	return nil
}

func writeObjects(tw *tar.Writer, objects []*object.Object) error {
	seen := make(map[string]bool, len(objects))

	for _, obj := range objects {
		digest := obj.SHA256()
		if seen[digest] {
			continue
		}

		seen[digest] = true

		if err := writeObject(tw, obj, digest); err != nil {
			return err
		}
	}

	return nil
}

func writeObject(tw *tar.Writer, obj *object.Object, digest string) error {
	size, err := obj.FileSize()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    digest,
		Mode:    0o644,
		Size:    size,
		ModTime: time.Now(),
	}

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write object header: %w", err)
	}

	source, err := os.Open(filepath.Clean(obj.Filename()))
	if err != nil {
		return fmt.Errorf("open object %s: %w", obj.Filename(), err)
	}
	defer source.Close()

	if _, err := io.Copy(tw, source); err != nil {
		return fmt.Errorf("archive object %s: %w", obj.Filename(), err)
	}

	return nil
}
