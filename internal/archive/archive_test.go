package archive

import (
	"archive/tar"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/efota/efu/internal/installset"
	"github.com/efota/efu/internal/option"
	"github.com/efota/efu/internal/progress"
	"github.com/efota/efu/internal/update"
)

// buildPackage creates a single-mode package with the given payloads,
// all targeting raw mode.
func buildPackage(t *testing.T, dir string, files map[string]string) *update.Package {
	t.Helper()

	pkg := update.New(option.DefaultRegistry(), installset.Single, 4)
	pkg.Product = "gadget"
	pkg.Version = "2.0"

	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		_, err := pkg.Objects.Create(path, "raw",
			option.Values{option.Target: "/dev/sda"}, installset.NoSet)
		require.NoError(t, err)
	}

	return pkg
}

// readArchive returns the member names and bodies of a written archive.
func readArchive(t *testing.T, path string) map[string][]byte {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	members := make(map[string][]byte)
	tr := tar.NewReader(gz)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}

		require.NoError(t, err)

		body, err := io.ReadAll(tr)
		require.NoError(t, err)

		members[header.Name] = body
	}

	return members
}

// TestWriteMembers checks the metadata member and the digest-named
// payload members.
func TestWriteMembers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pkg := buildPackage(t, dir, map[string]string{"payload.bin": "firmware content"})

	out := filepath.Join(dir, "gadget-2.0.efupkg")
	require.NoError(t, Write(context.Background(), pkg, out, false, progress.Nop{}))

	members := readArchive(t, out)
	require.Len(t, members, 2)

	var metadata map[string]any
	require.NoError(t, json.Unmarshal(members[MetadataMember], &metadata))
	require.Equal(t, "gadget", metadata["product"])
	require.Equal(t, "2.0", metadata["version"])

	obj, err := pkg.Objects.Get(0, installset.NoSet)
	require.NoError(t, err)
	require.Equal(t, []byte("firmware content"), members[obj.SHA256()])
}

// TestWriteDeduplicatesByDigest stores identical payloads once.
func TestWriteDeduplicatesByDigest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pkg := buildPackage(t, dir, map[string]string{
		"first.bin":  "same bytes",
		"second.bin": "same bytes",
	})

	out := filepath.Join(dir, "out.efupkg")
	require.NoError(t, Write(context.Background(), pkg, out, false, progress.Nop{}))

	// One metadata member plus one shared payload member.
	require.Len(t, readArchive(t, out), 2)
}

// TestWriteRefusesExisting refuses to replace an archive unless forced.
func TestWriteRefusesExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pkg := buildPackage(t, dir, map[string]string{"payload.bin": "firmware content"})

	out := filepath.Join(dir, "out.efupkg")
	require.NoError(t, os.WriteFile(out, []byte("previous export"), 0o644))

	require.ErrorIs(t,
		Write(context.Background(), pkg, out, false, progress.Nop{}),
		ErrArchiveExists)

	require.NoError(t, Write(context.Background(), pkg, out, true, progress.Nop{}))
	require.Len(t, readArchive(t, out), 2)
}

// TestWriteRejectsIncompletePackage gates on metadata validation.
func TestWriteRejectsIncompletePackage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pkg := buildPackage(t, dir, map[string]string{"payload.bin": "firmware content"})
	pkg.Version = ""

	err := Write(context.Background(), pkg, filepath.Join(dir, "out.efupkg"), false, progress.Nop{})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "out.efupkg"))
	require.True(t, os.IsNotExist(statErr))
}

// TestDefaultName derives the conventional archive file name.
func TestDefaultName(t *testing.T) {
	t.Parallel()

	pkg := update.New(option.DefaultRegistry(), installset.Single, 0)
	pkg.Product = "gadget"
	pkg.Version = "2.0"

	require.Equal(t, "gadget-2.0.efupkg", DefaultName(pkg))
}
