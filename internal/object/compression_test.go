package object

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/efota/efu/internal/option"
	"github.com/efota/efu/internal/progress"
)

// gzipFile compresses content into a gzip member on disk.
func gzipFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	var buf bytes.Buffer

	w := gzip.NewWriter(&buf)
	_, err := w.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return writeFile(t, dir, name, buf.Bytes())
}

// TestDetectCompression checks signature sniffing for every known format
// plus the plain and too-short cases.
func TestDetectCompression(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cases := []struct {
		name    string
		content []byte
		want    string
	}{
		{"gzip", []byte{0x1f, 0x8b, 0x08, 0, 0, 0, 0, 0, 0, 0}, "gzip"},
		{"xz", []byte{0xfd, '7', 'z', 'X', 'Z', 0x00, 0, 0, 0, 0}, "xz"},
		{"lzop", []byte{0x89, 'L', 'Z', 'O', 0x00, 0x0d, 0x0a, 0x1a, 0x0a, 0}, "lzop"},
		{"bzip2", []byte("BZh91AY&SY-------"), "bzip2"},
		{"plain", []byte("just some payload"), ""},
		{"short", []byte{0x1f, 0x8b}, ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := writeFile(t, dir, tc.name+".bin", tc.content)

			format, err := detectCompression(path)
			require.NoError(t, err)
			require.Equal(t, tc.want, format)
		})
	}
}

// TestGzipUncompressedSize checks the ISIZE fast path for a plain member.
func TestGzipUncompressedSize(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("firmware "), 1000)
	path := gzipFile(t, t.TempDir(), "payload.gz", content)

	size, err := gzipUncompressedSize(path)
	require.NoError(t, err)
	require.Equal(t, int64(len(content)), size)
}

// TestGzipWrapsTarSize checks that a tar payload is sized by a streaming
// pass instead of the footer field.
func TestGzipWrapsTarSize(t *testing.T) {
	t.Parallel()

	var tarBuf bytes.Buffer

	tw := tar.NewWriter(&tarBuf)
	body := bytes.Repeat([]byte("x"), 3000)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "rootfs.img", Mode: 0o644, Size: int64(len(body))}))

	_, err := tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	path := gzipFile(t, t.TempDir(), "rootfs.tar.gz", tarBuf.Bytes())

	size, err := gzipUncompressedSize(path)
	require.NoError(t, err)
	require.Equal(t, int64(tarBuf.Len()), size)
}

// xzContainer builds a minimal container whose index records the given
// per-block uncompressed sizes.
func xzContainer(t *testing.T, blocks []int64) []byte {
	t.Helper()

	var index bytes.Buffer

	index.WriteByte(0x00)
	index.Write(xzVarintBytes(int64(len(blocks))))

	for _, uncompressed := range blocks {
		index.Write(xzVarintBytes(8)) // unpadded block size, unused by the walk
		index.Write(xzVarintBytes(uncompressed))
	}

	for index.Len()%4 != 0 {
		index.WriteByte(0x00)
	}

	var out bytes.Buffer

	out.Write([]byte{0xfd, '7', 'z', 'X', 'Z', 0x00})
	out.Write(bytes.Repeat([]byte{0xaa}, 8)) // opaque block bytes
	out.Write(index.Bytes())

	footer := make([]byte, 12)
	binary.LittleEndian.PutUint32(footer[4:8], uint32(index.Len()/4-1)) //nolint:gosec // Test fixture sizes are tiny.
	footer[10], footer[11] = 'Y', 'Z'
	out.Write(footer)

	return out.Bytes()
}

// xzVarintBytes encodes one multibyte integer.
func xzVarintBytes(v int64) []byte {
	var out []byte

	for v >= 0x80 {
		out = append(out, byte(v)|0x80)
		v >>= 7
	}

	return append(out, byte(v))
}

// TestXZUncompressedSize checks the index walk over single and multiple
// block records.
func TestXZUncompressedSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	single := writeFile(t, dir, "single.xz", xzContainer(t, []int64{1000}))

	size, err := xzUncompressedSize(single)
	require.NoError(t, err)
	require.Equal(t, int64(1000), size)

	multi := writeFile(t, dir, "multi.xz", xzContainer(t, []int64{4096, 200, 31}))

	size, err = xzUncompressedSize(multi)
	require.NoError(t, err)
	require.Equal(t, int64(4327), size)
}

// lzopContainer builds a container with the Adler32 data checksum flag
// and the given (uncompressed, compressed) block pairs.
func lzopContainer(t *testing.T, blocks [][2]uint32) []byte {
	t.Helper()

	var out bytes.Buffer

	out.Write([]byte{0x89, 'L', 'Z', 'O', 0x00, 0x0d, 0x0a, 0x1a, 0x0a})

	be16 := func(v uint16) {
		require.NoError(t, binary.Write(&out, binary.BigEndian, v))
	}
	be32 := func(v uint32) {
		require.NoError(t, binary.Write(&out, binary.BigEndian, v))
	}

	be16(0x1030)            // version
	be16(0x2080)            // library version
	be16(0x0940)            // version needed to extract
	out.Write([]byte{2, 5}) // method, level
	be32(lzopAdler32D)      // flags
	be32(0o644)             // mode
	be32(0)                 // mtime low
	be32(0)                 // mtime high
	out.WriteByte(0)        // name length
	be32(0)                 // header checksum

	for _, block := range blocks {
		uncompressed, compressed := block[0], block[1]

		be32(uncompressed)
		be32(compressed)
		be32(0) // data checksum
		out.Write(bytes.Repeat([]byte{0xbb}, int(compressed)))
	}

	be32(0) // terminator

	return out.Bytes()
}

// TestLzopUncompressedSize checks the block walk without decompressing
// anything.
func TestLzopUncompressedSize(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "payload.lzo",
		lzopContainer(t, [][2]uint32{{500, 10}, {300, 300}}))

	size, err := lzopUncompressedSize(path)
	require.NoError(t, err)
	require.Equal(t, int64(800), size)
}

// TestMetadataCompressionKeys checks the end-to-end behavior through the
// object metadata: compressed payloads gain both keys, plain and bzip2
// payloads gain neither.
func TestMetadataCompressionKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	compressed := gzipFile(t, dir, "image.gz", bytes.Repeat([]byte("z"), 2048))
	obj := rawObject(t, compressed, 0)

	md, err := obj.Metadata(ctx, progress.Nop{})
	require.NoError(t, err)
	require.Equal(t, true, md[option.Compressed])
	require.Equal(t, int64(2048), md[option.UncompressedSize])

	plain := writeFile(t, dir, "image.bin", []byte("plain payload"))
	obj = rawObject(t, plain, 0)

	md, err = obj.Metadata(ctx, progress.Nop{})
	require.NoError(t, err)
	require.NotContains(t, md, option.Compressed)
	require.NotContains(t, md, option.UncompressedSize)

	// bzip2 is recognized but has no cheap size, so both keys stay unset.
	bz := writeFile(t, dir, "image.bz2", []byte("BZh91AY&SY-------"))
	obj = rawObject(t, bz, 0)

	md, err = obj.Metadata(ctx, progress.Nop{})
	require.NoError(t, err)
	require.NotContains(t, md, option.Compressed)
	require.NotContains(t, md, option.UncompressedSize)
}

// TestMetadataCompressionAfterFilenameSwap ensures a filename change
// never leaks the previous payload's compression info.
func TestMetadataCompressionAfterFilenameSwap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	compressed := gzipFile(t, dir, "image.gz", bytes.Repeat([]byte("z"), 1024))
	obj := rawObject(t, compressed, 0)

	md, err := obj.Metadata(ctx, progress.Nop{})
	require.NoError(t, err)
	require.Equal(t, true, md[option.Compressed])

	plain := writeFile(t, dir, "image.bin", []byte("plain payload"))
	require.NoError(t, obj.Update(option.Filename, plain))

	md, err = obj.Metadata(ctx, progress.Nop{})
	require.NoError(t, err)
	require.NotContains(t, md, option.Compressed)
	require.NotContains(t, md, option.UncompressedSize)

	_, err = os.Stat(filepath.Join(dir, "image.gz"))
	require.NoError(t, err)
}
