package object

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// Known compressed-container formats, detected from header signatures.
const (
	formatGzip  = "gzip"
	formatXZ    = "xz"
	formatLzop  = "lzop"
	formatBzip2 = "bzip2"
)

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	xzMagic    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	lzopMagic  = []byte{0x89, 'L', 'Z', 'O', 0x00, 0x0d, 0x0a, 0x1a, 0x0a}
	bzip2Magic = []byte{'B', 'Z', 'h'}
)

// errTruncatedContainer reports a compressed file too short to carry the
// structures its signature promises.
var errTruncatedContainer = errors.New("truncated compressed container")

// detectCompression sniffs the file's header bytes against known
// compressed-container signatures. An empty string means the payload is
// not a recognized compressed container.
func detectCompression(filename string) (string, error) {
	f, err := os.Open(filepath.Clean(filename))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	header := make([]byte, len(lzopMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		// Too short for any signature, so not compressed.
		return "", nil //nolint:nilerr // Short files are simply plain payloads.
	}

	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return formatGzip, nil
	case bytes.HasPrefix(header, xzMagic):
		return formatXZ, nil
	case bytes.HasPrefix(header, lzopMagic):
		return formatLzop, nil
	case bytes.HasPrefix(header, bzip2Magic):
		return formatBzip2, nil
	default:
		return "", nil
	}
}

// uncompressedSize computes the payload's uncompressed length for formats
// where that is cheap: a header/footer field or a single streaming pass.
// The boolean result is false for formats without a reliable fast path
// (bzip2), in which case the size must stay unset rather than guessed.
func uncompressedSize(filename, format string) (int64, bool, error) {
	switch format {
	case formatGzip:
		size, err := gzipUncompressedSize(filename)
		return size, err == nil, err
	case formatXZ:
		size, err := xzUncompressedSize(filename)
		return size, err == nil, err
	case formatLzop:
		size, err := lzopUncompressedSize(filename)
		return size, err == nil, err
	default:
		return 0, false, nil
	}
}

// gzipUncompressedSize reads the ISIZE footer. When the member wraps a
// tar archive the size is instead counted through a full decompression
// pass, which also validates the stream; tar payloads are the common
// multi-gigabyte case where the 32-bit ISIZE field cannot be trusted.
func gzipUncompressedSize(filename string) (int64, error) {
	f, err := os.Open(filepath.Clean(filename))
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	isTar, err := gzipWrapsTar(f)
	if err != nil {
		return 0, err
	}

	if isTar {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return 0, err
		}

		reader, err := gzip.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("decode gzip %s: %w", filename, err)
		}
		defer reader.Close()

		size, err := io.Copy(io.Discard, reader)
		if err != nil {
			return 0, fmt.Errorf("decode gzip %s: %w", filename, err)
		}

		return size, nil
	}

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	if info.Size() < 4 {
		return 0, fmt.Errorf("%s: %w", filename, errTruncatedContainer)
	}

	footer := make([]byte, 4)
	if _, err := f.ReadAt(footer, info.Size()-4); err != nil {
		return 0, fmt.Errorf("read gzip footer of %s: %w", filename, err)
	}

	return int64(binary.LittleEndian.Uint32(footer)), nil
}

// gzipWrapsTar peeks at the first decompressed block and checks for the
// ustar signature at offset 257.
func gzipWrapsTar(f *os.File) (bool, error) {
	reader, err := gzip.NewReader(f)
	if err != nil {
		return false, fmt.Errorf("decode gzip: %w", err)
	}
	defer reader.Close()

	block := make([]byte, 512)

	n, err := io.ReadFull(reader, block)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false, fmt.Errorf("decode gzip: %w", err)
	}

	return n >= 262 && bytes.Equal(block[257:262], []byte("ustar")), nil
}

// xzUncompressedSize decodes the stream footer to locate the index, then
// sums the per-block uncompressed sizes recorded there.
func xzUncompressedSize(filename string) (int64, error) {
	f, err := os.Open(filepath.Clean(filename))
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	if info.Size() < 32 {
		return 0, fmt.Errorf("%s: %w", filename, errTruncatedContainer)
	}

	// Footer: CRC32, backward size, stream flags, "YZ".
	footer := make([]byte, 12)
	if _, err := f.ReadAt(footer, info.Size()-12); err != nil {
		return 0, fmt.Errorf("read xz footer of %s: %w", filename, err)
	}

	if footer[10] != 'Y' || footer[11] != 'Z' {
		return 0, fmt.Errorf("%s: bad xz footer magic", filename)
	}

	indexSize := (int64(binary.LittleEndian.Uint32(footer[4:8])) + 1) * 4
	indexStart := info.Size() - 12 - indexSize

	if indexStart < int64(len(xzMagic)) {
		return 0, fmt.Errorf("%s: %w", filename, errTruncatedContainer)
	}

	index := make([]byte, indexSize)
	if _, err := f.ReadAt(index, indexStart); err != nil {
		return 0, fmt.Errorf("read xz index of %s: %w", filename, err)
	}

	if index[0] != 0x00 {
		return 0, fmt.Errorf("%s: bad xz index indicator", filename)
	}

	rest := index[1:]

	count, rest, err := xzVarint(rest)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", filename, err)
	}

	var total int64

	for i := int64(0); i < count; i++ {
		// Unpadded block size, then uncompressed size.
		if _, rest, err = xzVarint(rest); err != nil {
			return 0, fmt.Errorf("%s: %w", filename, err)
		}

		var uncompressed int64
		if uncompressed, rest, err = xzVarint(rest); err != nil {
			return 0, fmt.Errorf("%s: %w", filename, err)
		}

		total += uncompressed
	}

	return total, nil
}

// xzVarint decodes one multibyte integer (7 bits per byte, high bit set
// on continuation bytes).
func xzVarint(data []byte) (int64, []byte, error) {
	var (
		value int64
		shift uint
	)

	for i, b := range data {
		value |= int64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, data[i+1:], nil
		}

		shift += 7
		if shift > 63 {
			break
		}
	}

	return 0, nil, errors.New("bad xz index varint")
}

// lzop container flags that add checksum fields around block payloads.
const (
	lzopAdler32D   = 0x0000_0001
	lzopAdler32C   = 0x0000_0002
	lzopExtraField = 0x0000_0040
	lzopCRC32D     = 0x0000_0100
	lzopCRC32C     = 0x0000_0200
	lzopFilter     = 0x0000_0800
)

// lzopUncompressedSize walks the lzop container, summing the uncompressed
// length recorded in each block header while seeking past the compressed
// payloads. No payload is ever decompressed.
func lzopUncompressedSize(filename string) (int64, error) {
	f, err := os.Open(filepath.Clean(filename))
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	flags, err := skipLzopHeader(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", filename, err)
	}

	var total int64

	for {
		uncompressed, err := readBE32(f)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", filename, err)
		}

		if uncompressed == 0 {
			return total, nil
		}

		compressed, err := readBE32(f)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", filename, err)
		}

		var skip int64
		if flags&lzopAdler32D != 0 {
			skip += 4
		}

		if flags&lzopCRC32D != 0 {
			skip += 4
		}

		// Compressed checksums are omitted when the block is stored as-is.
		if compressed < uncompressed {
			if flags&lzopAdler32C != 0 {
				skip += 4
			}

			if flags&lzopCRC32C != 0 {
				skip += 4
			}
		}

		if _, err := f.Seek(skip+int64(compressed), io.SeekCurrent); err != nil {
			return 0, fmt.Errorf("%s: %w", filename, err)
		}

		total += int64(uncompressed)
	}
}

// skipLzopHeader advances past the container header and returns the flags
// word needed to size the per-block checksum fields.
func skipLzopHeader(f *os.File) (uint32, error) {
	if _, err := f.Seek(int64(len(lzopMagic)), io.SeekStart); err != nil {
		return 0, err
	}

	version, err := readBE16(f)
	if err != nil {
		return 0, err
	}

	// Library version, plus "version needed to extract" on 0.9.40+.
	headWords := 1
	if version >= 0x0940 {
		headWords = 2
	}

	if _, err := f.Seek(int64(headWords*2), io.SeekCurrent); err != nil {
		return 0, err
	}

	// Method byte, plus level byte on 0.9.40+.
	methodBytes := int64(1)
	if version >= 0x0940 {
		methodBytes = 2
	}

	if _, err := f.Seek(methodBytes, io.SeekCurrent); err != nil {
		return 0, err
	}

	flags, err := readBE32(f)
	if err != nil {
		return 0, err
	}

	if flags&lzopFilter != 0 {
		if _, err := f.Seek(4, io.SeekCurrent); err != nil {
			return 0, err
		}
	}

	// Mode and mtime (low word, plus high word on 0.9.40+).
	mtimeWords := int64(2)
	if version >= 0x0940 {
		mtimeWords = 3
	}

	if _, err := f.Seek(mtimeWords*4, io.SeekCurrent); err != nil {
		return 0, err
	}

	nameLen := make([]byte, 1)
	if _, err := io.ReadFull(f, nameLen); err != nil {
		return 0, err
	}

	// Name and header checksum.
	if _, err := f.Seek(int64(nameLen[0])+4, io.SeekCurrent); err != nil {
		return 0, err
	}

	if flags&lzopExtraField != 0 {
		extraLen, err := readBE32(f)
		if err != nil {
			return 0, err
		}

		if _, err := f.Seek(int64(extraLen)+4, io.SeekCurrent); err != nil {
			return 0, err
		}
	}

	return flags, nil
}

func readBE16(r io.Reader) (uint16, error) {
	buf := make([]byte, 2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint16(buf), nil
}

func readBE32(r io.Reader) (uint32, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint32(buf), nil
}
