package object

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/klauspost/compress/gzip"

	"github.com/efota/efu/internal/option"
)

// Image magic numbers used to classify kernel payloads.
const (
	armUImageMagic = 0x27051956
	armZImageMagic = 0x016F2818
	x86BootMagic   = 0xaa55
)

// zImageDecompressLimit bounds how much of an embedded kernel is inflated
// while searching for the version banner.
const zImageDecompressLimit = 64 << 20

// errNoVersion reports that no version string could be extracted.
var errNoVersion = errors.New("cannot extract version")

var (
	kernelVersionRe = regexp.MustCompile(`(\d+.?\.[^\s]+)`)
	zImageBannerRe  = regexp.MustCompile(`Linux version (\S+).*`)
	ubootVersionRe  = regexp.MustCompile(`U-Boot (\S+) \(.*\)`)

	// gzipMemberMagic marks the start of the compressed kernel embedded
	// in an ARM zImage.
	gzipMemberMagic = []byte{0x1f, 0x8b, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00}
)

// knownPatternVersion extracts the embedded version string using one of
// the well-known image-format backends.
func knownPatternVersion(filename, backend string) (string, error) {
	f, err := os.Open(filepath.Clean(filename))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	switch backend {
	case option.PatternLinuxKernel:
		return kernelVersion(f)
	case option.PatternUBoot:
		return ubootVersion(f)
	default:
		return "", fmt.Errorf("unknown version pattern backend %q", backend)
	}
}

// kernelVersion classifies the image by its magic numbers and extracts
// the kernel version accordingly.
func kernelVersion(f *os.File) (string, error) {
	if magic, ok := readAtBE32(f, 0); ok && magic == armUImageMagic {
		return armUImageVersion(f)
	}

	if magic, ok := readAtLE32(f, 36); ok && magic == armZImageMagic {
		return armZImageVersion(f)
	}

	if magic, ok := readAtLE16(f, 510); ok && magic == x86BootMagic {
		return x86ImageVersion(f)
	}

	return "", fmt.Errorf("%s: %w", f.Name(), errNoVersion)
}

// armUImageVersion reads the image name field of a uImage header.
func armUImageVersion(f *os.File) (string, error) {
	name := make([]byte, 32)
	if _, err := f.ReadAt(name, 32); err != nil {
		return "", fmt.Errorf("read uImage header: %w", err)
	}

	if m := kernelVersionRe.FindSubmatch(bytes.Trim(name, "\x00")); m != nil {
		return string(m[1]), nil
	}

	return "", fmt.Errorf("%s: %w", f.Name(), errNoVersion)
}

// armZImageVersion locates the gzipped kernel inside a zImage, inflates
// it and scans the stream for the version banner.
func armZImageVersion(f *os.File) (string, error) {
	raw, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read zImage: %w", err)
	}

	start := bytes.Index(raw, gzipMemberMagic)
	if start < 0 {
		return "", fmt.Errorf("%s: no embedded kernel: %w", f.Name(), errNoVersion)
	}

	reader, err := gzip.NewReader(bytes.NewReader(raw[start:]))
	if err != nil {
		return "", fmt.Errorf("decode embedded kernel: %w", err)
	}
	defer reader.Close()

	reader.Multistream(false)

	version, err := scanPrintable(io.LimitReader(reader, zImageDecompressLimit), zImageBannerRe)
	if err != nil {
		return "", fmt.Errorf("%s: %w", f.Name(), err)
	}

	return version, nil
}

// x86ImageVersion reads the version string referenced by the setup
// header; the layout is shared by bzImage and zImage.
func x86ImageVersion(f *os.File) (string, error) {
	offset, ok := readAtLE16(f, 526)
	if !ok {
		return "", fmt.Errorf("%s: %w", f.Name(), errNoVersion)
	}

	window := make([]byte, 512)

	n, err := f.ReadAt(window, int64(offset)+512)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read x86 version block: %w", err)
	}

	if m := kernelVersionRe.FindSubmatch(window[:n]); m != nil {
		return string(m[1]), nil
	}

	return "", fmt.Errorf("%s: %w", f.Name(), errNoVersion)
}

// ubootVersion scans the whole image for the U-Boot banner.
func ubootVersion(f *os.File) (string, error) {
	version, err := scanPrintable(f, ubootVersionRe)
	if err != nil {
		return "", fmt.Errorf("%s: %w", f.Name(), err)
	}

	return version, nil
}

// regexpVersion applies a user-supplied pattern to a byte window of the
// file. A negative buffer size means "until end of file".
func regexpVersion(filename, pattern string, seek, bufferSize int64) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("compile install-condition pattern: %w", err)
	}

	f, err := os.Open(filepath.Clean(filename))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	if _, err := f.Seek(seek, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek %s: %w", filename, err)
	}

	var window io.Reader = f
	if bufferSize >= 0 {
		window = io.LimitReader(f, bufferSize)
	}

	version, err := scanPrintable(window, re)
	if err != nil {
		return "", fmt.Errorf("%s: %w", filename, err)
	}

	return version, nil
}

// scanPrintable accumulates printable runs from the stream and matches
// the pattern against each completed run, so version strings split across
// read boundaries are still found without buffering the whole stream.
func scanPrintable(r io.Reader, re *regexp.Regexp) (string, error) {
	var (
		run = make([]byte, 0, 512)
		buf = make([]byte, 4096)
	)

	match := func() (string, bool) {
		m := re.FindSubmatch(run)
		if m == nil {
			return "", false
		}

		if len(m) > 1 {
			return string(m[1]), true
		}

		return string(m[0]), true
	}

	for {
		n, err := r.Read(buf)

		for _, c := range buf[:n] {
			if c >= 0x20 && c < 0x7f || c == '\t' {
				run = append(run, c)
				continue
			}

			if v, ok := match(); ok {
				return v, nil
			}

			run = run[:0]
		}

		if err != nil {
			if v, ok := match(); ok {
				return v, nil
			}

			if errors.Is(err, io.EOF) {
				return "", errNoVersion
			}

			return "", err
		}
	}
}

func readAtBE32(f *os.File, off int64) (uint32, bool) {
	buf := make([]byte, 4)
	if _, err := f.ReadAt(buf, off); err != nil {
		return 0, false
	}

	return binary.BigEndian.Uint32(buf), true
}

func readAtLE32(f *os.File, off int64) (uint32, bool) {
	buf := make([]byte, 4)
	if _, err := f.ReadAt(buf, off); err != nil {
		return 0, false
	}

	return binary.LittleEndian.Uint32(buf), true
}

func readAtLE16(f *os.File, off int64) (uint16, bool) {
	buf := make([]byte, 2)
	if _, err := f.ReadAt(buf, off); err != nil {
		return 0, false
	}

	return binary.LittleEndian.Uint16(buf), true
}
