package object

import (
	"context"
	"crypto/md5" //nolint:gosec // MD5 is the secondary digest required by the upload protocol, not a security boundary.
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/efota/efu/internal/option"
	"github.com/efota/efu/internal/progress"
)

// DefaultChunkSize is the read granularity used for hashing and upload
// when the configuration does not override it.
const DefaultChunkSize int64 = 131072

// ModeKey is the serialization key carrying the installation mode.
const ModeKey = "mode"

// InstallIfDifferent is the metadata key carrying the resolved install
// condition.
const InstallIfDifferent = "install-if-different"

var (
	// errFilenameRequired is returned when an object is created without a filename.
	errFilenameRequired = errors.New("filename must be provided")
	// errNotLoaded is returned when upload data is requested before Load.
	errNotLoaded = errors.New("object has not been loaded")
)

// Object binds one source file to one installation target. Its option set
// is validated against the mode's declaration on every mutation; invalid
// changes never partially apply.
type Object struct {
	mode      *option.Mode
	values    option.Values
	chunkSize int64
	md5sum    string
	loaded    bool
}

// New validates the options against the mode registry and creates the
// object. A zero or negative chunk size falls back to DefaultChunkSize;
// the chunk size is fixed for the lifetime of the object.
func New(registry *option.Registry, filename, mode string, values option.Values, chunkSize int64) (*Object, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, errFilenameRequired
	}

	m, err := registry.Mode(mode)
	if err != nil {
		return nil, err
	}

	proposed := values.Clone()
	if proposed == nil {
		proposed = make(option.Values)
	}

	proposed[option.Filename] = filename

	resolved, err := m.ValidateValues(proposed)
	if err != nil {
		return nil, err
	}

	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &Object{
		mode:      m,
		values:    resolved,
		chunkSize: chunkSize,
	}, nil
}

// Mode returns the installation mode name.
func (o *Object) Mode() string {
	return o.mode.Name
}

// Filename returns the source file path.
func (o *Object) Filename() string {
	fn, _ := o.values[option.Filename].(string)
	return fn
}

// ChunkSize returns the fixed read granularity.
func (o *Object) ChunkSize() int64 {
	return o.chunkSize
}

// Value returns the current value of a declared option. Asking for an
// option the mode does not declare is an error, not a nil value.
func (o *Object) Value(name string) (any, error) {
	if _, err := o.mode.Option(name); err != nil {
		return nil, err
	}

	return o.values[name], nil
}

// Update applies a single-option change after revalidating the whole
// option set, so constraints spanning several options are enforced even
// when only one of them changed. On failure the object keeps its prior
// state. Changing the filename discards previously computed digests and
// compression info.
func (o *Object) Update(name string, value any) error {
	proposed := o.values.Clone()
	if value == nil {
		delete(proposed, name)
	} else {
		proposed[name] = value
	}

	if _, err := o.mode.Option(name); err != nil {
		return err
	}

	resolved, err := o.mode.ValidateValues(proposed)
	if err != nil {
		return err
	}

	if name == option.Filename && value != o.values[option.Filename] {
		delete(resolved, option.Sha256Sum)
		delete(resolved, option.Size)
		o.md5sum = ""
		o.loaded = false
	}

	o.values = resolved

	return nil
}

// Exists reports whether the source file is present on disk.
func (o *Object) Exists() bool {
	_, err := os.Stat(o.Filename())
	return err == nil
}

// FileSize returns the current size of the source file from the
// filesystem, not from cached state.
func (o *Object) FileSize() (int64, error) {
	info, err := os.Stat(o.Filename())
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", o.Filename(), err)
	}

	return info.Size(), nil
}

// ChunkCount returns ceil(size / chunk size) from a fresh stat, so it is
// correct even before Load has run.
func (o *Object) ChunkCount() (int64, error) {
	size, err := o.FileSize()
	if err != nil {
		return 0, err
	}

	return (size + o.chunkSize - 1) / o.chunkSize, nil
}

// Loaded reports whether digests have been computed since the last
// filename change.
func (o *Object) Loaded() bool {
	return o.loaded
}

// SHA256 returns the hex digest computed by Load, or an empty string.
func (o *Object) SHA256() string {
	sum, _ := o.values[option.Sha256Sum].(string)
	return sum
}

// MD5 returns the hex digest computed by Load, or an empty string.
func (o *Object) MD5() string {
	return o.md5sum
}

// Load streams the source file chunk by chunk, accumulating the SHA-256
// and MD5 digests without holding the whole file in memory, and records
// the file size. Re-running recomputes and overwrites. A missing or
// unreadable file surfaces as an error; the caller decides whether that
// is fatal.
func (o *Object) Load(ctx context.Context, reporter progress.Reporter) error {
	if reporter == nil {
		reporter = progress.Nop{}
	}

	chunks, err := o.ChunkCount()
	if err != nil {
		return err
	}

	reporter.ObjectReadStarted(o.Filename(), chunks)

	reader, err := o.NewChunkReader()
	if err != nil {
		return err
	}
	defer reader.Close()

	var (
		sha = sha256.New()
		sum = md5.New() //nolint:gosec // Secondary digest for upload dedup.
	)

	size, err := o.digestChunks(ctx, reader, reporter, sha, sum)
	if err != nil {
		return err
	}

	o.values[option.Sha256Sum] = hex.EncodeToString(sha.Sum(nil))
	o.values[option.Size] = size
	o.md5sum = hex.EncodeToString(sum.Sum(nil))
	o.loaded = true

	reporter.ObjectReadFinished(o.Filename())

	return nil
}

func (o *Object) digestChunks(ctx context.Context, reader *ChunkReader, reporter progress.Reporter, hashes ...hash.Hash) (int64, error) {
	var size int64

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		chunk, err := reader.Next()
		if chunk != nil {
			size += int64(len(chunk))
			for _, h := range hashes {
				// hash.Hash never returns a write error.
				_, _ = h.Write(chunk)
			}

			reporter.ObjectRead(o.Filename())
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return size, nil
			}

			return 0, fmt.Errorf("read %s: %w", o.Filename(), err)
		}
	}
}

// LocalDigest computes the SHA-256 of whatever is currently on disk at
// the object's filename, without touching the object's recorded state.
func (o *Object) LocalDigest() (string, error) {
	reader, err := o.NewChunkReader()
	if err != nil {
		return "", err
	}
	defer reader.Close()

	sha := sha256.New()

	if _, err := o.digestChunks(context.Background(), reader, progress.Nop{}, sha); err != nil {
		return "", err
	}

	return hex.EncodeToString(sha.Sum(nil)), nil
}

// Template returns the editable serialization: mode plus every
// non-volatile option. It never reads file content, so packages can be
// edited offline without touching large payloads.
func (o *Object) Template() map[string]any {
	out := map[string]any{ModeKey: o.mode.Name}

	for _, opt := range o.mode.Options() {
		if opt.Volatile {
			continue
		}

		if v, ok := o.values[opt.Name]; ok {
			out[opt.Name] = v
		}
	}

	return out
}

// Metadata returns the server-bound serialization: every option, the
// resolved install condition and the computed compression block. It loads
// the object first when digests are stale, since sha256sum and size are
// mandatory metadata fields.
func (o *Object) Metadata(ctx context.Context, reporter progress.Reporter) (map[string]any, error) {
	if !o.loaded {
		if err := o.Load(ctx, reporter); err != nil {
			return nil, err
		}
	}

	out := map[string]any{ModeKey: o.mode.Name}
	for name, v := range o.values {
		out[name] = v
	}

	if err := o.metadataInstallCondition(out); err != nil {
		return nil, err
	}

	if err := o.metadataCompression(out); err != nil {
		return nil, err
	}

	return out, nil
}

// metadataInstallCondition replaces the raw install-condition options with
// the resolved install-if-different block.
func (o *Object) metadataInstallCondition(md map[string]any) error {
	if !o.mode.AllowInstallCondition {
		return nil
	}

	variant, _ := md[option.InstallCondition].(string)

	delete(md, option.InstallCondition)
	delete(md, option.ConditionVersion)
	delete(md, option.ConditionPattern)
	delete(md, option.ConditionRegexp)
	delete(md, option.ConditionSeek)
	delete(md, option.ConditionBufferSize)

	switch variant {
	case option.ConditionContentDiverges:
		md[InstallIfDifferent] = "sha256sum"
	case option.ConditionVersionDiverges:
		backend, _ := o.values[option.ConditionPattern].(string)

		if backend == option.PatternLinuxKernel || backend == option.PatternUBoot {
			version, err := knownPatternVersion(o.Filename(), backend)
			if err != nil {
				return err
			}

			md[InstallIfDifferent] = map[string]any{
				"version": version,
				"pattern": backend,
			}

			return nil
		}

		pattern, _ := o.values[option.ConditionRegexp].(string)
		seek, _ := o.values[option.ConditionSeek].(int64)
		bufferSize, _ := o.values[option.ConditionBufferSize].(int64)

		version, err := regexpVersion(o.Filename(), pattern, seek, bufferSize)
		if err != nil {
			return err
		}

		md[InstallIfDifferent] = map[string]any{
			"version": version,
			"pattern": map[string]any{
				"regexp":      pattern,
				"seek":        seek,
				"buffer-size": bufferSize,
			},
		}
	}

	return nil
}

// metadataCompression recomputes the compression block from the payload
// header. Stale values carried in the option set are discarded first, so
// a filename change can never leak the previous file's compression info.
func (o *Object) metadataCompression(md map[string]any) error {
	if !o.mode.AllowCompression {
		return nil
	}

	delete(md, option.Compressed)
	delete(md, option.UncompressedSize)

	format, err := detectCompression(o.Filename())
	if err != nil {
		return err
	}

	if format == "" {
		return nil
	}

	size, known, err := uncompressedSize(o.Filename(), format)
	if err != nil {
		return err
	}

	if known {
		md[option.Compressed] = true
		md[option.UncompressedSize] = size
	}

	return nil
}

// ToUpload returns the content fingerprint sent during upload
// negotiation.
func (o *Object) ToUpload() (map[string]any, error) {
	if !o.loaded {
		return nil, fmt.Errorf("%s: %w", o.Filename(), errNotLoaded)
	}

	chunks, err := o.ChunkCount()
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"filename":  o.Filename(),
		"size":      o.values[option.Size],
		"sha256sum": o.values[option.Sha256Sum],
		"md5":       o.md5sum,
		"chunks":    chunks,
	}, nil
}

// String renders the object using the mode's display template with a
// stable label column width. The format is a compatibility contract with
// persisted template fixtures.
func (o *Object) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s [mode: %s]\n", o.Filename(), o.mode.Name)

	for _, entry := range o.mode.Template() {
		value, ok := o.values[entry.Option.Name]
		if !ok {
			continue
		}

		suffix := o.renderChildren(entry.Children)
		fmt.Fprintf(&b, "\n    %-25s%s%s", entry.Option.VerboseName+":", entry.Option.HumanizeValue(value), suffix)
	}

	return b.String()
}

func (o *Object) renderChildren(children []*option.Option) string {
	var parts []string

	for _, child := range children {
		if v, ok := o.values[child.Name]; ok {
			parts = append(parts, fmt.Sprintf("%s: %s", child.VerboseName, child.HumanizeValue(v)))
		}
	}

	if len(parts) == 0 {
		return ""
	}

	return " [" + strings.Join(parts, ", ") + "]"
}
