package option

import (
	"errors"
	"fmt"
)

// errModeAlreadyRegistered is returned when a mode name is registered twice.
var errModeAlreadyRegistered = errors.New("mode already registered")

// Registry is the catalog of installation modes. It is built once during
// startup and read-only afterwards; every object constructor receives it
// by reference instead of consulting ambient global state.
type Registry struct {
	modes map[string]*Mode
	names []string
}

// NewRegistry returns an empty mode registry.
func NewRegistry() *Registry {
	return &Registry{
		modes: make(map[string]*Mode),
	}
}

// Register adds a mode descriptor. Registering the same name twice is a
// programming error and is rejected.
func (r *Registry) Register(m *Mode) error {
	if _, ok := r.modes[m.Name]; ok {
		return fmt.Errorf("%w: %s", errModeAlreadyRegistered, m.Name)
	}

	r.modes[m.Name] = m
	r.names = append(r.names, m.Name)

	return nil
}

// Mode returns the named mode descriptor.
func (r *Registry) Mode(name string) (*Mode, error) {
	m, ok := r.modes[name]
	if !ok {
		return nil, fmt.Errorf("unknown installation mode %q", name)
	}

	return m, nil
}

// Names returns the registered mode names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// DefaultRegistry builds the registry with every supported installation
// mode. It is called once before any object or package is constructed.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	modes := []*Mode{
		NewMode("raw",
			[]*Option{
				{Name: TargetType, VerboseName: "target type", Default: "device", Validate: oneOfValue("device")},
				{Name: Target, VerboseName: "target", Validate: pathValue},
				{Name: ChunkSize, VerboseName: "chunk size", Default: int64(131072), Validate: intValue(1)},
				{Name: Count, VerboseName: "count", Default: int64(-1), Validate: intValue(-1)},
				{Name: Seek, VerboseName: "seek", Default: int64(0), Validate: intValue(0)},
				{Name: Skip, VerboseName: "skip", Default: int64(0), Validate: intValue(0)},
				{Name: Truncate, VerboseName: "truncate", Default: false, Validate: boolValue, Humanize: humanizeBool},
			},
			[]string{Target},
			CompressionCapability(),
			InstallConditionCapability(),
		),
		NewMode("copy",
			[]*Option{
				{Name: TargetType, VerboseName: "target type", Default: "device", Validate: oneOfValue("device")},
				{Name: Target, VerboseName: "target", Validate: pathValue},
				{Name: TargetPath, VerboseName: "target path", Validate: absolutePathValue},
				{Name: Filesystem, VerboseName: "filesystem", Validate: filesystemValue()},
				{Name: Format, VerboseName: "format device?", Default: false, Validate: boolValue, Humanize: humanizeBool},
				{Name: FormatOptions, VerboseName: "format options", Validate: stringValue},
				{Name: MountOptions, VerboseName: "mount options", Validate: stringValue},
			},
			[]string{Target, TargetPath, Filesystem},
			InstallConditionCapability(),
		),
		NewMode("tarball",
			[]*Option{
				{Name: TargetType, VerboseName: "target type", Default: "device", Validate: oneOfValue("device")},
				{Name: Target, VerboseName: "target", Validate: pathValue},
				{Name: TargetPath, VerboseName: "target path", Validate: absolutePathValue},
				{Name: Filesystem, VerboseName: "filesystem", Validate: filesystemValue()},
				{Name: Format, VerboseName: "format device?", Default: false, Validate: boolValue, Humanize: humanizeBool},
				{Name: FormatOptions, VerboseName: "format options", Validate: stringValue},
				{Name: MountOptions, VerboseName: "mount options", Validate: stringValue},
			},
			[]string{Target, TargetPath, Filesystem},
		),
		NewMode("flash",
			[]*Option{
				{Name: TargetType, VerboseName: "target type", Default: "device", Validate: oneOfValue("device", "mtdname")},
				{Name: Target, VerboseName: "target", Validate: pathValue},
			},
			[]string{Target},
		),
		NewMode("imxkobs",
			[]*Option{
				{Name: "1k_padding", VerboseName: "padding", Default: false, Validate: boolValue, Humanize: humanizeBool},
				{Name: "search_exponent", VerboseName: "search exponent", Default: int64(2), Validate: intValue(0)},
				{Name: "chip_0_device_path", VerboseName: "chip 0 device path", Default: "/dev/mtd0", Validate: pathValue},
				{Name: "chip_1_device_path", VerboseName: "chip 1 device path", Default: "/dev/mtd1", Validate: pathValue},
			},
			nil,
		),
		NewMode("ubifs",
			[]*Option{
				{Name: TargetType, VerboseName: "target type", Default: "ubivolume", Validate: oneOfValue("ubivolume")},
				{Name: Target, VerboseName: "target", Validate: pathValue},
			},
			[]string{Target},
			CompressionCapability(),
		),
		NewMode("uboot-env", nil, nil),
		NewMode("zephyr", nil, nil),
	}

	for _, m := range modes {
		// Names are unique by construction.
		_ = r.Register(m)
	}

	return r
}

// filesystemValue accepts the filesystems the target agent can format.
func filesystemValue() func(any) (any, error) {
	return oneOfValue("btrfs", "ext2", "ext3", "ext4", "vfat", "f2fs", "jffs2", "ubifs", "xfs")
}
