package option

// Well-known option names shared across modes.
const (
	Filename            = "filename"
	Sha256Sum           = "sha256sum"
	Size                = "size"
	TargetType          = "target-type"
	Target              = "target"
	TargetPath          = "target-path"
	Filesystem          = "filesystem"
	Format              = "format?"
	FormatOptions       = "format-options"
	MountOptions        = "mount-options"
	ChunkSize           = "chunk-size"
	Count               = "count"
	Seek                = "seek"
	Skip                = "skip"
	Truncate            = "truncate"
	Compressed          = "compressed"
	UncompressedSize    = "required-uncompressed-size"
	InstallCondition    = "install-condition"
	ConditionVersion    = "install-condition-version"
	ConditionPattern    = "install-condition-pattern-type"
	ConditionRegexp     = "install-condition-pattern"
	ConditionSeek       = "install-condition-seek"
	ConditionBufferSize = "install-condition-buffer-size"
)

// Install condition variants.
const (
	ConditionAlways          = "always"
	ConditionContentDiverges = "content-diverges"
	ConditionVersionDiverges = "version-diverges"
)

// Version pattern backends for the version-diverges condition.
const (
	PatternLinuxKernel = "linux-kernel"
	PatternUBoot       = "u-boot"
	PatternRegexp      = "regexp"
)

// TemplateEntry pairs an option with the child options rendered inline
// after it in the string representation.
type TemplateEntry struct {
	Option   *Option
	Children []*Option
}

// CrossCheck validates or normalizes a fully resolved value set. It runs
// after per-option validation and defaults, so it can enforce constraints
// spanning several options and clear fields orphaned by a variant switch.
type CrossCheck func(values Values) error

// Mode describes one installation mode: its option catalog, required
// options and display layout. Modes are immutable once registered.
type Mode struct {
	// Name identifies the mode (raw, copy, ...).
	Name string
	// AllowCompression marks modes whose payload may be a compressed image.
	AllowCompression bool
	// AllowInstallCondition marks modes supporting conditional installs.
	AllowInstallCondition bool

	options  []*Option
	byName   map[string]*Option
	required []string
	template []TemplateEntry
	checks   []CrossCheck
}

// Capability extends a mode descriptor while it is being built.
type Capability func(m *Mode)

// NewMode builds a mode descriptor from its base options, the required
// option names and any capabilities. Every mode implicitly carries the
// filename option plus the volatile sha256sum and size options.
func NewMode(name string, options []*Option, required []string, caps ...Capability) *Mode {
	m := &Mode{
		Name:     name,
		byName:   make(map[string]*Option),
		required: append([]string{Filename}, required...),
	}

	m.add(&Option{Name: Filename, VerboseName: "filename", Validate: pathValue})
	m.add(&Option{Name: Sha256Sum, VerboseName: "sha256sum", Volatile: true, Validate: stringValue})
	m.add(&Option{Name: Size, VerboseName: "size", Volatile: true, Validate: intValue(0)})

	for _, opt := range options {
		m.add(opt)
		m.template = append(m.template, TemplateEntry{Option: opt})
	}

	for _, capability := range caps {
		capability(m)
	}

	return m
}

func (m *Mode) add(opt *Option) {
	m.options = append(m.options, opt)
	m.byName[opt.Name] = opt
}

// Option returns the named option or an UnknownOptionError when the mode
// does not declare it.
func (m *Mode) Option(name string) (*Option, error) {
	opt, ok := m.byName[name]
	if !ok {
		return nil, &UnknownOptionError{Mode: m.Name, Option: name}
	}

	return opt, nil
}

// Options returns the declared options in declaration order.
func (m *Mode) Options() []*Option {
	return m.options
}

// IsRequired reports whether the named option must be present.
func (m *Mode) IsRequired(name string) bool {
	for _, r := range m.required {
		if r == name {
			return true
		}
	}

	return false
}

// Template returns the display layout used for string rendering.
func (m *Mode) Template() []TemplateEntry {
	return m.template
}

// ValidateValues resolves a proposed value set against the mode: it
// validates every provided option, applies defaults, runs cross-option
// checks and verifies required options. The input is never mutated; the
// fully resolved set is returned only when everything passes, so callers
// can commit it atomically.
func (m *Mode) ValidateValues(proposed Values) (Values, error) {
	resolved := make(Values, len(m.options))

	for name, value := range proposed {
		opt, err := m.Option(name)
		if err != nil {
			return nil, err
		}

		if value == nil {
			continue
		}

		normalized, err := opt.Validate(value)
		if err != nil {
			return nil, &InvalidValueError{Option: name, Reason: err.Error()}
		}

		resolved[name] = normalized
	}

	for _, opt := range m.options {
		if _, ok := resolved[opt.Name]; !ok && opt.Default != nil {
			resolved[opt.Name] = opt.Default
		}
	}

	for _, check := range m.checks {
		if err := check(resolved); err != nil {
			return nil, err
		}
	}

	for _, name := range m.required {
		if _, ok := resolved[name]; !ok {
			return nil, &MissingOptionError{Mode: m.Name, Option: name}
		}
	}

	return resolved, nil
}

// CompressionCapability marks the mode as accepting compressed payloads
// and declares the volatile options computed from the payload header.
func CompressionCapability() Capability {
	return func(m *Mode) {
		m.AllowCompression = true
		m.add(&Option{Name: Compressed, VerboseName: "compressed", Volatile: true, Validate: boolValue})
		m.add(&Option{Name: UncompressedSize, VerboseName: "uncompressed size", Volatile: true, Validate: intValue(0)})
	}
}

// InstallConditionCapability declares the install-condition option family
// and the checks keeping its variants consistent: exactly one variant is
// active and fields owned by inactive variants are cleared.
func InstallConditionCapability() Capability {
	return func(m *Mode) {
		m.AllowInstallCondition = true

		condition := &Option{
			Name:        InstallCondition,
			VerboseName: "install condition",
			Default:     ConditionAlways,
			Validate:    oneOfValue(ConditionAlways, ConditionContentDiverges, ConditionVersionDiverges),
		}
		pattern := &Option{
			Name:        ConditionPattern,
			VerboseName: "condition pattern",
			Validate:    oneOfValue(PatternLinuxKernel, PatternUBoot, PatternRegexp),
		}
		regexpOpt := &Option{Name: ConditionRegexp, VerboseName: "condition regexp", Validate: stringValue}
		seek := &Option{Name: ConditionSeek, VerboseName: "seek", Validate: intValue(0)}
		bufferSize := &Option{Name: ConditionBufferSize, VerboseName: "buffer size", Validate: intValue(-1)}
		version := &Option{Name: ConditionVersion, VerboseName: "condition version", Validate: stringValue}

		for _, opt := range []*Option{condition, pattern, regexpOpt, seek, bufferSize, version} {
			m.add(opt)
		}

		entries := []TemplateEntry{
			{Option: condition},
			{Option: pattern},
			{Option: regexpOpt, Children: []*Option{seek, bufferSize}},
		}
		m.template = append(entries, m.template...)

		m.checks = append(m.checks, func(values Values) error {
			variant, _ := values[InstallCondition].(string)
			if variant != ConditionVersionDiverges {
				// Fields below belong to the version-diverges variant only.
				delete(values, ConditionPattern)
				delete(values, ConditionRegexp)
				delete(values, ConditionSeek)
				delete(values, ConditionBufferSize)
				delete(values, ConditionVersion)

				return nil
			}

			backend, ok := values[ConditionPattern].(string)
			if !ok {
				return &MissingOptionError{Mode: m.Name, Option: ConditionPattern}
			}

			if backend != PatternRegexp {
				delete(values, ConditionRegexp)
				delete(values, ConditionSeek)
				delete(values, ConditionBufferSize)

				return nil
			}

			if _, ok := values[ConditionRegexp].(string); !ok {
				return &MissingOptionError{Mode: m.Name, Option: ConditionRegexp}
			}

			if _, ok := values[ConditionSeek]; !ok {
				values[ConditionSeek] = int64(0)
			}

			if _, ok := values[ConditionBufferSize]; !ok {
				values[ConditionBufferSize] = int64(-1)
			}

			return nil
		})
	}
}
