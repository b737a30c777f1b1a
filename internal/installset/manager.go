package installset

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/efota/efu/internal/object"
	"github.com/efota/efu/internal/option"
	"github.com/efota/efu/internal/progress"
)

// SetMode is the deployment topology of a package.
type SetMode int

const (
	// Single deploys from one installation set.
	Single SetMode = iota + 1
	// ActiveInactive deploys from two sets, one per boot partition.
	ActiveInactive
)

// String returns the serialized mode name.
func (m SetMode) String() string {
	if m == ActiveInactive {
		return "active-inactive"
	}

	return "single"
}

// setCount returns how many installation sets the mode carries.
func (m SetMode) setCount() int {
	if m == ActiveInactive {
		return 2
	}

	return 1
}

// NoSet marks the set index as deliberately absent. It is the only valid
// index in Single mode and never valid in ActiveInactive mode.
const NoSet = -1

// Addressing errors. They are a distinct class from option validation
// errors: the caller passed a structurally wrong argument, not an invalid
// option value.
var (
	// ErrSetIndexRequired is returned when an ActiveInactive operation
	// does not name its installation set.
	ErrSetIndexRequired = errors.New("installation set index is required in active-inactive mode")
	// ErrSetIndexForbidden is returned when a Single operation names a set.
	ErrSetIndexForbidden = errors.New("installation set index must be omitted in single mode")
	// ErrSetOutOfRange is returned for a set index outside the topology.
	ErrSetOutOfRange = errors.New("installation set does not exist")
	// ErrObjectNotFound is returned for an object index outside its set.
	ErrObjectNotFound = errors.New("object does not exist")
	// ErrNoSets is returned when a mode is inferred from an empty
	// collection of sets.
	ErrNoSets = errors.New("cannot infer mode from an empty object collection")
)

// ModeFromSetCount infers the topology from the outer length of a nested
// object collection.
func ModeFromSetCount(n int) (SetMode, error) {
	switch n {
	case 1:
		return Single, nil
	case 2:
		return ActiveInactive, nil
	case 0:
		return 0, ErrNoSets
	default:
		return 0, fmt.Errorf("unsupported number of installation sets: %d", n)
	}
}

// ModeFromName parses a serialized mode name.
func ModeFromName(name string) (SetMode, error) {
	switch name {
	case "single":
		return Single, nil
	case "active-inactive":
		return ActiveInactive, nil
	default:
		return 0, fmt.Errorf("unknown installation set mode %q", name)
	}
}

// Manager owns the installation sets of one package. Objects are owned by
// exactly one slot; removal through the manager is their only destruction
// path.
type Manager struct {
	registry  *option.Registry
	mode      SetMode
	sets      [][]*object.Object
	chunkSize int64
}

// NewManager creates a manager with the fixed topology. The topology
// cannot change afterwards; switching between single and active-inactive
// means building a new package.
func NewManager(registry *option.Registry, mode SetMode, chunkSize int64) *Manager {
	return &Manager{
		registry:  registry,
		mode:      mode,
		sets:      make([][]*object.Object, mode.setCount()),
		chunkSize: chunkSize,
	}
}

// Mode returns the topology.
func (m *Manager) Mode() SetMode {
	return m.mode
}

// SetCount returns the number of installation sets.
func (m *Manager) SetCount() int {
	return len(m.sets)
}

// ObjectCount returns the number of objects in the given set.
func (m *Manager) ObjectCount(set int) (int, error) {
	resolved, err := m.resolveSet(set)
	if err != nil {
		return 0, err
	}

	return len(m.sets[resolved]), nil
}

// resolveSet enforces the index-addressing contract and maps the caller's
// set argument onto a concrete slice index.
func (m *Manager) resolveSet(set int) (int, error) {
	if m.mode == Single {
		if set != NoSet {
			return 0, ErrSetIndexForbidden
		}

		return 0, nil
	}

	if set == NoSet {
		return 0, ErrSetIndexRequired
	}

	if set < 0 || set >= len(m.sets) {
		return 0, fmt.Errorf("%w: %d", ErrSetOutOfRange, set)
	}

	return set, nil
}

// Create validates and appends a new object to the addressed set and
// returns its position there. The position is a local identifier, not the
// server identity.
func (m *Manager) Create(filename, mode string, values option.Values, set int) (int, error) {
	resolved, err := m.resolveSet(set)
	if err != nil {
		return 0, err
	}

	obj, err := object.New(m.registry, filename, mode, values, m.chunkSize)
	if err != nil {
		return 0, err
	}

	m.sets[resolved] = append(m.sets[resolved], obj)

	return len(m.sets[resolved]) - 1, nil
}

// Add appends an already-built object. Used when reconstructing a package
// from a serialized form.
func (m *Manager) Add(obj *object.Object, set int) error {
	resolved, err := m.resolveSet(set)
	if err != nil {
		return err
	}

	m.sets[resolved] = append(m.sets[resolved], obj)

	return nil
}

// Get returns the object at the given position of the addressed set.
func (m *Manager) Get(index, set int) (*object.Object, error) {
	resolved, err := m.resolveSet(set)
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(m.sets[resolved]) {
		return nil, fmt.Errorf("%w: index %d", ErrObjectNotFound, index)
	}

	return m.sets[resolved][index], nil
}

// Update applies a single-option change to the addressed object only.
func (m *Manager) Update(index int, name string, value any, set int) error {
	obj, err := m.Get(index, set)
	if err != nil {
		return err
	}

	return obj.Update(name, value)
}

// Remove deletes the object at the given position of the addressed set.
func (m *Manager) Remove(index, set int) error {
	resolved, err := m.resolveSet(set)
	if err != nil {
		return err
	}

	if index < 0 || index >= len(m.sets[resolved]) {
		return fmt.Errorf("%w: index %d", ErrObjectNotFound, index)
	}

	m.sets[resolved] = append(m.sets[resolved][:index], m.sets[resolved][index+1:]...)

	return nil
}

// All returns every object across every set, in set order then insertion
// order.
func (m *Manager) All() []*object.Object {
	var out []*object.Object
	for _, set := range m.sets {
		out = append(out, set...)
	}

	return out
}

// FirstSet returns the objects of the first installation set. Active and
// inactive sets carry the same payloads under different target options, so
// transfers only ever need the first one.
func (m *Manager) FirstSet() []*object.Object {
	if len(m.sets) == 0 {
		return nil
	}

	return m.sets[0]
}

// Load computes digests for every object.
func (m *Manager) Load(ctx context.Context, reporter progress.Reporter) error {
	for _, obj := range m.All() {
		if err := obj.Load(ctx, reporter); err != nil {
			return err
		}
	}

	return nil
}

// Metadata returns the nested server-bound representation: one inner
// sequence per installation set.
func (m *Manager) Metadata(ctx context.Context, reporter progress.Reporter) ([][]map[string]any, error) {
	out := make([][]map[string]any, len(m.sets))

	for i, set := range m.sets {
		out[i] = make([]map[string]any, 0, len(set))

		for _, obj := range set {
			md, err := obj.Metadata(ctx, reporter)
			if err != nil {
				return nil, err
			}

			out[i] = append(out[i], md)
		}
	}

	return out, nil
}

// Template returns the nested editable representation.
func (m *Manager) Template() [][]map[string]any {
	out := make([][]map[string]any, len(m.sets))

	for i, set := range m.sets {
		out[i] = make([]map[string]any, 0, len(set))

		for _, obj := range set {
			out[i] = append(out[i], obj.Template())
		}
	}

	return out
}

// String renders every set in order. The layout matches the persisted
// template fixtures and must stay stable.
func (m *Manager) String() string {
	var b strings.Builder

	for i, set := range m.sets {
		if i > 0 {
			b.WriteString("\n\n")
		}

		fmt.Fprintf(&b, "Installation Set %d:", i)

		if len(set) == 0 {
			b.WriteString("\n\n    (empty)")
			continue
		}

		for j, obj := range set {
			fmt.Fprintf(&b, "\n\n    %d# %s", j, indentLines(obj.String()))
		}
	}

	return b.String()
}

// indentLines shifts every continuation line to align under the object
// header.
func indentLines(s string) string {
	return strings.ReplaceAll(s, "\n", "\n    ")
}
