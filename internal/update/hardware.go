package update

import (
	"fmt"
	"sort"
	"strings"
)

// SupportedHardwareKey is the serialization key for the hardware list.
const SupportedHardwareKey = "supported-hardware"

// anyHardware is the serialized form of "no restriction".
const anyHardware = "any"

// HardwareManager tracks which hardware identifiers (and revisions) a
// package supports. An empty manager means the package installs anywhere.
type HardwareManager struct {
	hardware map[string][]string
}

// NewHardwareManager returns an empty manager.
func NewHardwareManager() *HardwareManager {
	return &HardwareManager{
		hardware: make(map[string][]string),
	}
}

// Add registers a hardware identifier with its supported revisions.
// Adding the same name again replaces its revision list.
func (h *HardwareManager) Add(name string, revisions []string) {
	revs := append([]string(nil), revisions...)
	sort.Strings(revs)
	h.hardware[name] = revs
}

// Remove forgets a hardware identifier. Unknown names are reported.
func (h *HardwareManager) Remove(name string) error {
	if _, ok := h.hardware[name]; !ok {
		return fmt.Errorf("hardware %q is not supported by this package", name)
	}

	delete(h.hardware, name)

	return nil
}

// Count returns the number of registered hardware identifiers.
func (h *HardwareManager) Count() int {
	return len(h.hardware)
}

// Serialized returns the wire form shared by template and metadata: the
// string "any" when unrestricted, otherwise a name-to-revisions map.
func (h *HardwareManager) Serialized() any {
	if len(h.hardware) == 0 {
		return anyHardware
	}

	out := make(map[string]any, len(h.hardware))
	for name, revs := range h.hardware {
		out[name] = append([]string(nil), revs...)
	}

	return out
}

// hardwareFromSerialized rebuilds a manager from the wire form.
func hardwareFromSerialized(raw any) (*HardwareManager, error) {
	h := NewHardwareManager()

	switch v := raw.(type) {
	case nil:
		return h, nil
	case string:
		if v != anyHardware {
			return nil, fmt.Errorf("unknown supported-hardware value %q", v)
		}

		return h, nil
	case map[string]any:
		for name, rawRevs := range v {
			revs, err := stringList(rawRevs)
			if err != nil {
				return nil, fmt.Errorf("supported-hardware %q: %w", name, err)
			}

			h.Add(name, revs)
		}

		return h, nil
	default:
		return nil, fmt.Errorf("unsupported supported-hardware form %T", raw)
	}
}

func stringList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))

		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected a string, got %T", item)
			}

			out = append(out, s)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of strings, got %T", raw)
	}
}

// String renders the hardware list for display.
func (h *HardwareManager) String() string {
	if len(h.hardware) == 0 {
		return "Supported hardware: all"
	}

	names := make([]string, 0, len(h.hardware))
	for name := range h.hardware {
		names = append(names, name)
	}

	sort.Strings(names)

	var b strings.Builder

	b.WriteString("Supported hardware:")

	for _, name := range names {
		fmt.Fprintf(&b, "\n    %s", name)

		if revs := h.hardware[name]; len(revs) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(revs, ", "))
		}
	}

	return b.String()
}
