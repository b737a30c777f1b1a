package option

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// Values maps option names to validated values. Keys are the same names
// used in the template and metadata serializations.
type Values map[string]any

// Clone returns a shallow copy of the value set.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}

	return out
}

// Option describes a single named field an object may carry.
type Option struct {
	// Name is the registry lookup key and the serialization key.
	Name string
	// VerboseName is the human-readable label used in string rendering.
	VerboseName string
	// Default is applied when the option is absent. A nil default means
	// the option stays unset unless provided.
	Default any
	// Volatile marks computed options (hash, size) that never appear in
	// the template form.
	Volatile bool
	// Validate normalizes and checks a proposed value.
	Validate func(value any) (any, error)
	// Humanize renders a value for display. Defaults to fmt.Sprint.
	Humanize func(value any) string
}

// HumanizeValue renders the value using the option's Humanize hook.
func (o *Option) HumanizeValue(value any) string {
	if o.Humanize != nil {
		return o.Humanize(value)
	}

	return fmt.Sprint(value)
}

// UnknownOptionError reports an option name that is not declared for a mode.
type UnknownOptionError struct {
	// Mode is the installation mode that rejected the option.
	Mode string
	// Option is the unknown option name.
	Option string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("mode %q does not support option %q", e.Mode, e.Option)
}

// InvalidValueError reports a value rejected by an option's validator.
type InvalidValueError struct {
	// Option is the option whose validator failed.
	Option string
	// Reason describes why the value was rejected.
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for option %q: %s", e.Option, e.Reason)
}

// MissingOptionError reports a required option absent from a value set.
type MissingOptionError struct {
	// Mode is the installation mode requiring the option.
	Mode string
	// Option is the missing option name.
	Option string
}

func (e *MissingOptionError) Error() string {
	return fmt.Sprintf("mode %q requires option %q", e.Mode, e.Option)
}

// stringValue accepts any string.
func stringValue(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected a string, got %T", value)
	}

	return s, nil
}

// pathValue accepts a non-empty filesystem path.
func pathValue(value any) (any, error) {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil, fmt.Errorf("expected a non-empty path, got %v", value)
	}

	return s, nil
}

// absolutePathValue accepts a non-empty absolute path.
func absolutePathValue(value any) (any, error) {
	v, err := pathValue(value)
	if err != nil {
		return nil, err
	}

	if s, _ := v.(string); !filepath.IsAbs(s) {
		return nil, fmt.Errorf("path %q is not absolute", s)
	}

	return v, nil
}

// boolValue accepts a boolean.
func boolValue(value any) (any, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("expected a boolean, got %T", value)
	}

	return b, nil
}

// intValue accepts integral values not below the given minimum. JSON
// unmarshals numbers into float64, so integral floats are accepted too.
func intValue(minimum int64) func(any) (any, error) {
	return func(value any) (any, error) {
		var n int64

		switch v := value.(type) {
		case int:
			n = int64(v)
		case int64:
			n = v
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("expected an integer, got %v", v)
			}

			n = int64(v)
		default:
			return nil, fmt.Errorf("expected an integer, got %T", value)
		}

		if n < minimum {
			return nil, fmt.Errorf("value %d is below the minimum %d", n, minimum)
		}

		return n, nil
	}
}

// oneOfValue accepts only values from the allowed set.
func oneOfValue(allowed ...string) func(any) (any, error) {
	return func(value any) (any, error) {
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", value)
		}

		for _, a := range allowed {
			if s == a {
				return s, nil
			}
		}

		return nil, fmt.Errorf("%q is not one of %s", s, strings.Join(allowed, ", "))
	}
}

// humanizeBool renders booleans as yes/no for string output.
func humanizeBool(value any) string {
	if b, ok := value.(bool); ok && b {
		return "yes"
	}

	return "no"
}
