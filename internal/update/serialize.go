package update

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/efota/efu/internal/installset"
	"github.com/efota/efu/internal/object"
	"github.com/efota/efu/internal/option"
)

// writeJSON persists a serialized form with sorted keys and stable
// indentation. Byte-for-byte stability matters for diffing and for the
// round-trip fixtures.
func writeJSON(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encode package: %w", err)
	}

	data = append(data, '\n')

	if err := os.WriteFile(filepath.Clean(path), data, 0o644); err != nil {
		return fmt.Errorf("write package file: %w", err)
	}

	return nil
}

// Dump writes the package template, version included.
func (p *Package) Dump(path string) error {
	return writeJSON(p.Template(), path)
}

// Export writes the package template with the version nulled out: an
// exported package is a reusable skeleton, not tied to one release.
func (p *Package) Export(path string) error {
	template := p.Template()
	template[versionKey] = nil

	return writeJSON(template, path)
}

// FromFile reconstructs a package from a dumped template. The topology is
// inferred from the shape of the nested object list, not a stored flag.
func FromFile(registry *option.Registry, path string, chunkSize int64) (*Package, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read package file: %w", err)
	}

	var dump map[string]any
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("decode package file: %w", err)
	}

	return fromSerialized(registry, dump, chunkSize, false)
}

// FromMetadata reconstructs a package from server-bound metadata,
// folding the resolved install-if-different block back into the raw
// install-condition options.
func FromMetadata(registry *option.Registry, metadata map[string]any, chunkSize int64) (*Package, error) {
	return fromSerialized(registry, metadata, chunkSize, true)
}

func fromSerialized(registry *option.Registry, dump map[string]any, chunkSize int64, isMetadata bool) (*Package, error) {
	sets, err := nestedObjects(dump[objectsKey])
	if err != nil {
		return nil, err
	}

	mode, err := installset.ModeFromSetCount(len(sets))
	if err != nil {
		return nil, err
	}

	pkg := New(registry, mode, chunkSize)
	pkg.Version, _ = dump[versionKey].(string)
	pkg.Product, _ = dump[productKey].(string)

	hardware, err := hardwareFromSerialized(dump[SupportedHardwareKey])
	if err != nil {
		return nil, err
	}

	pkg.Hardware = hardware

	for i, set := range sets {
		setIndex := i
		if mode == installset.Single {
			setIndex = installset.NoSet
		}

		for _, raw := range set {
			filename, objMode, values, err := objectValues(raw, isMetadata)
			if err != nil {
				return nil, err
			}

			if _, err := pkg.Objects.Create(filename, objMode, values, setIndex); err != nil {
				return nil, fmt.Errorf("restore object %s: %w", filename, err)
			}
		}
	}

	return pkg, nil
}

// nestedObjects normalizes the nested object list shape.
func nestedObjects(raw any) ([][]map[string]any, error) {
	switch v := raw.(type) {
	case [][]map[string]any:
		return v, nil
	case []any:
		out := make([][]map[string]any, 0, len(v))

		for _, rawSet := range v {
			set, ok := rawSet.([]any)
			if !ok {
				return nil, fmt.Errorf("expected an installation set list, got %T", rawSet)
			}

			objs := make([]map[string]any, 0, len(set))

			for _, rawObj := range set {
				obj, ok := rawObj.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("expected an object map, got %T", rawObj)
				}

				objs = append(objs, obj)
			}

			out = append(out, objs)
		}

		return out, nil
	case nil:
		return nil, installset.ErrNoSets
	default:
		return nil, fmt.Errorf("expected a nested object list, got %T", raw)
	}
}

// objectValues splits one serialized object into the constructor
// arguments, undoing the metadata-only transforms when needed.
func objectValues(raw map[string]any, isMetadata bool) (filename, mode string, values option.Values, err error) {
	mode, _ = raw[object.ModeKey].(string)
	filename, _ = raw[option.Filename].(string)

	values = make(option.Values, len(raw))

	for key, value := range raw {
		switch key {
		case object.ModeKey, option.Filename, object.InstallIfDifferent:
			continue
		case option.Compressed, option.UncompressedSize:
			// Recomputed from the payload header, never carried over.
			if isMetadata {
				continue
			}
		}

		values[key] = value
	}

	if isMetadata {
		if err := foldInstallCondition(raw[object.InstallIfDifferent], values); err != nil {
			return "", "", nil, fmt.Errorf("object %s: %w", filename, err)
		}
	}

	return filename, mode, values, nil
}

// foldInstallCondition converts a resolved install-if-different block
// back into the raw install-condition option family.
func foldInstallCondition(raw any, values option.Values) error {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		if v != "sha256sum" {
			return fmt.Errorf("unknown install-if-different value %q", v)
		}

		values[option.InstallCondition] = option.ConditionContentDiverges

		return nil
	case map[string]any:
		values[option.InstallCondition] = option.ConditionVersionDiverges

		if version, ok := v["version"].(string); ok {
			values[option.ConditionVersion] = version
		}

		switch pattern := v["pattern"].(type) {
		case string:
			values[option.ConditionPattern] = pattern
		case map[string]any:
			values[option.ConditionPattern] = option.PatternRegexp
			values[option.ConditionRegexp] = pattern["regexp"]
			values[option.ConditionSeek] = pattern["seek"]
			values[option.ConditionBufferSize] = pattern["buffer-size"]
		default:
			return fmt.Errorf("unsupported install-if-different pattern %T", pattern)
		}

		return nil
	default:
		return fmt.Errorf("unsupported install-if-different form %T", raw)
	}
}
