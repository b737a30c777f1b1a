package update

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/efota/efu/internal/installset"
	"github.com/efota/efu/internal/option"
	"github.com/efota/efu/internal/progress"
)

// Serialization keys shared by the template and metadata forms.
const (
	productKey = "product"
	versionKey = "version"
	objectsKey = "objects"
)

// Validation errors for incomplete packages.
var (
	errNoProduct = errors.New("package has no product")
	errNoVersion = errors.New("package has no version")
	errNoObjects = errors.New("package has no objects")
)

// Package is one firmware-update package under construction or review.
// It exclusively owns its installation set manager and its hardware list.
type Package struct {
	registry *option.Registry

	// UID is the server-issued package identity. It is empty until a
	// successful metadata upload and must never be guessed or reused
	// across unrelated packages.
	UID string
	// Version is the release this package delivers.
	Version string
	// Product identifies the product line the package belongs to.
	Product string
	// Objects holds the installation sets.
	Objects *installset.Manager
	// Hardware lists the supported hardware identifiers.
	Hardware *HardwareManager
}

// New creates an empty package with the given deployment topology.
func New(registry *option.Registry, mode installset.SetMode, chunkSize int64) *Package {
	return &Package{
		registry: registry,
		Objects:  installset.NewManager(registry, mode, chunkSize),
		Hardware: NewHardwareManager(),
	}
}

// Template returns the editable representation: product, version and the
// nested non-volatile object options. Computed fields and the server
// identity are deliberately absent, so a template can be produced without
// reading any payload content.
func (p *Package) Template() map[string]any {
	out := map[string]any{
		objectsKey: p.Objects.Template(),
	}

	if p.Product != "" {
		out[productKey] = p.Product
	} else {
		out[productKey] = nil
	}

	if p.Version != "" {
		out[versionKey] = p.Version
	} else {
		out[versionKey] = nil
	}

	if p.Hardware.Count() > 0 {
		out[SupportedHardwareKey] = p.Hardware.Serialized()
	}

	return out
}

// Metadata returns the server-bound representation with every computed
// field resolved. Objects not yet loaded are loaded on demand.
func (p *Package) Metadata(ctx context.Context, reporter progress.Reporter) (map[string]any, error) {
	objects, err := p.Objects.Metadata(ctx, reporter)
	if err != nil {
		return nil, err
	}

	out := map[string]any{
		productKey:           p.Product,
		versionKey:           p.Version,
		objectsKey:           objects,
		SupportedHardwareKey: p.Hardware.Serialized(),
	}

	return out, nil
}

// ValidateMetadata checks that a computed metadata map is complete enough
// to be accepted by the server: identity fields present and every object
// carrying its content identity.
func ValidateMetadata(metadata map[string]any) error {
	if s, _ := metadata[productKey].(string); s == "" {
		return errNoProduct
	}

	if s, _ := metadata[versionKey].(string); s == "" {
		return errNoVersion
	}

	sets, err := nestedObjects(metadata[objectsKey])
	if err != nil {
		return err
	}

	var total int

	for i, set := range sets {
		for j, obj := range set {
			if s, _ := obj["sha256sum"].(string); s == "" {
				return fmt.Errorf("object %d of installation set %d has no sha256sum", j, i)
			}

			if _, ok := obj["size"]; !ok {
				return fmt.Errorf("object %d of installation set %d has no size", j, i)
			}

			total++
		}
	}

	if total == 0 {
		return errNoObjects
	}

	return nil
}

// String renders the package for display.
func (p *Package) String() string {
	product := p.Product
	if product == "" {
		product = "(not set)"
	}

	version := p.Version
	if version == "" {
		version = "(not set)"
	}

	return strings.Join([]string{
		"Product: " + product,
		"Version: " + version,
		p.Hardware.String(),
		p.Objects.String(),
	}, "\n")
}
