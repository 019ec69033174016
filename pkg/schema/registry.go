package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidDescriptor   = errors.New("schema: invalid attribute descriptor")
	ErrDuplicateAttribute  = errors.New("schema: duplicate attribute")
	ErrUnlabeledCollection = errors.New("schema: unlabeled enrichment attribute cannot be an array")
)

// External labels understood by the enrichment store.
const (
	LabelAccount        = "personAccount"
	LabelNote           = "personNote"
	LabelSkills         = "personSkills"
	LabelCertifications = "personCertifications"
	LabelAwards         = "personAwards"
	LabelProjects       = "personProjects"
	LabelInterests      = "personInterests"
	LabelWebSite        = "personWebSite"
)

// AccountsProperty is the reserved enrichment property linking an item back
// to its directory account. It always carries LabelAccount.
const AccountsProperty = "accounts"

var knownLabels = map[string]bool{
	LabelNote:           true,
	LabelSkills:         true,
	LabelCertifications: true,
	LabelAwards:         true,
	LabelProjects:       true,
	LabelInterests:      true,
	LabelWebSite:        true,
}

// IsNoteLabel reports whether values under label are free-text annotations.
func IsNoteLabel(label string) bool {
	return label == LabelNote
}

// Registry is the immutable attribute table for a run. It is safe for
// concurrent readers.
type Registry struct {
	descs  []AttributeDescriptor
	byName map[string]int
}

// NewRegistry validates descs and builds a registry. Any conflict is a
// programmer or configuration error and should stop the process.
func NewRegistry(descs ...AttributeDescriptor) (*Registry, error) {
	reg := &Registry{
		descs:  make([]AttributeDescriptor, 0, len(descs)),
		byName: make(map[string]int, len(descs)*2),
	}
	for _, d := range descs {
		if err := validateDescriptor(d); err != nil {
			return nil, err
		}
		d.Aliases = append([]string(nil), d.Aliases...)
		idx := len(reg.descs)
		for _, n := range append([]string{d.Name}, d.Aliases...) {
			key := normalizeHeader(n)
			if key == "" {
				continue
			}
			if prev, ok := reg.byName[key]; ok && prev != idx {
				return nil, fmt.Errorf("%w: %q conflicts with %q", ErrDuplicateAttribute, n, reg.descs[prev].Name)
			}
			reg.byName[key] = idx
		}
		reg.descs = append(reg.descs, d)
	}
	return reg, nil
}

// MustRegistry is NewRegistry for built-in tables.
func MustRegistry(descs ...AttributeDescriptor) *Registry {
	reg, err := NewRegistry(descs...)
	if err != nil {
		panic(err)
	}
	return reg
}

func validateDescriptor(d AttributeDescriptor) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	}
	if d.Name == AccountsProperty {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidDescriptor, d.Name)
	}
	switch d.ValueType {
	case TypeString, TypeBool, TypeNumber, TypeDate, TypeArray, TypeObject:
	default:
		return fmt.Errorf("%w: %q has unknown type %q", ErrInvalidDescriptor, d.Name, d.ValueType)
	}
	if d.MaxLength < 0 {
		return fmt.Errorf("%w: %q has negative max length", ErrInvalidDescriptor, d.Name)
	}
	switch d.Channel {
	case ChannelPrimary:
		if d.ExternalLabel != "" {
			return fmt.Errorf("%w: %q is primary but carries label %q", ErrInvalidDescriptor, d.Name, d.ExternalLabel)
		}
	case ChannelEnrichment:
		if d.ExternalLabel == "" {
			if d.ValueType == TypeArray {
				return fmt.Errorf("%w: %q", ErrUnlabeledCollection, d.Name)
			}
			if d.ValueType != TypeString {
				return fmt.Errorf("%w: unlabeled %q must be a string", ErrInvalidDescriptor, d.Name)
			}
			return nil
		}
		if d.ExternalLabel == LabelAccount {
			return fmt.Errorf("%w: label %q is reserved for %q", ErrInvalidDescriptor, LabelAccount, AccountsProperty)
		}
		if !knownLabels[d.ExternalLabel] {
			return fmt.Errorf("%w: %q has unknown label %q", ErrInvalidDescriptor, d.Name, d.ExternalLabel)
		}
		if d.ValueType != TypeString && d.ValueType != TypeArray {
			return fmt.Errorf("%w: labeled %q must be a string or array", ErrInvalidDescriptor, d.Name)
		}
	default:
		return fmt.Errorf("%w: %q has channel %q", ErrInvalidDescriptor, d.Name, d.Channel)
	}
	return nil
}

// Classify returns the descriptor for name. Unknown names come back with
// ChannelUnrecognized.
func (r *Registry) Classify(name string) AttributeDescriptor {
	if idx, ok := r.byName[normalizeHeader(name)]; ok {
		return r.descs[idx]
	}
	return AttributeDescriptor{Name: name, ValueType: TypeString, Channel: ChannelUnrecognized}
}

// Lookup is Classify without the unrecognized fallback.
func (r *Registry) Lookup(name string) (AttributeDescriptor, bool) {
	idx, ok := r.byName[normalizeHeader(name)]
	if !ok {
		return AttributeDescriptor{}, false
	}
	return r.descs[idx], true
}

// Descriptors returns every descriptor in registration order.
func (r *Registry) Descriptors() []AttributeDescriptor {
	out := make([]AttributeDescriptor, len(r.descs))
	copy(out, r.descs)
	return out
}

// Primary returns the primary-channel descriptors in registration order.
func (r *Registry) Primary() []AttributeDescriptor {
	return r.byChannel(ChannelPrimary)
}

// Enrichment returns the enrichment-channel descriptors in registration order.
func (r *Registry) Enrichment() []AttributeDescriptor {
	return r.byChannel(ChannelEnrichment)
}

func (r *Registry) byChannel(ch Channel) []AttributeDescriptor {
	var out []AttributeDescriptor
	for _, d := range r.descs {
		if d.Channel == ch {
			out = append(out, d)
		}
	}
	return out
}
