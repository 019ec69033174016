package schema

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Extensions is the on-disk declaration of tenant-specific attributes.
//
//	version: 1
//	attributes:
//	  - name: badgeNumber
//	    type: string
//	    channel: primary
//	    remote_name: onPremisesExtensionAttributes.extensionAttribute1
type Extensions struct {
	Version    int                   `yaml:"version"`
	Attributes []AttributeDescriptor `yaml:"attributes"`
}

// ParseExtensionsYAML decodes an extensions document. Descriptor validity is
// checked later by NewRegistry.
func ParseExtensionsYAML(b []byte) (Extensions, error) {
	var ext Extensions
	if err := yaml.Unmarshal(b, &ext); err != nil {
		return Extensions{}, fmt.Errorf("schema extensions: %w", err)
	}
	if ext.Version != 1 {
		return Extensions{}, errors.New("schema extensions: unsupported version")
	}
	for i := range ext.Attributes {
		if ext.Attributes[i].ValueType == "" {
			ext.Attributes[i].ValueType = TypeString
		}
	}
	return ext, nil
}

// LoadExtensionsYAML reads and decodes path.
func LoadExtensionsYAML(path string) (Extensions, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Extensions{}, fmt.Errorf("schema extensions load failed (%s): %w", path, err)
	}
	return ParseExtensionsYAML(b)
}

// BuildRegistry validates the default table plus ext into one registry.
// Extensions append after the defaults, so a name or alias that collides
// with a built-in attribute is rejected rather than silently overriding it.
func BuildRegistry(ext Extensions) (*Registry, error) {
	descs := DefaultDescriptors()
	descs = append(descs, ext.Attributes...)
	return NewRegistry(descs...)
}
