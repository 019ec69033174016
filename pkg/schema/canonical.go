package schema

import "encoding/json"

// ValueType is the declared type of an attribute value.
type ValueType string

const (
	TypeString ValueType = "string"
	TypeBool   ValueType = "bool"
	TypeNumber ValueType = "number"
	TypeDate   ValueType = "date"
	TypeArray  ValueType = "array"
	TypeObject ValueType = "object"
)

// Channel says where an attribute is written: onto the primary directory
// record, into the enrichment store, or nowhere.
type Channel string

const (
	ChannelPrimary      Channel = "primary"
	ChannelEnrichment   Channel = "enrichment"
	ChannelUnrecognized Channel = "unrecognized"
)

// AttributeDescriptor describes one known attribute.
type AttributeDescriptor struct {
	Name      string    `json:"name" yaml:"name"`
	ValueType ValueType `json:"valueType" yaml:"type"`
	Channel   Channel   `json:"channel" yaml:"channel"`
	MaxLength int       `json:"maxLength,omitempty" yaml:"max_length"`

	// ExternalLabel is only valid on enrichment attributes. It selects the
	// structured serialization path in the enrichment store.
	ExternalLabel string `json:"externalLabel,omitempty" yaml:"label"`

	// RemoteName is the attribute path on the remote record. Dots descend
	// into nested objects. Empty means Name.
	RemoteName string `json:"remoteName,omitempty" yaml:"remote_name"`

	// Aliases are alternative column headers that resolve to Name.
	Aliases []string `json:"aliases,omitempty" yaml:"aliases"`
}

// RemotePath returns the remote-side attribute path.
func (d AttributeDescriptor) RemotePath() string {
	if d.RemoteName != "" {
		return d.RemoteName
	}
	return d.Name
}

// Labeled reports whether the attribute carries an external label.
func (d AttributeDescriptor) Labeled() bool {
	return d.ExternalLabel != ""
}

// DesiredRecord is one row of the desired state. Attribute order follows the
// source columns.
type DesiredRecord struct {
	Key    string   `json:"key"`
	Row    int      `json:"row"`
	names  []string
	values map[string]string
}

// NewDesiredRecord builds a record for key. Attributes are added with Set.
func NewDesiredRecord(key string, row int) *DesiredRecord {
	return &DesiredRecord{
		Key:    key,
		Row:    row,
		values: make(map[string]string),
	}
}

// Set records the raw value for name. A repeated name keeps its first
// position and takes the new value.
func (r *DesiredRecord) Set(name, raw string) {
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = raw
}

// Get returns the raw value for name.
func (r *DesiredRecord) Get(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Names returns attribute names in insertion order.
func (r *DesiredRecord) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of attributes.
func (r *DesiredRecord) Len() int {
	return len(r.names)
}

type attributeJSON struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type desiredRecordJSON struct {
	Key        string          `json:"key"`
	Row        int             `json:"row"`
	Attributes []attributeJSON `json:"attributes"`
}

// MarshalJSON encodes the attributes as an ordered list.
func (r *DesiredRecord) MarshalJSON() ([]byte, error) {
	out := desiredRecordJSON{
		Key:        r.Key,
		Row:        r.Row,
		Attributes: make([]attributeJSON, 0, len(r.names)),
	}
	for _, name := range r.names {
		out.Attributes = append(out.Attributes, attributeJSON{Name: name, Value: r.values[name]})
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a record written by MarshalJSON.
func (r *DesiredRecord) UnmarshalJSON(data []byte) error {
	var in desiredRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = *NewDesiredRecord(in.Key, in.Row)
	for _, a := range in.Attributes {
		r.Set(a.Name, a.Value)
	}
	return nil
}

// RemoteRecord is one entity as reported by the remote directory.
type RemoteRecord struct {
	ID         string         `json:"id"`
	Key        string         `json:"key"`
	Attributes map[string]any `json:"attributes"`
}

// Lookup resolves a dotted attribute path against the record.
func (r *RemoteRecord) Lookup(path string) (any, bool) {
	if r == nil || r.Attributes == nil {
		return nil, false
	}
	if v, ok := r.Attributes[path]; ok {
		return v, true
	}
	var cur any = r.Attributes
	start := 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '.' {
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[path[start:i]]
		if !ok {
			return nil, false
		}
		start = i + 1
	}
	return cur, true
}
