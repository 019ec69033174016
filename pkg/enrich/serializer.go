package enrich

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"idsync/pkg/schema"
)

// itemNamespace scopes item ids so the same key always yields the same id.
var itemNamespace = uuid.Must(uuid.Parse("8f0e2a51-63c4-4b7e-9d2f-1c5a7e3b9046"))

// CollectionAnnotation is the type annotation value for labeled arrays.
const CollectionAnnotation = "Collection(String)"

// ExternalItem is one entity's enrichment payload. Property values are
// either string or []string. An item always replaces any earlier item with
// the same id.
type ExternalItem struct {
	ItemID         string         `json:"id"`
	Key            string         `json:"key"`
	AccountLinkage string         `json:"accountLinkage"`
	Properties     map[string]any `json:"properties"`
}

// SchemaProperty is one property of the enrichment connection schema.
type SchemaProperty struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`
}

// ItemID returns the stable item id for key.
func ItemID(key string) string {
	return uuid.NewSHA1(itemNamespace, []byte(key)).String()
}

type displayName struct {
	DisplayName string `json:"displayName"`
}

type noteDetail struct {
	Detail struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"detail"`
}

type accountRef struct {
	UserPrincipalName string `json:"userPrincipalName"`
}

// Serializer turns the enrichment attributes of desired records into
// external items.
type Serializer struct {
	registry   *schema.Registry
	normalizer *schema.Normalizer
	log        zerolog.Logger
}

// NewSerializer returns a serializer over reg. A nil normalizer gets one
// logging to log.
func NewSerializer(reg *schema.Registry, norm *schema.Normalizer, log zerolog.Logger) *Serializer {
	if norm == nil {
		norm = schema.NewNormalizer(log)
	}
	return &Serializer{registry: reg, normalizer: norm, log: log}
}

// Schema lists the properties the enrichment connection must declare.
func (s *Serializer) Schema() []SchemaProperty {
	out := make([]SchemaProperty, 0, len(s.registry.Enrichment())+1)
	out = append(out, SchemaProperty{Name: schema.AccountsProperty, Type: "string", Label: schema.LabelAccount})
	for _, desc := range s.registry.Enrichment() {
		p := SchemaProperty{Name: desc.Name, Type: "string", Label: desc.ExternalLabel}
		if desc.Labeled() && desc.ValueType == schema.TypeArray {
			p.Type = "stringCollection"
		}
		out = append(out, p)
	}
	return out
}

// Serialize builds the item for rec. It returns false when no enrichment
// attribute carries a value.
func (s *Serializer) Serialize(rec *schema.DesiredRecord) (*ExternalItem, bool) {
	props := make(map[string]any)

	for _, desc := range s.registry.Enrichment() {
		raw, ok := rec.Get(desc.Name)
		if !ok {
			continue
		}
		v, ok := s.normalizer.Normalize(desc, raw)
		if !ok {
			continue
		}

		switch {
		case !desc.Labeled():
			props[desc.Name] = schema.Stringify(v)

		case desc.ValueType == schema.TypeArray:
			elems, ok := v.([]string)
			if !ok {
				elems = []string{schema.Stringify(v)}
			}
			wrapped := make([]string, 0, len(elems))
			for _, e := range elems {
				if strings.TrimSpace(e) == "" {
					continue
				}
				wrapped = append(wrapped, encode(displayName{DisplayName: e}))
			}
			if len(wrapped) == 0 {
				continue
			}
			props[desc.Name] = wrapped
			props[desc.Name+"@odata.type"] = CollectionAnnotation

		case schema.IsNoteLabel(desc.ExternalLabel):
			var n noteDetail
			n.Detail.ContentType = "text"
			n.Detail.Content = schema.Stringify(v)
			props[desc.Name] = encode(n)

		default:
			props[desc.Name] = encode(displayName{DisplayName: schema.Stringify(v)})
		}
	}

	if len(props) == 0 {
		return nil, false
	}

	linkage := encode(accountRef{UserPrincipalName: rec.Key})
	props[schema.AccountsProperty] = linkage

	return &ExternalItem{
		ItemID:         ItemID(rec.Key),
		Key:            rec.Key,
		AccountLinkage: linkage,
		Properties:     props,
	}, true
}

// SerializeAll serializes every record, in input order, skipping records
// without enrichment values and repeated keys.
func (s *Serializer) SerializeAll(records []*schema.DesiredRecord) []*ExternalItem {
	items := make([]*ExternalItem, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec == nil || rec.Key == "" || seen[rec.Key] {
			continue
		}
		seen[rec.Key] = true
		if item, ok := s.Serialize(rec); ok {
			items = append(items, item)
		}
	}
	s.log.Debug().Int("items", len(items)).Int("records", len(records)).Msg("serialized enrichment items")
	return items
}

// encode renders v as compact JSON without HTML escaping.
func encode(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
