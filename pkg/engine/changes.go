package engine

import (
	"idsync/pkg/schema"
)

// DetectChanges compares the primary attributes set on the desired record
// with the remote record. Only attributes with a non-empty desired value
// are compared; values present only remotely are never changes. Bool,
// number and object values that did not coerce to their type are skipped,
// the normalizer has already warned about them. Changes follow registry
// order.
func (e *Engine) DetectChanges(desired *schema.DesiredRecord, remote *schema.RemoteRecord) []FieldChange {
	var changes []FieldChange

	for _, desc := range e.registry.Primary() {
		raw, ok := desired.Get(desc.Name)
		if !ok {
			continue
		}
		want, ok := e.normalizer.Normalize(desc, raw)
		if !ok || !coerced(desc, want) {
			continue
		}

		have, _ := remote.Lookup(desc.RemotePath())
		if ValuesEqual(desc, want, have) {
			continue
		}

		fc := FieldChange{
			Field:    desc.Name,
			OldValue: have,
			NewValue: want,
		}
		if desc.RemotePath() != desc.Name {
			fc.RemotePath = desc.RemotePath()
		}
		changes = append(changes, fc)
	}

	return changes
}

// coerced reports whether v has the Go type the descriptor declares.
func coerced(desc schema.AttributeDescriptor, v any) bool {
	switch desc.ValueType {
	case schema.TypeBool:
		_, ok := v.(bool)
		return ok
	case schema.TypeNumber:
		_, ok := v.(float64)
		return ok
	case schema.TypeObject:
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}
