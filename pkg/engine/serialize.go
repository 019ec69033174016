package engine

import (
	"encoding/json"
	"fmt"
	"io"
)

// EncodeDelta writes the delta as indented JSON.
func EncodeDelta(w io.Writer, d *StateDelta) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("failed to encode state delta: %w", err)
	}
	return nil
}

// DecodeDelta reads a delta written by EncodeDelta. The summary is
// recomputed from the partitions rather than trusted.
func DecodeDelta(data []byte) (*StateDelta, error) {
	d := newStateDelta()
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("failed to decode state delta: %w", err)
	}
	for _, group := range [][]*Action{d.Create, d.Update, d.Delete, d.NoChange} {
		for _, a := range group {
			if a.Key == "" {
				return nil, fmt.Errorf("failed to decode state delta: action without key")
			}
		}
	}
	d.recount()
	return d, nil
}
