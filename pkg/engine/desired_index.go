package engine

import (
	"strings"

	"idsync/pkg/schema"
)

// DesiredIndex provides lookup of desired records by key while keeping
// input order.
type DesiredIndex struct {
	ByKey map[string]*schema.DesiredRecord `json:"-"`
	Order []*schema.DesiredRecord          `json:"records"`
	Stats IndexStats                       `json:"stats"`
}

// IndexStats contains aggregate statistics about the desired index.
type IndexStats struct {
	TotalRecords int      `json:"totalRecords"`
	Indexed      int      `json:"indexed"`
	MissingKey   int      `json:"missingKey"`
	Duplicates   []string `json:"duplicates,omitempty"`
}

// BuildDesiredIndex indexes records by key. The first occurrence of a key
// wins; later duplicates and records with an empty key are counted and
// skipped.
func BuildDesiredIndex(records []*schema.DesiredRecord) *DesiredIndex {
	index := &DesiredIndex{
		ByKey: make(map[string]*schema.DesiredRecord, len(records)),
		Order: make([]*schema.DesiredRecord, 0, len(records)),
	}
	index.Stats.TotalRecords = len(records)

	for _, rec := range records {
		if rec == nil || strings.TrimSpace(rec.Key) == "" {
			index.Stats.MissingKey++
			continue
		}
		if _, exists := index.ByKey[rec.Key]; exists {
			index.Stats.Duplicates = append(index.Stats.Duplicates, rec.Key)
			continue
		}
		index.ByKey[rec.Key] = rec
		index.Order = append(index.Order, rec)
	}
	index.Stats.Indexed = len(index.Order)

	return index
}
