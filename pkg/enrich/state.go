package enrich

import (
	"context"
	"sort"
	"time"
)

// ItemState is the set of item ids emitted by the last run for a
// connection.
type ItemState struct {
	ConnectionID string    `json:"connectionId"`
	ItemIDs      []string  `json:"itemIds"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// StateStore persists ItemState. Save always replaces the whole state.
type StateStore interface {
	Load(ctx context.Context) (ItemState, error)
	Save(ctx context.Context, state ItemState) error
}

// DetectOrphans returns the ids in prev that items no longer produce,
// sorted.
func DetectOrphans(prev ItemState, items []*ExternalItem) []string {
	current := make(map[string]struct{}, len(items))
	for _, item := range items {
		current[item.ItemID] = struct{}{}
	}

	orphans := make([]string, 0)
	seen := make(map[string]struct{}, len(prev.ItemIDs))
	for _, id := range prev.ItemIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := current[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	return orphans
}

// NextState returns the state to persist after emitting items.
func NextState(connectionID string, items []*ExternalItem, now time.Time) ItemState {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ItemID)
	}
	sort.Strings(ids)
	return ItemState{
		ConnectionID: connectionID,
		ItemIDs:      ids,
		LastUpdated:  now.UTC(),
	}
}
