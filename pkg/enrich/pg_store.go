package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// CreateItemStateTable creates the table PGStore reads and writes.
const CreateItemStateTable = `
CREATE TABLE IF NOT EXISTS idsync_enrichment_items (
	connection_id text NOT NULL,
	item_id text NOT NULL,
	updated_at timestamptz NOT NULL,
	PRIMARY KEY (connection_id, item_id)
)`

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStore keeps ItemState in Postgres, one row per item id. Save rewrites
// the connection's rows inside a single transaction.
type PGStore struct {
	pool         pgBeginner
	connectionID string
}

// NewPGStore returns a store for connectionID. pool is typically a
// *pgx.Conn.
func NewPGStore(pool pgBeginner, connectionID string) *PGStore {
	return &PGStore{pool: pool, connectionID: connectionID}
}

// EnsureSchema creates the backing table when it is missing.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, CreateItemStateTable); err != nil {
		return fmt.Errorf("failed to create item state table: %w", err)
	}
	return tx.Commit(ctx)
}

// Load returns the connection's item ids, sorted, with the latest update
// time.
func (s *PGStore) Load(ctx context.Context) (ItemState, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ItemState{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var (
		raw     []byte
		updated *time.Time
	)
	if err := tx.QueryRow(ctx, `
SELECT COALESCE(jsonb_agg(item_id ORDER BY item_id), '[]'::jsonb), max(updated_at)
FROM idsync_enrichment_items
WHERE connection_id = $1
`, s.connectionID).Scan(&raw, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ItemState{ConnectionID: s.connectionID}, nil
		}
		return ItemState{}, fmt.Errorf("failed to load item state: %w", err)
	}

	state := ItemState{ConnectionID: s.connectionID}
	if err := json.Unmarshal(raw, &state.ItemIDs); err != nil {
		return ItemState{}, fmt.Errorf("failed to decode item state: %w", err)
	}
	if updated != nil {
		state.LastUpdated = updated.UTC()
	}

	if err := tx.Commit(ctx); err != nil {
		return ItemState{}, err
	}
	return state, nil
}

// Save replaces the connection's rows with state. State for another
// connection is rejected.
func (s *PGStore) Save(ctx context.Context, state ItemState) error {
	if state.ConnectionID != "" && state.ConnectionID != s.connectionID {
		return fmt.Errorf("item state for connection %q saved to store for %q", state.ConnectionID, s.connectionID)
	}
	ids := state.ItemIDs
	if ids == nil {
		ids = []string{}
	}
	updated := state.LastUpdated
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `DELETE FROM idsync_enrichment_items WHERE connection_id = $1`, s.connectionID); err != nil {
		return fmt.Errorf("failed to clear item state: %w", err)
	}
	if len(ids) > 0 {
		if _, err := tx.Exec(ctx, `
INSERT INTO idsync_enrichment_items (connection_id, item_id, updated_at)
SELECT $1, id, $3 FROM unnest($2::text[]) AS t(id)
ON CONFLICT DO NOTHING
`, s.connectionID, ids, updated); err != nil {
			return fmt.Errorf("failed to write item state: %w", err)
		}
	}

	return tx.Commit(ctx)
}
