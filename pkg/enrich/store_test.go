package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "items.json")
	store := NewFileStore(path)

	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.ItemIDs)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, ItemState{ConnectionID: "c1", ItemIDs: []string{"a", "b"}, LastUpdated: now}))
	require.NoError(t, store.Save(ctx, ItemState{ConnectionID: "c1", ItemIDs: []string{"b"}, LastUpdated: now}))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	st, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c1", st.ConnectionID)
	assert.Equal(t, []string{"b"}, st.ItemIDs)
	assert.True(t, st.LastUpdated.Equal(now))
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)

	err = NewFileStore("").Save(context.Background(), ItemState{})
	require.Error(t, err)
}

type beginnerFunc func(ctx context.Context) (pgx.Tx, error)

func (f beginnerFunc) Begin(ctx context.Context) (pgx.Tx, error) { return f(ctx) }

type stubRow struct {
	err  error
	scan func(dest ...any) error
}

func (r *stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.scan != nil {
		return r.scan(dest...)
	}
	return nil
}

type stubTx struct {
	execErr   error
	commitErr error
	row       pgx.Row

	execSQLs  []string
	execArgs  [][]any
	committed bool
}

func (t *stubTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *stubTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}
func (t *stubTx) Rollback(context.Context) error { return nil }
func (t *stubTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *stubTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *stubTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *stubTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *stubTx) Conn() *pgx.Conn { return nil }

func (t *stubTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execSQLs = append(t.execSQLs, sql)
	t.execArgs = append(t.execArgs, args)
	if t.execErr != nil {
		return pgconn.CommandTag{}, t.execErr
	}
	return pgconn.CommandTag{}, nil
}

func (t *stubTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (t *stubTx) QueryRow(context.Context, string, ...any) pgx.Row {
	if t.row != nil {
		return t.row
	}
	return &stubRow{err: pgx.ErrNoRows}
}

func TestPGStoreLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("begin error", func(t *testing.T) {
		store := NewPGStore(beginnerFunc(func(context.Context) (pgx.Tx, error) {
			return nil, errors.New("begin")
		}), "c1")
		_, err := store.Load(ctx)
		require.Error(t, err)
	})

	t.Run("row error", func(t *testing.T) {
		tx := &stubTx{row: &stubRow{err: errors.New("row")}}
		_, err := NewPGStore(beginnerFunc(func(context.Context) (pgx.Tx, error) { return tx, nil }), "c1").Load(ctx)
		require.Error(t, err)
	})

	t.Run("ok", func(t *testing.T) {
		updated := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		tx := &stubTx{row: &stubRow{scan: func(dest ...any) error {
			*(dest[0].(*[]byte)) = []byte(`["a","b"]`)
			*(dest[1].(**time.Time)) = &updated
			return nil
		}}}
		st, err := NewPGStore(beginnerFunc(func(context.Context) (pgx.Tx, error) { return tx, nil }), "c1").Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, ItemState{ConnectionID: "c1", ItemIDs: []string{"a", "b"}, LastUpdated: updated}, st)
		assert.True(t, tx.committed)
	})

	t.Run("empty", func(t *testing.T) {
		tx := &stubTx{row: &stubRow{scan: func(dest ...any) error {
			*(dest[0].(*[]byte)) = []byte(`[]`)
			return nil
		}}}
		st, err := NewPGStore(beginnerFunc(func(context.Context) (pgx.Tx, error) { return tx, nil }), "c1").Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, st.ItemIDs)
		assert.True(t, st.LastUpdated.IsZero())
	})
}

func TestPGStoreSave(t *testing.T) {
	ctx := context.Background()
	state := ItemState{ConnectionID: "c1", ItemIDs: []string{"a", "b"}, LastUpdated: time.Now().UTC()}

	t.Run("exec error", func(t *testing.T) {
		tx := &stubTx{execErr: errors.New("exec")}
		err := NewPGStore(beginnerFunc(func(context.Context) (pgx.Tx, error) { return tx, nil }), "c1").Save(ctx, state)
		require.Error(t, err)
		assert.False(t, tx.committed)
	})

	t.Run("commit error", func(t *testing.T) {
		tx := &stubTx{commitErr: errors.New("commit")}
		err := NewPGStore(beginnerFunc(func(context.Context) (pgx.Tx, error) { return tx, nil }), "c1").Save(ctx, state)
		require.Error(t, err)
	})

	t.Run("wrong connection", func(t *testing.T) {
		err := NewPGStore(beginnerFunc(func(context.Context) (pgx.Tx, error) { return &stubTx{}, nil }), "c2").Save(ctx, state)
		require.Error(t, err)
	})

	t.Run("ok", func(t *testing.T) {
		tx := &stubTx{}
		err := NewPGStore(beginnerFunc(func(context.Context) (pgx.Tx, error) { return tx, nil }), "c1").Save(ctx, state)
		require.NoError(t, err)
		require.Len(t, tx.execSQLs, 2)
		assert.Equal(t, []string{"a", "b"}, tx.execArgs[1][1])
		assert.True(t, tx.committed)
	})

	t.Run("empty state only clears", func(t *testing.T) {
		tx := &stubTx{}
		err := NewPGStore(beginnerFunc(func(context.Context) (pgx.Tx, error) { return tx, nil }), "c1").Save(ctx, ItemState{})
		require.NoError(t, err)
		assert.Len(t, tx.execSQLs, 1)
	})
}

func TestItemStateJSON(t *testing.T) {
	data, err := json.Marshal(ItemState{ConnectionID: "c1", ItemIDs: []string{"a"}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"itemIds":["a"]`)
}
