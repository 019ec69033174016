package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"idsync/pkg/schema"
)

var (
	// ErrIncompleteSnapshot means the snapshot is a partial page. Reconciling
	// it would turn every missing entity into a delete.
	ErrIncompleteSnapshot = errors.New("remote: snapshot is incomplete")
	ErrDuplicateRemoteKey = errors.New("remote: duplicate key in snapshot")
)

type page struct {
	Value    []map[string]any `json:"value"`
	Complete *bool            `json:"complete"`
	NextLink string           `json:"@odata.nextLink"`
}

// Fetcher reads the current remote state from a JSON snapshot file. The
// file is either an array of entity objects or a single page of the form
// {"value": [...]}.
type Fetcher struct {
	Path     string
	Identity string
	log      zerolog.Logger
}

// NewFetcher returns a fetcher keyed by identity, the remote attribute
// holding the principal key. Empty means userPrincipalName.
func NewFetcher(path, identity string, log zerolog.Logger) *Fetcher {
	if identity == "" {
		identity = schema.IdentityAttribute
	}
	return &Fetcher{Path: path, Identity: identity, log: log}
}

// Fetch loads the snapshot keyed by principal key.
func (f *Fetcher) Fetch(ctx context.Context) (map[string]*schema.RemoteRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read remote snapshot: %w", err)
	}
	return ParseSnapshot(data, f.Identity, f.log)
}

// ParseSnapshot decodes a snapshot. Entities without a key are skipped with
// a warning; a repeated key is an error.
func ParseSnapshot(data []byte, identity string, log zerolog.Logger) (map[string]*schema.RemoteRecord, error) {
	if identity == "" {
		identity = schema.IdentityAttribute
	}

	trimmed := bytes.TrimSpace(data)
	var entities []map[string]any
	switch {
	case len(trimmed) == 0:
		return nil, errors.New("remote snapshot is empty")
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &entities); err != nil {
			return nil, fmt.Errorf("failed to decode remote snapshot: %w", err)
		}
	default:
		var p page
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return nil, fmt.Errorf("failed to decode remote snapshot: %w", err)
		}
		if p.Complete != nil && !*p.Complete {
			return nil, fmt.Errorf("%w: marked complete=false", ErrIncompleteSnapshot)
		}
		if p.NextLink != "" {
			return nil, fmt.Errorf("%w: carries a next page link", ErrIncompleteSnapshot)
		}
		entities = p.Value
	}

	out := make(map[string]*schema.RemoteRecord, len(entities))
	for i, attrs := range entities {
		if attrs == nil {
			continue
		}
		rec := &schema.RemoteRecord{Attributes: attrs}
		if id, ok := attrs["id"].(string); ok {
			rec.ID = id
		}
		raw, _ := rec.Lookup(identity)
		key, _ := raw.(string)
		key = strings.TrimSpace(key)
		if key == "" {
			log.Warn().Int("index", i).Str("id", rec.ID).Str("identity", identity).Msg("remote entity without key, skipping")
			continue
		}
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRemoteKey, key)
		}
		rec.Key = key
		out[key] = rec
	}

	log.Debug().Int("entities", len(out)).Msg("loaded remote snapshot")
	return out, nil
}
