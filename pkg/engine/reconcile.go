package engine

import (
	"sort"

	"github.com/rs/zerolog"

	"idsync/pkg/schema"
)

// Engine computes the action set between desired and remote state. It holds
// no per-run state and is safe to reuse.
type Engine struct {
	registry   *schema.Registry
	normalizer *schema.Normalizer
	log        zerolog.Logger
}

// New returns an engine over reg. A nil normalizer gets one logging to log.
func New(reg *schema.Registry, norm *schema.Normalizer, log zerolog.Logger) *Engine {
	if norm == nil {
		norm = schema.NewNormalizer(log)
	}
	return &Engine{registry: reg, normalizer: norm, log: log}
}

// Reconcile joins the desired records against the remote snapshot, keyed by
// principal key. The result has exactly one action per distinct key:
//  1. desired key with no remote record -> CREATE
//  2. desired key with a remote record -> UPDATE when any primary attribute
//     differs, NO_CHANGE otherwise
//  3. remote key absent from the desired set -> DELETE, sorted by key
//
// remote must be complete. A partial snapshot turns every missing entity
// into a DELETE.
func (e *Engine) Reconcile(desired []*schema.DesiredRecord, remote map[string]*schema.RemoteRecord) *StateDelta {
	delta := newStateDelta()

	index := BuildDesiredIndex(desired)
	for _, key := range index.Stats.Duplicates {
		e.log.Warn().Str("key", key).Msg("duplicate key in desired state, keeping first occurrence")
	}
	if index.Stats.MissingKey > 0 {
		e.log.Warn().Int("count", index.Stats.MissingKey).Msg("desired records without a key skipped")
	}

	for _, rec := range index.Order {
		rem, ok := remote[rec.Key]
		if !ok || rem == nil {
			delta.add(&Action{Kind: KindCreate, Key: rec.Key, Desired: rec})
			continue
		}

		changes := e.DetectChanges(rec, rem)
		kind := KindNoChange
		if len(changes) > 0 {
			kind = KindUpdate
		}
		delta.add(&Action{
			Kind:    kind,
			Key:     rec.Key,
			Desired: rec,
			Remote:  rem,
			Changes: changes,
		})
	}

	orphans := make([]string, 0)
	for key, rem := range remote {
		if rem == nil {
			continue
		}
		if _, ok := index.ByKey[key]; !ok {
			orphans = append(orphans, key)
		}
	}
	sort.Strings(orphans)
	for _, key := range orphans {
		delta.add(&Action{Kind: KindDelete, Key: key, Remote: remote[key]})
	}

	delta.recount()

	e.log.Debug().
		Int("create", delta.Summary.Create).
		Int("update", delta.Summary.Update).
		Int("delete", delta.Summary.Delete).
		Int("no_change", delta.Summary.NoChange).
		Msg("reconciled")

	return delta
}
