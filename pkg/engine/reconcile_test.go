package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idsync/pkg/protect"
	"idsync/pkg/schema"
)

func desired(key string, attrs ...string) *schema.DesiredRecord {
	rec := schema.NewDesiredRecord(key, 0)
	rec.Set(schema.IdentityAttribute, key)
	for i := 0; i+1 < len(attrs); i += 2 {
		rec.Set(attrs[i], attrs[i+1])
	}
	return rec
}

func remote(key, id string, attrs map[string]any) *schema.RemoteRecord {
	if attrs == nil {
		attrs = map[string]any{}
	}
	attrs[schema.IdentityAttribute] = key
	return &schema.RemoteRecord{ID: id, Key: key, Attributes: attrs}
}

func newEngine() *Engine {
	return New(schema.DefaultRegistry(), nil, zerolog.Nop())
}

func keys(actions []*Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Key)
	}
	return out
}

func TestReconcileCreate(t *testing.T) {
	d := newEngine().Reconcile([]*schema.DesiredRecord{desired("u1", "jobTitle", "CEO")}, map[string]*schema.RemoteRecord{})

	assert.Equal(t, []string{"u1"}, keys(d.Create))
	assert.Empty(t, d.Update)
	assert.Empty(t, d.Delete)
	assert.Empty(t, d.Create[0].Changes)
	assert.Equal(t, Summary{Create: 1, Total: 1}, d.Summary)
}

func TestReconcileUpdate(t *testing.T) {
	d := newEngine().Reconcile(
		[]*schema.DesiredRecord{desired("u1", "jobTitle", "CTO")},
		map[string]*schema.RemoteRecord{"u1": remote("u1", "id-1", map[string]any{"jobTitle": "CEO"})},
	)

	require.Len(t, d.Update, 1)
	assert.Equal(t, []FieldChange{{Field: "jobTitle", OldValue: "CEO", NewValue: "CTO"}}, d.Update[0].Changes)
	assert.Empty(t, d.Create)
	assert.Empty(t, d.Delete)
}

func TestReconcileProtectedDelete(t *testing.T) {
	d := newEngine().Reconcile(nil, map[string]*schema.RemoteRecord{
		"admin@corp.com": remote("admin@corp.com", "id-1", nil),
		"u2@corp.com":    remote("u2@corp.com", "id-2", nil),
	})
	require.Equal(t, []string{"admin@corp.com", "u2@corp.com"}, keys(d.Delete))

	f, err := protect.New(protect.Config{Patterns: []string{"admin@*"}}, nil, zerolog.Nop())
	require.NoError(t, err)
	res, err := f.Filter(context.Background(), d.Candidates())
	require.NoError(t, err)
	ApplyProtection(d, res)

	assert.Equal(t, []string{"u2@corp.com"}, keys(d.Delete))
	require.Equal(t, []string{"admin@corp.com"}, keys(d.NoChange))
	demoted := d.NoChange[0]
	assert.Equal(t, KindNoChange, demoted.Kind)
	assert.Equal(t, KindDelete, demoted.DemotedFrom)
	require.NotNil(t, demoted.Protection)
	assert.Equal(t, protect.ReasonPattern, demoted.Protection.Reason)
	assert.Equal(t, 1, d.Summary.Protected)
	assert.Equal(t, 2, d.Summary.Total)
}

func TestReconcileIdempotent(t *testing.T) {
	e := newEngine()
	want := []*schema.DesiredRecord{
		desired("u1", "jobTitle", "CEO", "accountEnabled", "yes", "businessPhones", "+1 555, +1 556"),
		desired("u2", "department", "Eng", "employeeHireDate", "2021-03-01"),
	}
	have := map[string]*schema.RemoteRecord{
		"u1": remote("u1", "1", map[string]any{
			"jobTitle":       "CEO",
			"accountEnabled": true,
			"businessPhones": []any{"+1 556", "+1 555"},
		}),
		"u2": remote("u2", "2", map[string]any{
			"department":       "Eng",
			"employeeHireDate": "2021-03-01T00:00:00Z",
			"city":             "Oslo",
		}),
	}

	for i := 0; i < 2; i++ {
		d := e.Reconcile(want, have)
		assert.Empty(t, d.Create)
		assert.Empty(t, d.Update)
		assert.Empty(t, d.Delete)
		assert.Equal(t, []string{"u1", "u2"}, keys(d.NoChange))
	}
}

func TestReconcilePartition(t *testing.T) {
	want := []*schema.DesiredRecord{
		desired("a", "jobTitle", "X"),
		desired("b", "jobTitle", "Y"),
		desired("b", "jobTitle", "dup"),
		desired("c"),
		desired(""),
	}
	have := map[string]*schema.RemoteRecord{
		"b": remote("b", "2", map[string]any{"jobTitle": "Z"}),
		"c": remote("c", "3", nil),
		"d": remote("d", "4", nil),
	}

	d := newEngine().Reconcile(want, have)

	assert.Equal(t, []string{"a"}, keys(d.Create))
	assert.Equal(t, []string{"b"}, keys(d.Update))
	assert.Equal(t, "Y", d.Update[0].Changes[0].NewValue)
	assert.Equal(t, []string{"d"}, keys(d.Delete))
	assert.Equal(t, []string{"c"}, keys(d.NoChange))

	seen := map[string]int{}
	for _, a := range d.Actions() {
		seen[a.Key]++
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1, "d": 1}, seen)
	assert.Equal(t, 4, d.Summary.Total)
}

func TestReconcileEmptyCellIsNotClear(t *testing.T) {
	d := newEngine().Reconcile(
		[]*schema.DesiredRecord{desired("u1", "jobTitle", "  ", "department", "")},
		map[string]*schema.RemoteRecord{"u1": remote("u1", "1", map[string]any{"jobTitle": "CEO", "department": "Ops"})},
	)
	assert.Equal(t, []string{"u1"}, keys(d.NoChange))
}

func TestReconcileSkipsUncoercedValues(t *testing.T) {
	rem := map[string]*schema.RemoteRecord{"u1": remote("u1", "1", map[string]any{"accountEnabled": true})}

	d := newEngine().Reconcile([]*schema.DesiredRecord{desired("u1", "accountEnabled", "maybe")}, rem)
	assert.Equal(t, []string{"u1"}, keys(d.NoChange))

	d = newEngine().Reconcile([]*schema.DesiredRecord{desired("u1", "accountEnabled", "maybe", "jobTitle", "CTO")}, rem)
	require.Len(t, d.Update, 1)
	require.Len(t, d.Update[0].Changes, 1)
	assert.Equal(t, "jobTitle", d.Update[0].Changes[0].Field)

	d = newEngine().Reconcile([]*schema.DesiredRecord{desired("u1", "accountEnabled", "no")}, rem)
	require.Len(t, d.Update, 1)
	assert.Equal(t, false, d.Update[0].Changes[0].NewValue)
}

func TestReconcileNestedPath(t *testing.T) {
	d := newEngine().Reconcile(
		[]*schema.DesiredRecord{desired("u1", "costCenter", "CC-2", "division", "R&D")},
		map[string]*schema.RemoteRecord{"u1": remote("u1", "1", map[string]any{
			"employeeOrgData": map[string]any{"costCenter": "CC-1", "division": "R&D"},
		})},
	)

	require.Len(t, d.Update, 1)
	assert.Equal(t, []FieldChange{{
		Field:      "costCenter",
		RemotePath: "employeeOrgData.costCenter",
		OldValue:   "CC-1",
		NewValue:   "CC-2",
	}}, d.Update[0].Changes)
}

func TestReconcileIgnoresEnrichmentAndUnknown(t *testing.T) {
	d := newEngine().Reconcile(
		[]*schema.DesiredRecord{desired("u1", "skills", "Go,SQL", "Shoe Size", "42")},
		map[string]*schema.RemoteRecord{"u1": remote("u1", "1", nil)},
	)
	assert.Equal(t, []string{"u1"}, keys(d.NoChange))
}

func TestDeltaRoundTrip(t *testing.T) {
	d := newEngine().Reconcile(
		[]*schema.DesiredRecord{desired("u1", "jobTitle", "CTO"), desired("u3")},
		map[string]*schema.RemoteRecord{
			"u1": remote("u1", "1", map[string]any{"jobTitle": "CEO"}),
			"u2": remote("u2", "2", nil),
		},
	)

	var buf bytes.Buffer
	require.NoError(t, EncodeDelta(&buf, d))

	got, err := DecodeDelta(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, d.Summary, got.Summary)
	require.Len(t, got.Create, 1)
	v, ok := got.Create[0].Desired.Get(schema.IdentityAttribute)
	require.True(t, ok)
	assert.Equal(t, "u3", v)

	_, err = DecodeDelta([]byte(`{"create":[{"kind":"CREATE"}]}`))
	require.Error(t, err)
}
