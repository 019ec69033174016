package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idsync/pkg/config"
	"idsync/pkg/engine"
	"idsync/pkg/enrich"
)

const people = `UPN,Job Title,Department,Skills,About Me,Shoe Size
alice@corp.com,CTO,Eng,"['Go','SQL']",Builds things,41
bob@corp.com,Engineer,Eng,,,
admin@corp.com,Root,IT,,,
`

const snapshot = `{"value":[
	{"id":"1","userPrincipalName":"alice@corp.com","jobTitle":"CEO","department":"Eng"},
	{"id":"2","userPrincipalName":"bob@corp.com","jobTitle":"Engineer","department":"Eng"},
	{"id":"3","userPrincipalName":"admin@corp.com","jobTitle":"Admin","department":"IT"},
	{"id":"4","userPrincipalName":"gone@corp.com"},
	{"id":"5","userPrincipalName":"boss@corp.com"}
]}`

const roles = `{"5":["Global Administrator"]}`

func setup(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	cfg := config.Default()
	cfg.Input.CSV = write("people.csv", people)
	cfg.Remote.Snapshot = write("snapshot.json", snapshot)
	cfg.Remote.Roles = write("roles.json", roles)
	cfg.Protection.Patterns = []string{"admin@*"}
	cfg.Protection.RoleProtection = true
	cfg.Protection.ProtectedRoles = []string{"administrator"}
	cfg.Enrichment.Enabled = true
	cfg.Enrichment.StatePath = filepath.Join(dir, "state", "items.json")
	cfg.Enrichment.ItemsOut = filepath.Join(dir, "out", "items.json")
	cfg.Output.DeltaOut = filepath.Join(dir, "out", "delta.json")
	cfg.Output.ReportOut = filepath.Join(dir, "out", "report.json")
	cfg.Output.MetricsTextfile = filepath.Join(dir, "out", "idsync.prom")
	return cfg
}

func keys(actions []*engine.Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Key)
	}
	return out
}

func TestRun(t *testing.T) {
	cfg := setup(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	res, err := Run(context.Background(), cfg, Options{Now: func() time.Time { return now }}, zerolog.Nop())
	require.NoError(t, err)

	d := res.Delta
	assert.Empty(t, d.Create)
	assert.Equal(t, []string{"alice@corp.com"}, keys(d.Update))
	assert.Equal(t, []string{"gone@corp.com"}, keys(d.Delete))
	assert.ElementsMatch(t, []string{"bob@corp.com", "admin@corp.com", "boss@corp.com"}, keys(d.NoChange))
	assert.Equal(t, 2, d.Summary.Protected)

	require.Len(t, res.Items, 1)
	assert.Equal(t, enrich.ItemID("alice@corp.com"), res.Items[0].ItemID)
	assert.Empty(t, res.Orphans)
	assert.Equal(t, []string{"Shoe Size"}, res.Report.Unrecognized)

	for _, path := range []string{cfg.Output.DeltaOut, cfg.Output.ReportOut, cfg.Output.MetricsTextfile, cfg.Enrichment.ItemsOut} {
		_, err := os.Stat(path)
		require.NoError(t, err, path)
	}

	saved, err := LoadDelta(cfg.Output.DeltaOut)
	require.NoError(t, err)
	assert.Equal(t, d.Summary, saved.Summary)
	assert.Len(t, saved.ProtectedEntries(), 2)

	st, err := enrich.NewFileStore(cfg.Enrichment.StatePath).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{res.Items[0].ItemID}, st.ItemIDs)
	assert.True(t, st.LastUpdated.Equal(now))
}

func TestRunDetectsOrphans(t *testing.T) {
	cfg := setup(t)
	store := enrich.NewFileStore(cfg.Enrichment.StatePath)
	require.NoError(t, store.Save(context.Background(), enrich.ItemState{
		ConnectionID: cfg.Enrichment.ConnectionID,
		ItemIDs:      []string{enrich.ItemID("alice@corp.com"), enrich.ItemID("former@corp.com")},
	}))

	res, err := Run(context.Background(), cfg, Options{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{enrich.ItemID("former@corp.com")}, res.Orphans)
	assert.Equal(t, []string{enrich.ItemID("former@corp.com")}, res.Report.Enrichment.Orphans)

	res, err = Run(context.Background(), cfg, Options{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, res.Orphans)
}

func TestRunOtherConnectionStateIgnored(t *testing.T) {
	cfg := setup(t)
	store := enrich.NewFileStore(cfg.Enrichment.StatePath)
	require.NoError(t, store.Save(context.Background(), enrich.ItemState{
		ConnectionID: "someone-else",
		ItemIDs:      []string{"x"},
	}))

	res, err := Run(context.Background(), cfg, Options{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, res.Orphans)
}

func TestRunRejectsIncompleteSnapshot(t *testing.T) {
	cfg := setup(t)
	require.NoError(t, os.WriteFile(cfg.Remote.Snapshot, []byte(`{"value":[],"@odata.nextLink":"https://next"}`), 0o644))

	_, err := Run(context.Background(), cfg, Options{}, zerolog.Nop())
	require.Error(t, err)
}

func TestRunInvalidConfig(t *testing.T) {
	_, err := Run(context.Background(), config.Default(), Options{}, zerolog.Nop())
	require.Error(t, err)
}

func TestRunBadExtensions(t *testing.T) {
	cfg := setup(t)
	path := filepath.Join(t.TempDir(), "ext.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\nattributes:\n  - name: tags\n    type: array\n    channel: enrichment\n"), 0o644))
	cfg.Schema.Extensions = path

	_, err := Run(context.Background(), cfg, Options{}, zerolog.Nop())
	require.Error(t, err)
}

func TestLoadDeltaErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadDelta(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	path := filepath.Join(dir, "delta.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"update":[{"kind":"UPDATE"}]}`), 0o644))
	_, err = LoadDelta(path)
	require.Error(t, err)
}
