package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idsync/pkg/engine"
	"idsync/pkg/protect"
)

func TestRunCounters(t *testing.T) {
	r := NewRun()
	r.RecordDelta(engine.Summary{Create: 2, Update: 1, NoChange: 3})
	r.RecordProtection(protect.Result{
		Protected: []protect.ProtectedEntry{
			{Decision: protect.Decision{Reason: protect.ReasonPattern}},
			{Decision: protect.Decision{Reason: protect.ReasonPattern}},
			{Decision: protect.Decision{Reason: protect.ReasonRole}},
		},
		LookupFailures: []protect.Decision{{Key: "x"}},
	})
	r.MalformedValue("accountEnabled")
	r.RecordRows(6)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.actions.WithLabelValues("CREATE")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.actions.WithLabelValues("DELETE")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.protected.WithLabelValues("pattern")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.lookupFails))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.malformed.WithLabelValues("accountEnabled")))
	assert.Equal(t, 6.0, testutil.ToFloat64(r.rows))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRun()
	r.RecordEnrichment(4, 1)

	path := filepath.Join(t.TempDir(), "idsync.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "idsync_enrichment_items 4")
	assert.Contains(t, string(data), "idsync_enrichment_orphans 1")
}
