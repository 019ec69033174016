package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"idsync/pkg/engine"
	"idsync/pkg/protect"
)

// Run holds the counters for one sync run on a private registry.
type Run struct {
	registry *prometheus.Registry

	actions     *prometheus.CounterVec
	protected   *prometheus.CounterVec
	lookupFails prometheus.Counter
	malformed   *prometheus.CounterVec
	items       prometheus.Gauge
	orphans     prometheus.Gauge
	rows        prometheus.Counter
	duration    prometheus.Gauge
}

// NewRun returns a run with every collector registered and at zero.
func NewRun() *Run {
	r := &Run{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "idsync",
				Subsystem: "reconcile",
				Name:      "actions_total",
				Help:      "Actions computed by kind.",
			},
			[]string{"kind"},
		),
		protected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "idsync",
				Subsystem: "protect",
				Name:      "vetoed_total",
				Help:      "Actions vetoed by protection, by reason.",
			},
			[]string{"reason"},
		),
		lookupFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "idsync",
			Subsystem: "protect",
			Name:      "role_lookup_failures_total",
			Help:      "Role lookups that failed and were treated as unprotected.",
		}),
		malformed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "idsync",
				Subsystem: "normalize",
				Name:      "malformed_values_total",
				Help:      "Values that could not be coerced to their declared type.",
			},
			[]string{"attribute"},
		),
		items: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "idsync",
			Subsystem: "enrichment",
			Name:      "items",
			Help:      "Enrichment items emitted by the run.",
		}),
		orphans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "idsync",
			Subsystem: "enrichment",
			Name:      "orphans",
			Help:      "Previously emitted items no longer produced.",
		}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "idsync",
			Subsystem: "input",
			Name:      "rows_total",
			Help:      "Desired records read.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "idsync",
			Name:      "run_duration_seconds",
			Help:      "Wall time of the run.",
		}),
	}
	r.registry.MustRegister(r.actions, r.protected, r.lookupFails, r.malformed, r.items, r.orphans, r.rows, r.duration)
	return r
}

// Registry exposes the run's registry as a gatherer.
func (r *Run) Registry() *prometheus.Registry {
	return r.registry
}

// RecordDelta adds the final per-kind action counts.
func (r *Run) RecordDelta(s engine.Summary) {
	r.actions.WithLabelValues(string(engine.KindCreate)).Add(float64(s.Create))
	r.actions.WithLabelValues(string(engine.KindUpdate)).Add(float64(s.Update))
	r.actions.WithLabelValues(string(engine.KindDelete)).Add(float64(s.Delete))
	r.actions.WithLabelValues(string(engine.KindNoChange)).Add(float64(s.NoChange))
}

// RecordProtection counts vetoes by reason and failed role lookups.
func (r *Run) RecordProtection(res protect.Result) {
	for _, p := range res.Protected {
		r.protected.WithLabelValues(p.Decision.Reason).Inc()
	}
	r.lookupFails.Add(float64(len(res.LookupFailures)))
}

// MalformedValue is suitable as schema.Normalizer.OnMalformed.
func (r *Run) MalformedValue(attr string) {
	r.malformed.WithLabelValues(attr).Inc()
}

// RecordRows counts desired records read.
func (r *Run) RecordRows(n int) {
	r.rows.Add(float64(n))
}

// RecordEnrichment sets the item and orphan gauges.
func (r *Run) RecordEnrichment(items, orphans int) {
	r.items.Set(float64(items))
	r.orphans.Set(float64(orphans))
}

// RecordDuration sets the run wall time.
func (r *Run) RecordDuration(seconds float64) {
	r.duration.Set(seconds)
}

// WriteTextfile writes the run's metrics in the node exporter textfile
// format.
func (r *Run) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
