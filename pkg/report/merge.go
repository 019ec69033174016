package report

import (
	"sort"

	"idsync/pkg/engine"
	"idsync/pkg/parser"
	"idsync/pkg/protect"
)

// Entry is one row of the run report: one key with its final action.
type Entry struct {
	Key         string               `json:"key"`
	RemoteID    string               `json:"remoteId,omitempty"`
	Kind        engine.Kind          `json:"kind"`
	DemotedFrom engine.Kind          `json:"demotedFrom,omitempty"`
	Changes     []engine.FieldChange `json:"changes,omitempty"`
	Protection  *protect.Decision    `json:"protection,omitempty"`
	SourceRow   int                  `json:"sourceRow,omitempty"`
}

// EnrichmentSummary describes the enrichment side of a run.
type EnrichmentSummary struct {
	Enabled bool     `json:"enabled"`
	Items   int      `json:"items"`
	Orphans []string `json:"orphans"`
}

// Report is the compiled result of one run.
type Report struct {
	Entries        []Entry               `json:"entries"`
	Summary        engine.Summary        `json:"summary"`
	Enrichment     EnrichmentSummary     `json:"enrichment"`
	LookupFailures []protect.Decision    `json:"lookupFailures,omitempty"`
	Warnings       []parser.ParseWarning `json:"warnings,omitempty"`
	Unrecognized   []string              `json:"unrecognized,omitempty"`
	FieldCounts    map[string]int        `json:"fieldCounts"`
}

// Inputs are the pieces a report is merged from. Only Delta is required.
type Inputs struct {
	Delta          *engine.StateDelta
	Enrichment     EnrichmentSummary
	LookupFailures []protect.Decision
	Warnings       []parser.ParseWarning
	Unrecognized   []string
}

// Merge compiles a report. Entries follow the delta's partition order:
// creates, updates, deletes, then unchanged and protected.
func Merge(in Inputs) *Report {
	r := &Report{
		Entries:        make([]Entry, 0),
		Enrichment:     in.Enrichment,
		LookupFailures: in.LookupFailures,
		Warnings:       in.Warnings,
		Unrecognized:   in.Unrecognized,
		FieldCounts:    make(map[string]int),
	}
	if r.Enrichment.Orphans == nil {
		r.Enrichment.Orphans = []string{}
	}
	if in.Delta == nil {
		return r
	}
	r.Summary = in.Delta.Summary

	for _, a := range in.Delta.Actions() {
		entry := Entry{
			Key:         a.Key,
			RemoteID:    a.RemoteID(),
			Kind:        a.Kind,
			DemotedFrom: a.DemotedFrom,
			Changes:     a.Changes,
			Protection:  a.Protection,
		}
		if a.Desired != nil {
			entry.SourceRow = a.Desired.Row
		}
		if a.Kind == engine.KindUpdate {
			for _, c := range a.Changes {
				r.FieldCounts[c.Field]++
			}
		}
		r.Entries = append(r.Entries, entry)
	}

	return r
}

// ProtectedEntries returns the demoted entries.
func (r *Report) ProtectedEntries() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Protection != nil {
			out = append(out, e)
		}
	}
	return out
}

// TopFields returns updated field names by descending change count, ties
// broken by name.
func (r *Report) TopFields() []string {
	fields := make([]string, 0, len(r.FieldCounts))
	for f := range r.FieldCounts {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool {
		ci, cj := r.FieldCounts[fields[i]], r.FieldCounts[fields[j]]
		if ci != cj {
			return ci > cj
		}
		return fields[i] < fields[j]
	})
	return fields
}
