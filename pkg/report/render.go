package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"idsync/pkg/engine"
	"idsync/pkg/schema"
)

// Printer renders a report for a terminal.
type Printer struct {
	w       io.Writer
	noColor bool

	// MaxChanges caps the field changes listed per entry. Zero lists all.
	MaxChanges int
}

// NewPrinter returns a printer writing to w.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	return &Printer{w: w, noColor: noColor, MaxChanges: 5}
}

func (p *Printer) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if p.noColor {
		c.DisableColor()
	}
	return c
}

// Render writes the summary, the mutating actions, protected entities and
// enrichment results. Unchanged entities are only counted.
func (p *Printer) Render(r *Report) error {
	var b strings.Builder

	header := p.paint(color.FgCyan, color.Bold)
	header.Fprintln(&b, "Reconciliation summary")
	fmt.Fprintf(&b, "  %s %d  %s %d  %s %d  %s %d  %s %d\n",
		p.paint(color.FgGreen).Sprint("create"), r.Summary.Create,
		p.paint(color.FgYellow).Sprint("update"), r.Summary.Update,
		p.paint(color.FgRed).Sprint("delete"), r.Summary.Delete,
		p.paint(color.Faint).Sprint("unchanged"), r.Summary.NoChange-r.Summary.Protected,
		p.paint(color.FgMagenta).Sprint("protected"), r.Summary.Protected,
	)

	for _, e := range r.Entries {
		switch e.Kind {
		case engine.KindCreate:
			p.paint(color.FgGreen).Fprintf(&b, "+ %s", e.Key)
			if e.SourceRow > 0 {
				fmt.Fprintf(&b, " (row %d)", e.SourceRow)
			}
			b.WriteByte('\n')
		case engine.KindUpdate:
			p.paint(color.FgYellow).Fprintf(&b, "~ %s\n", e.Key)
			p.renderChanges(&b, e.Changes)
		case engine.KindDelete:
			p.paint(color.FgRed).Fprintf(&b, "- %s\n", e.Key)
		}
	}

	if protected := r.ProtectedEntries(); len(protected) > 0 {
		header.Fprintln(&b, "Protected")
		for _, e := range protected {
			d := e.Protection
			detail := d.MatchedRule
			if d.MatchedRole != "" {
				detail = d.MatchedRole
			}
			p.paint(color.FgMagenta).Fprintf(&b, "! %s", e.Key)
			fmt.Fprintf(&b, " %s blocked by %s %q\n", strings.ToLower(string(e.DemotedFrom)), d.Reason, detail)
		}
	}

	if len(r.LookupFailures) > 0 {
		header.Fprintln(&b, "Role lookup failures (treated as unprotected)")
		for _, d := range r.LookupFailures {
			fmt.Fprintf(&b, "  %s: %s\n", d.Key, d.LookupErr)
		}
	}

	if r.Enrichment.Enabled {
		header.Fprintln(&b, "Enrichment")
		fmt.Fprintf(&b, "  items %d  orphans %d\n", r.Enrichment.Items, len(r.Enrichment.Orphans))
	}

	if len(r.Unrecognized) > 0 {
		p.paint(color.FgYellow).Fprintf(&b, "Ignored columns: %s\n", strings.Join(r.Unrecognized, ", "))
	}
	if len(r.Warnings) > 0 {
		p.paint(color.FgYellow).Fprintf(&b, "Warnings: %d\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  row %d: %s\n", w.Row, w.Message)
		}
	}

	_, err := io.WriteString(p.w, b.String())
	return err
}

func (p *Printer) renderChanges(b *strings.Builder, changes []engine.FieldChange) {
	for i, c := range changes {
		if p.MaxChanges > 0 && i == p.MaxChanges {
			fmt.Fprintf(b, "    ... %d more\n", len(changes)-i)
			return
		}
		old := "<unset>"
		if c.OldValue != nil {
			old = schema.Stringify(c.OldValue)
		}
		fmt.Fprintf(b, "    %s: %q -> %q\n", c.Field, old, schema.Stringify(c.NewValue))
	}
}
