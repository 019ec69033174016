package parser

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"idsync/pkg/schema"
)

// BuildResult holds the desired records built from a parsed file.
type BuildResult struct {
	Records      []*schema.DesiredRecord `json:"records"`
	Unrecognized []string                `json:"unrecognized"`
	Warnings     []ParseWarning          `json:"warnings"`
}

// BuildDesiredRecords turns parsed rows into desired records. Headers are
// resolved to canonical attribute names through reg; identity names the
// column (canonical name or alias) holding the principal key. Rows without
// a key are skipped with a warning.
func BuildDesiredRecords(reg *schema.Registry, parsed *ParseResult, identity string, log zerolog.Logger) (*BuildResult, error) {
	if identity == "" {
		identity = schema.IdentityAttribute
	}
	identityName := reg.Classify(identity).Name

	mapped, shadowed := reg.ResolveHeaders(parsed.Headers)
	out := &BuildResult{Warnings: append([]ParseWarning(nil), parsed.Warnings...)}

	keyCol := -1
	for i, h := range parsed.Headers {
		if mapped[h] == identityName {
			keyCol = i
			break
		}
	}
	if keyCol < 0 {
		return nil, fmt.Errorf("identity column %q not found in headers", identity)
	}

	for _, h := range shadowed {
		log.Warn().Str("header", h).Msg("column duplicates an earlier column for the same attribute, ignoring")
	}
	for _, h := range parsed.Headers {
		name, ok := mapped[h]
		if !ok || reg.Classify(name).Channel != schema.ChannelUnrecognized {
			continue
		}
		out.Unrecognized = append(out.Unrecognized, h)
		ev := log.Warn().Str("header", h)
		if hint := reg.Suggest(h); hint != "" {
			ev = ev.Str("did_you_mean", hint)
		}
		ev.Msg("unrecognized column, ignoring")
	}

	for _, row := range parsed.Rows {
		key := strings.TrimSpace(row.Values[keyCol])
		if key == "" {
			out.Warnings = append(out.Warnings, ParseWarning{
				Row:     row.Number,
				Message: fmt.Sprintf("missing %s; row skipped", identityName),
			})
			continue
		}

		rec := schema.NewDesiredRecord(key, row.Number)
		for i, h := range parsed.Headers {
			name, ok := mapped[h]
			if !ok {
				continue
			}
			rec.Set(name, row.Values[i])
		}
		out.Records = append(out.Records, rec)
	}

	return out, nil
}
