package protect

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"golang.org/x/text/cases"
)

// pattern is one compiled protected-identifier glob. Only `*` (any run of
// characters) and `?` (exactly one character) are special; everything else
// matches literally.
type pattern struct {
	raw string
	g   glob.Glob
}

func compilePatterns(raw []string) ([]pattern, error) {
	out := make([]pattern, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(escapeGlob(fold(p)))
		if err != nil {
			return nil, fmt.Errorf("protected pattern %q: %w", p, err)
		}
		out = append(out, pattern{raw: p, g: g})
	}
	return out, nil
}

// escapeGlob quotes the gobwas metacharacters other than * and ?.
func escapeGlob(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	for _, r := range p {
		switch r {
		case '[', ']', '{', '}', '\\', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// fold applies Unicode case folding. A Caser is not safe for concurrent
// use, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

func matchPatterns(patterns []pattern, id string) (string, bool) {
	folded := fold(id)
	for _, p := range patterns {
		if p.g.Match(folded) {
			return p.raw, true
		}
	}
	return "", false
}
