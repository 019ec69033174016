package schema

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Normalizer converts raw tabular strings into typed values according to
// the attribute descriptor.
type Normalizer struct {
	log zerolog.Logger

	// OnMalformed, when set, is called once for every value that had to be
	// degraded or kept as a string.
	OnMalformed func(attr string)
}

// NewNormalizer returns a normalizer that reports degraded values to log.
func NewNormalizer(log zerolog.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// Normalize returns the typed value for raw. The second result is false for
// empty or whitespace-only input: an empty cell means "not set", never
// "clear the remote value".
//
// Result types per ValueType:
//   - string: string (trimmed, truncated to MaxLength runes)
//   - bool:   bool, or the trimmed string when it does not coerce
//   - number: float64, or the trimmed string when it does not parse
//   - date:   the trimmed string; equality parses it later
//   - array:  []string via ParseArray
//   - object: map[string]any, or the trimmed string when it is not a JSON object
func (n *Normalizer) Normalize(desc AttributeDescriptor, raw string) (any, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}

	switch desc.ValueType {
	case TypeBool:
		if b, ok := ParseBool(s); ok {
			return b, true
		}
		n.malformed(desc.Name, s, "not a boolean")
		return s, true

	case TypeNumber:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			n.malformed(desc.Name, s, "not a number")
			return s, true
		}
		return f, true

	case TypeDate:
		return s, true

	case TypeArray:
		arr, how := parseArray(s)
		switch {
		case how == arrayDegraded:
			n.malformed(desc.Name, s, "malformed array, kept as single element")
		case how == arraySplit && strings.HasPrefix(s, "["):
			n.malformed(desc.Name, s, "malformed JSON array, split on commas")
		}
		return arr, true

	case TypeObject:
		var obj map[string]any
		if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
			n.malformed(desc.Name, s, "not a JSON object")
			return s, true
		}
		return obj, true

	default:
		if desc.MaxLength > 0 && utf8.RuneCountInString(s) > desc.MaxLength {
			n.log.Warn().
				Str("attribute", desc.Name).
				Int("max_length", desc.MaxLength).
				Msg("value exceeds max length, truncating")
			s = string([]rune(s)[:desc.MaxLength])
		}
		return s, true
	}
}

func (n *Normalizer) malformed(attr, raw, reason string) {
	n.log.Warn().Str("attribute", attr).Str("value", raw).Msg(reason)
	if n.OnMalformed != nil {
		n.OnMalformed(attr)
	}
}

// ParseBool accepts true/false, yes/no, y/n and 1/0 in any case.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "t":
		return true, true
	case "false", "no", "n", "0", "f":
		return false, true
	default:
		return false, false
	}
}

type arraySource int

const (
	arrayJSON arraySource = iota
	arrayQuotedJSON
	arraySplit
	arrayDegraded
)

// ParseArray converts a raw cell into a list of strings. The fallbacks are
// tried in order and the first success wins:
//  1. JSON array
//  2. JSON array after replacing ' with "
//  3. comma-separated list, trimmed, empty segments dropped
//  4. a single element holding the trimmed input
//
// It never fails.
func ParseArray(raw string) []string {
	arr, _ := parseArray(raw)
	return arr
}

func parseArray(raw string) ([]string, arraySource) {
	s := strings.TrimSpace(raw)

	if arr, ok := jsonArray(s); ok {
		return arr, arrayJSON
	}
	if arr, ok := jsonArray(strings.ReplaceAll(s, "'", `"`)); ok {
		return arr, arrayQuotedJSON
	}
	if arr := splitList(s); len(arr) > 0 {
		return arr, arraySplit
	}
	return []string{s}, arrayDegraded
}

func jsonArray(s string) ([]string, bool) {
	var items []any
	if err := json.Unmarshal([]byte(s), &items); err != nil || items == nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, Stringify(item))
	}
	return out, true
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Stringify renders a decoded JSON value as a plain string. Objects and
// arrays use canonical JSON (sorted keys).
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
