package engine

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"

	"idsync/pkg/schema"
)

// dateFormats are tried in order when comparing date attributes.
var dateFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02-Jan-2006",
}

// ValuesEqual compares a normalized desired value with a decoded remote
// value using the descriptor's type. A nil remote value never equals a set
// desired value.
func ValuesEqual(desc schema.AttributeDescriptor, desired, remote any) bool {
	if remote == nil {
		return desired == nil
	}

	switch desc.ValueType {
	case schema.TypeArray:
		return arraysEqual(toStrings(desired), toStrings(remote))

	case schema.TypeDate:
		ds, rs := schema.Stringify(desired), schema.Stringify(remote)
		dt, dok := parseDate(ds)
		rt, rok := parseDate(rs)
		if dok && rok {
			return dt.Equal(rt)
		}
		return ds == rs

	case schema.TypeObject:
		return canonicalJSON(desired) == canonicalJSON(remote)

	case schema.TypeBool:
		db, dok := asBool(desired)
		rb, rok := asBool(remote)
		if dok && rok {
			return db == rb
		}
		return schema.Stringify(desired) == schema.Stringify(remote)

	case schema.TypeNumber:
		df, dok := asFloat(desired)
		rf, rok := asFloat(remote)
		if dok && rok {
			return df == rf
		}
		return schema.Stringify(desired) == schema.Stringify(remote)

	default:
		return schema.Stringify(desired) == schema.Stringify(remote)
	}
}

func arraysEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, schema.Stringify(item))
		}
		return out
	case string:
		return schema.ParseArray(t)
	case nil:
		return nil
	default:
		return []string{schema.Stringify(t)}
	}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// canonicalJSON re-encodes v so that key order does not matter. Strings
// holding JSON are decoded first.
func canonicalJSON(v any) string {
	if s, ok := v.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return s
		}
		v = decoded
	}
	b, err := json.Marshal(v)
	if err != nil {
		return schema.Stringify(v)
	}
	return string(b)
}

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		return schema.ParseBool(t)
	default:
		return false, false
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
