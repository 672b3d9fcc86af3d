package valueobjects

import (
	"encoding/json"
	"math"
	"reflect"
)

// Props is the free-form property bag of a node or edge. Values are JSON
// values: strings, numbers, booleans, nil, []any and map[string]any.
type Props map[string]any

// Matches reports whether every key of filter is present in p with an
// equal value. An empty filter matches everything.
func (p Props) Matches(filter Props) bool {
	for key, want := range filter {
		got, ok := p[key]
		if !ok {
			return false
		}
		if !ValuesEqual(got, want) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy
func (p Props) Clone() Props {
	if p == nil {
		return Props{}
	}
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge returns a copy of p with every key of other applied on top
func (p Props) Merge(other Props) Props {
	out := p.Clone()
	for k, v := range other {
		out[k] = cloneValue(v)
	}
	return out
}

// String returns the string value at key, or "" when missing or not a string
func (p Props) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Equal compares two bags using Matches in both directions
func (p Props) Equal(other Props) bool {
	return len(p) == len(other) && p.Matches(other)
}

// ValuesEqual compares two JSON values. Numbers compare by value across
// Go numeric types so that props decoded from storage (float64) still
// match props built in code (int).
func ValuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case map[string]any:
		bv, ok := asMap(b)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			if w, ok := bv[k]; !ok || !ValuesEqual(v, w) {
				return false
			}
		}
		return true
	case Props:
		return ValuesEqual(map[string]any(av), b)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !ValuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Props:
		return map[string]any(m), true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n)
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Props(t).Clone())
	case Props:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	}
	return v
}
