// Package attributes compares the attribute maps of two matched annotations.
package attributes

import (
	"reflect"
	"sort"
)

// DefaultIgnored lists attribute keys that describe tracking or rendering
// state rather than annotation content.
var DefaultIgnored = []string{"track_id", "keyframe", "z_order", "group"}

// Result classifies every compared attribute key. Keys are sorted.
type Result struct {
	Matches    []string
	Mismatches []string
	ExtraA     []string // present only in the first map
	ExtraB     []string // present only in the second map
}

// Total is the number of compared keys.
func (r Result) Total() int {
	return len(r.Matches) + len(r.Mismatches) + len(r.ExtraA) + len(r.ExtraB)
}

// Discrepancies is the number of keys that did not match.
func (r Result) Discrepancies() int {
	return len(r.Mismatches) + len(r.ExtraA) + len(r.ExtraB)
}

// Comparator compares attribute maps, skipping ignored keys.
type Comparator struct {
	ignored map[string]bool
}

// NewComparator builds a comparator. A nil list uses DefaultIgnored.
func NewComparator(ignored []string) *Comparator {
	if ignored == nil {
		ignored = DefaultIgnored
	}
	c := &Comparator{ignored: make(map[string]bool, len(ignored))}
	for _, k := range ignored {
		c.ignored[k] = true
	}
	return c
}

// Ignored reports whether key is never compared.
func (c *Comparator) Ignored(key string) bool {
	return c.ignored[key]
}

// Compare classifies each non-ignored key of a ∪ b.
func (c *Comparator) Compare(a, b map[string]any) Result {
	var r Result
	for k, va := range a {
		if c.ignored[k] {
			continue
		}
		vb, ok := b[k]
		switch {
		case !ok:
			r.ExtraA = append(r.ExtraA, k)
		case Equal(va, vb):
			r.Matches = append(r.Matches, k)
		default:
			r.Mismatches = append(r.Mismatches, k)
		}
	}
	for k := range b {
		if c.ignored[k] {
			continue
		}
		if _, ok := a[k]; !ok {
			r.ExtraB = append(r.ExtraB, k)
		}
	}
	sort.Strings(r.Matches)
	sort.Strings(r.Mismatches)
	sort.Strings(r.ExtraA)
	sort.Strings(r.ExtraB)
	return r
}

// Equal compares two attribute values by type and value. Numbers compare
// numerically across Go numeric types, so 4 and 4.0 are equal, while a
// number never equals its string or boolean rendering.
func Equal(a, b any) bool {
	if na, ok := number(a); ok {
		nb, ok := number(b)
		return ok && na == nb
	}
	switch va := a.(type) {
	case nil:
		return b == nil
	case bool:
		vb, ok := b.(bool)
		return ok && va == vb
	case string:
		vb, ok := b.(string)
		return ok && va == vb
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
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
		return n, true
	}
	return 0, false
}
