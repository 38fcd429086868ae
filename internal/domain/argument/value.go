// Package argument turns a loosely typed argument map into typed query parameters.
package argument

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"

	"github.com/kailas-cloud/facetdex/internal/domain"
)

// Kind tags the variant a Value holds.
type Kind int

// Value kinds.
const (
	KindString Kind = iota + 1
	KindStrings
	KindRange
)

// Value is a resolved argument: a single string, a string list or an integer range.
type Value struct {
	kind Kind
	str  string
	strs []string
	lo   *int64
	hi   *int64
}

// String builds a single-string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Strings builds a string-list value.
func Strings(ss ...string) Value {
	cp := make([]string, len(ss))
	copy(cp, ss)
	return Value{kind: KindStrings, strs: cp}
}

// Range builds an integer range. Either bound may be nil.
func Range(lo, hi *int64) Value { return Value{kind: KindRange, lo: lo, hi: hi} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// Bounds returns the range bounds. Both are nil for non-range values.
func (v Value) Bounds() (lo, hi *int64) { return v.lo, v.hi }

// List returns the textual values in order.
// A range reports its present bounds, lower first.
func (v Value) List() []string {
	switch v.kind {
	case KindString:
		return []string{v.str}
	case KindStrings:
		cp := make([]string, len(v.strs))
		copy(cp, v.strs)
		return cp
	case KindRange:
		var out []string
		if v.lo != nil {
			out = append(out, strconv.FormatInt(*v.lo, 10))
		}
		if v.hi != nil {
			out = append(out, strconv.FormatInt(*v.hi, 10))
		}
		return out
	default:
		return nil
	}
}

// IsBlank reports whether the value carries nothing to filter on:
// no values at all, or exactly one empty string.
func (v Value) IsBlank() bool {
	switch v.kind {
	case KindString:
		return v.str == ""
	case KindStrings:
		return len(v.strs) == 0 || (len(v.strs) == 1 && v.strs[0] == "")
	case KindRange:
		return v.lo == nil && v.hi == nil
	default:
		return true
	}
}

// canonicalValue is the tagged cache-key form of a Value.
// A single string and a one-element list share the "in" form.
type canonicalValue struct {
	In    []string `json:"in,omitempty"`
	Range []*int64 `json:"range,omitempty"`
}

// Canonical renders the value for cache keys as tagged JSON.
// Lists are sorted and deduplicated; a range keeps null for a missing bound.
func (v Value) Canonical() string {
	var c canonicalValue
	switch v.kind {
	case KindRange:
		c.Range = []*int64{v.lo, v.hi}
	case KindString, KindStrings:
		c.In = v.List()
		sort.Strings(c.In)
		c.In = slices.Compact(c.In)
	}
	data, _ := json.Marshal(c) //nolint:errchkjson // strings and integers always marshal
	return string(data)
}

// Resolve converts a decoded JSON value into a Value.
// ok is false when the raw value is nil and should be dropped.
func Resolve(raw any) (v Value, ok bool, err error) {
	switch x := raw.(type) {
	case nil:
		return Value{}, false, nil
	case string:
		return String(x), true, nil
	case bool:
		return String(strconv.FormatBool(x)), true, nil
	case float64:
		n, err := toInt(x)
		if err != nil {
			return Value{}, false, err
		}
		return Range(&n, nil), true, nil
	case int:
		n := int64(x)
		return Range(&n, nil), true, nil
	case int64:
		return Range(&x, nil), true, nil
	case []string:
		return Strings(x...), true, nil
	case []any:
		return resolveList(x)
	default:
		return Value{}, false, fmt.Errorf("unsupported argument type %T: %w", raw, domain.ErrInvalidArgument)
	}
}

func resolveList(items []any) (Value, bool, error) {
	if len(items) == 0 {
		return Strings(), true, nil
	}

	allNumbers := true
	for _, it := range items {
		switch it.(type) {
		case float64, int, int64, nil:
		default:
			allNumbers = false
		}
	}
	if allNumbers && len(items) <= 2 {
		bounds := make([]*int64, 2)
		for i, it := range items {
			if it == nil {
				continue
			}
			n, err := numberToInt(it)
			if err != nil {
				return Value{}, false, err
			}
			bounds[i] = &n
		}
		return Range(bounds[0], bounds[1]), true, nil
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		switch x := it.(type) {
		case string:
			out = append(out, x)
		case bool:
			out = append(out, strconv.FormatBool(x))
		case float64:
			out = append(out, strconv.FormatFloat(x, 'f', -1, 64))
		case int:
			out = append(out, strconv.Itoa(x))
		case int64:
			out = append(out, strconv.FormatInt(x, 10))
		case nil:
		default:
			return Value{}, false, fmt.Errorf("unsupported list element %T: %w", it, domain.ErrInvalidArgument)
		}
	}
	return Strings(out...), true, nil
}

func numberToInt(v any) (int64, error) {
	switch x := v.(type) {
	case float64:
		return toInt(x)
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	default:
		return 0, fmt.Errorf("not a number %v: %w", v, domain.ErrInvalidArgument)
	}
}

func toInt(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("non-integer bound %v: %w", f, domain.ErrInvalidArgument)
	}
	return int64(f), nil
}
