package query

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/argument"
	"github.com/kailas-cloud/facetdex/internal/domain/descriptor"
	"github.com/kailas-cloud/facetdex/internal/domain/filter"
	"github.com/kailas-cloud/facetdex/internal/domain/result"
)

// mapper turns a raw response into the declared result kind. Mappers are pure.
type mapper func(resp db.SearchResponse, p argument.Parameters, spec filter.Spec) (any, error)

type resultKind struct {
	shapes []descriptor.ShapeKind
	mapFn  mapper
}

var mappers = map[descriptor.ResultKind]resultKind{
	descriptor.ResultObjectList: {
		shapes: []descriptor.ShapeKind{descriptor.ShapePlain, descriptor.ShapePaginated, descriptor.ShapeGlobal},
		mapFn:  mapObjectList,
	},
	descriptor.ResultStringList: {
		shapes: []descriptor.ShapeKind{descriptor.ShapePlain, descriptor.ShapePaginated},
		mapFn:  mapStringList,
	},
	descriptor.ResultGroupCount: {
		shapes: []descriptor.ShapeKind{descriptor.ShapeAggregated},
		mapFn:  mapGroupCount,
	},
	descriptor.ResultNestedGroupCount: {
		shapes: []descriptor.ShapeKind{descriptor.ShapeNested},
		mapFn:  mapNestedGroupCount,
	},
	descriptor.ResultTotal: {
		shapes: []descriptor.ShapeKind{
			descriptor.ShapePlain, descriptor.ShapePaginated, descriptor.ShapeAggregated,
			descriptor.ShapeSubAggregated, descriptor.ShapeSummed, descriptor.ShapeRange,
			descriptor.ShapeNested, descriptor.ShapeGlobal,
		},
		mapFn: mapTotal,
	},
	descriptor.ResultSum: {
		shapes: []descriptor.ShapeKind{descriptor.ShapeSummed},
		mapFn:  mapSum,
	},
	descriptor.ResultRange: {
		shapes: []descriptor.ShapeKind{descriptor.ShapeRange},
		mapFn:  mapRange,
	},
	descriptor.ResultHierarchical: {
		shapes: []descriptor.ShapeKind{descriptor.ShapeSubAggregated},
		mapFn:  mapHierarchical,
	},
	descriptor.ResultHighlight: {
		shapes: []descriptor.ShapeKind{descriptor.ShapeGlobal},
		mapFn:  mapHighlight,
	},
}

func lookupMapper(kind descriptor.ResultKind, shape descriptor.ShapeKind) (mapper, error) {
	rk, ok := mappers[kind]
	if !ok {
		return nil, fmt.Errorf("result %q: %w", kind, domain.ErrUnknownResult)
	}
	for _, s := range rk.shapes {
		if s == shape {
			return rk.mapFn, nil
		}
	}
	return nil, fmt.Errorf("result %q cannot map shape %q: %w", kind, shape, domain.ErrInvalidDescriptor)
}

// mapObjectList projects each hit onto the requested fields, preserving hit order.
// Hits without any requested field are dropped.
func mapObjectList(resp db.SearchResponse, p argument.Parameters, _ filter.Spec) (any, error) {
	fields := p.Fields()
	out := make([]result.Object, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		if obj := project(h.Source, fields); len(obj) > 0 {
			out = append(out, obj)
		}
	}
	return out, nil
}

func mapStringList(resp db.SearchResponse, p argument.Parameters, spec filter.Spec) (any, error) {
	field := spec.Field(0)
	if field == "" {
		if fields := p.Fields(); len(fields) > 0 {
			field = fields[0]
		}
	}
	out := make([]string, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		v, ok := lookup(h.Source, strings.Split(field, "."))
		if !ok || v == nil {
			return nil, domain.NewFieldError(field, fmt.Errorf("hit %s: %w", h.ID, domain.ErrMissingField))
		}
		out = append(out, fmt.Sprint(v))
	}
	return out, nil
}

func mapGroupCount(resp db.SearchResponse, _ argument.Parameters, _ filter.Spec) (any, error) {
	terms, err := db.DecodeTerms(resp.Aggregations, aggGroups)
	if err != nil {
		return nil, err //nolint:wrapcheck // decode errors name the aggregation
	}
	return groupCounts(terms.Buckets), nil
}

// mapNestedGroupCount reports groups plus the overflow beyond the bucket cap.
// Total is the sum of all groups and the overflow.
func mapNestedGroupCount(resp db.SearchResponse, _ argument.Parameters, _ filter.Spec) (any, error) {
	nested, err := db.DecodeSingle(resp.Aggregations, aggNested)
	if err != nil {
		return nil, err //nolint:wrapcheck // decode errors name the aggregation
	}
	filtered, err := db.DecodeSingle(nested.Sub, aggFiltered)
	if err != nil {
		return nil, err //nolint:wrapcheck // decode errors name the aggregation
	}
	terms, err := db.DecodeTerms(filtered.Sub, aggGroups)
	if err != nil {
		return nil, err //nolint:wrapcheck // decode errors name the aggregation
	}

	out := result.NestedGroupCount{
		Groups: groupCounts(terms.Buckets),
		Other:  terms.SumOtherDocCount,
	}
	out.Total = out.Other
	for _, g := range out.Groups {
		out.Total += g.Subjects
	}
	return out, nil
}

func mapTotal(resp db.SearchResponse, _ argument.Parameters, _ filter.Spec) (any, error) {
	return resp.Total, nil
}

func mapSum(resp db.SearchResponse, _ argument.Parameters, _ filter.Spec) (any, error) {
	if resp.Aggregations == nil {
		return float64(0), nil
	}
	v, err := db.DecodeValue(resp.Aggregations, aggSum)
	if err != nil {
		return nil, err //nolint:wrapcheck // decode errors name the aggregation
	}
	if v == nil {
		return float64(0), nil
	}
	return *v, nil
}

// mapRange reports 0/0 when nothing matched.
func mapRange(resp db.SearchResponse, _ argument.Parameters, _ filter.Spec) (any, error) {
	var out result.Bounds
	if resp.Total == 0 || resp.Aggregations == nil {
		return out, nil
	}
	lo, err := db.DecodeValue(resp.Aggregations, aggMin)
	if err != nil {
		return nil, err //nolint:wrapcheck // decode errors name the aggregation
	}
	hi, err := db.DecodeValue(resp.Aggregations, aggMax)
	if err != nil {
		return nil, err //nolint:wrapcheck // decode errors name the aggregation
	}
	if lo != nil {
		out.LowerBound = *lo
	}
	if hi != nil {
		out.UpperBound = *hi
	}
	return out, nil
}

func mapHierarchical(resp db.SearchResponse, _ argument.Parameters, _ filter.Spec) (any, error) {
	parents, err := db.DecodeTerms(resp.Aggregations, aggGroups)
	if err != nil {
		return nil, err //nolint:wrapcheck // decode errors name the aggregation
	}
	out := make([]result.Hierarchy, 0, len(parents.Buckets))
	for _, b := range parents.Buckets {
		h := result.Hierarchy{Group: b.Key, Subjects: b.DocCount, Children: []result.GroupCount{}}
		if _, ok := b.Sub[aggChildren]; ok {
			children, err := db.DecodeTerms(b.Sub, aggChildren)
			if err != nil {
				return nil, fmt.Errorf("group %q: %w", b.Key, err)
			}
			h.Children = groupCounts(children.Buckets)
		}
		out = append(out, h)
	}
	return out, nil
}

// mapHighlight projects each hit and replaces requested highlighted fields with their first fragment.
func mapHighlight(resp db.SearchResponse, p argument.Parameters, _ filter.Spec) (any, error) {
	fields := p.Fields()
	page := result.Page{Total: resp.Total, Items: make([]result.Object, 0, len(resp.Hits))}
	for _, h := range resp.Hits {
		obj := project(h.Source, fields)
		for field, fragments := range h.Highlight {
			if len(fragments) > 0 && p.HasField(field) {
				setPath(obj, strings.Split(field, "."), fragments[0])
			}
		}
		if len(obj) > 0 {
			page.Items = append(page.Items, obj)
		}
	}
	return page, nil
}

func groupCounts(buckets []db.Bucket) []result.GroupCount {
	out := make([]result.GroupCount, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, result.GroupCount{Group: b.Key, Subjects: b.DocCount})
	}
	return out
}

// project copies the dotted field paths present in source into a nested object.
func project(source map[string]any, fields []string) result.Object {
	obj := result.Object{}
	for _, f := range fields {
		parts := strings.Split(f, ".")
		if v, ok := lookup(source, parts); ok {
			setPath(obj, parts, v)
		}
	}
	return obj
}

// lookup resolves a dotted path. Flattened keys ("a.b") and lists of objects are both followed.
func lookup(v any, parts []string) (any, bool) {
	if len(parts) == 0 {
		return v, true
	}
	switch t := v.(type) {
	case map[string]any:
		if len(parts) > 1 {
			if x, ok := t[strings.Join(parts, ".")]; ok {
				return x, true
			}
		}
		x, ok := t[parts[0]]
		if !ok {
			return nil, false
		}
		return lookup(x, parts[1:])
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			if x, ok := lookup(e, parts); ok {
				out = append(out, x)
			}
		}
		return out, len(out) > 0
	}
	return nil, false
}

func setPath(obj result.Object, parts []string, v any) {
	cur := map[string]any(obj)
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}
