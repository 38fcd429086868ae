package facet

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/db/dsl"
	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/argument"
	domfacet "github.com/kailas-cloud/facetdex/internal/domain/facet"
	"github.com/kailas-cloud/facetdex/internal/domain/result"
	"github.com/kailas-cloud/facetdex/internal/usecase/query"
)

const (
	aggScope    = "scope"
	aggValues   = "values"
	aggParent   = "parent"
	aggDistinct = "distinct"
)

// filterQuery composes args into a filter, routing each field through ownership.
// Clauses for the same sub-entity share one nested query.
func filterQuery(set *domfacet.Set, args argument.Args) (dsl.M, error) {
	flat := dsl.Bool()
	nested := make(map[string]*dsl.BoolQuery)
	for _, key := range args.Keys() {
		route := set.Route(key)
		clause, ok, err := query.FieldClause(route.Field, args[key], set.IsRange(key), set.CaseInsensitive)
		if err != nil {
			return nil, domain.NewFieldError(key, err)
		}
		if !ok {
			continue
		}
		if !route.Nested() {
			flat.Filter(clause)
			continue
		}
		b, exists := nested[route.Path]
		if !exists {
			b = dsl.Bool()
			nested[route.Path] = b
		}
		b.Filter(clause)
	}

	paths := make([]string, 0, len(nested))
	for p := range nested {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		flat.Filter(dsl.Nested(p, nested[p].Build()))
	}
	return flat.Build(), nil
}

// routedTerm matches one facet value, wrapped in a nested query when the field is nested.
func routedTerm(route domfacet.Route, value string) dsl.M {
	t := dsl.Term(route.Field, value)
	if route.Nested() {
		return dsl.Nested(route.Path, t)
	}
	return t
}

// facetAggs builds the aggregation tree of one facet.
func facetAggs(f domfacet.Facet, route domfacet.Route) dsl.M {
	var values dsl.M
	switch f.Kind {
	case domfacet.KindAgeRange:
		values = dsl.RangeAgg(route.Field, ageRanges())
	default:
		values = dsl.TermsAgg(route.Field, domain.AggregationSize)
	}

	var distinct dsl.M
	if f.DistinctField != "" {
		distinct = dsl.M{aggDistinct: dsl.Cardinality(f.DistinctField, domain.CardinalityPrecision)}
	}

	if !route.Nested() {
		if distinct != nil {
			dsl.WithSub(values, distinct)
		}
		return dsl.M{aggValues: values}
	}

	parent := dsl.ReverseNested()
	if distinct != nil {
		dsl.WithSub(parent, distinct)
	}
	dsl.WithSub(values, dsl.M{aggParent: parent})
	return dsl.M{aggScope: dsl.WithSub(dsl.NestedAgg(route.Path), dsl.M{aggValues: values})}
}

func ageRanges() []dsl.RangeBucket {
	out := make([]dsl.RangeBucket, 0, len(domfacet.AgeBuckets))
	for _, b := range domfacet.AgeBuckets {
		from := b.FromDays()
		rb := dsl.RangeBucket{Key: b.Key, From: &from}
		if b.ToYear > 0 {
			to := b.ToDays()
			rb.To = &to
		}
		out = append(out, rb)
	}
	return out
}

// decodeFacet reads the buckets of one facet in backend order. Nested facets
// count parent documents; a distinct field counts its distinct values instead.
func decodeFacet(
	aggs map[string]json.RawMessage, f domfacet.Facet, route domfacet.Route,
) ([]result.FacetBucket, error) {
	scope := aggs
	if route.Nested() {
		s, err := db.DecodeSingle(aggs, aggScope)
		if err != nil {
			return nil, err //nolint:wrapcheck // decode errors name the aggregation
		}
		scope = s.Sub
	}

	var buckets []db.Bucket
	if f.Kind == domfacet.KindAgeRange {
		bs, err := db.DecodeBuckets(scope, aggValues)
		if err != nil {
			return nil, err //nolint:wrapcheck // decode errors name the aggregation
		}
		buckets = bs
	} else {
		t, err := db.DecodeTerms(scope, aggValues)
		if err != nil {
			return nil, err //nolint:wrapcheck // decode errors name the aggregation
		}
		buckets = t.Buckets
	}

	out := make([]result.FacetBucket, 0, len(buckets))
	for _, b := range buckets {
		count, sub := b.DocCount, b.Sub
		if route.Nested() {
			p, err := db.DecodeSingle(b.Sub, aggParent)
			if err != nil {
				return nil, fmt.Errorf("bucket %q: %w", b.Key, err)
			}
			count, sub = p.DocCount, p.Sub
		}
		if f.DistinctField != "" {
			v, err := db.DecodeValue(sub, aggDistinct)
			if err != nil {
				return nil, fmt.Errorf("bucket %q: %w", b.Key, err)
			}
			if v != nil {
				count = int64(*v)
			}
		}
		out = append(out, result.FacetBucket{Value: b.Key, Count: count})
	}
	return out, nil
}
