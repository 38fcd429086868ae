package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/facetdex/internal/db/dsl"
	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/argument"
	"github.com/kailas-cloud/facetdex/internal/domain/filter"
)

// Compose builds the filter query for args. Ignored keys and nested params are left out;
// with no clauses the result is match_all.
func Compose(args argument.Args, spec filter.Spec) (dsl.M, error) {
	b := dsl.Bool()
	for _, key := range args.Keys() {
		if spec.IsIgnored(key) || spec.IsNestedParam(key) {
			continue
		}
		clause, ok, err := FieldClause(key, args[key], spec.IsRange(key), spec.CaseInsensitive)
		if err != nil {
			return nil, domain.NewFieldError(key, err)
		}
		if ok {
			b.Filter(clause)
		}
	}
	return b.Build(), nil
}

// ComposeNested builds the filter applied inside a nested aggregation from the
// spec's nested params. Fields are qualified with the nested path.
func ComposeNested(args argument.Args, spec filter.Spec) (dsl.M, error) {
	b := dsl.Bool()
	for _, key := range args.Keys() {
		if !spec.IsNestedParam(key) {
			continue
		}
		field := key
		if !strings.HasPrefix(key, spec.NestedPath+".") {
			field = spec.NestedPath + "." + key
		}
		clause, ok, err := FieldClause(field, args[key], spec.IsRange(key), spec.CaseInsensitive)
		if err != nil {
			return nil, domain.NewFieldError(key, err)
		}
		if ok {
			b.Filter(clause)
		}
	}
	return b.Build(), nil
}

// FieldClause builds the clause for one argument against field.
// ok is false when the value carries nothing to filter on.
func FieldClause(field string, v argument.Value, isRange, caseInsensitive bool) (clause dsl.M, ok bool, err error) {
	if isRange {
		if v.Kind() != argument.KindRange && v.IsBlank() {
			return nil, false, nil
		}
		lo, hi, rerr := rangeBounds(v)
		if rerr != nil {
			return nil, false, rerr
		}
		return dsl.Range(field, lo, hi), true, nil
	}

	if v.IsBlank() {
		return nil, false, nil
	}
	values := v.List()
	if caseInsensitive {
		b := dsl.Bool().MinimumShouldMatch(1)
		for _, s := range values {
			b.Should(dsl.Wildcard(field, s, true))
		}
		return b.Build(), true, nil
	}
	return dsl.Terms(field, values), true, nil
}

// rangeBounds reads the lower bound from the first value and the upper from the second.
// Further values are ignored.
func rangeBounds(v argument.Value) (lo, hi *int64, err error) {
	if v.Kind() == argument.KindRange {
		lo, hi = v.Bounds()
	} else {
		values := v.List()
		if len(values) > 0 {
			if lo, err = parseBound(values[0]); err != nil {
				return nil, nil, err
			}
		}
		if len(values) > 1 {
			if hi, err = parseBound(values[1]); err != nil {
				return nil, nil, err
			}
		}
	}
	if lo == nil && hi == nil {
		return nil, nil, fmt.Errorf("range without bounds: %w", domain.ErrInvalidArgument)
	}
	return lo, hi, nil
}

func parseBound(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("range bound %q: %w", s, domain.ErrInvalidArgument)
	}
	return &n, nil
}
