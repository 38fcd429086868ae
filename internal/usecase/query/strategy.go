package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/db/dsl"
	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/argument"
	"github.com/kailas-cloud/facetdex/internal/domain/descriptor"
	"github.com/kailas-cloud/facetdex/internal/domain/filter"
)

// Aggregation names shared by strategies and mappers.
const (
	aggGroups   = "groups"
	aggChildren = "children"
	aggSum      = "sum"
	aggMin      = "min"
	aggMax      = "max"
	aggNested   = "nested"
	aggFiltered = "filtered"
)

// plan is a built backend request.
type plan struct {
	request db.SearchRequest
	// page is set for shapes served through the pager.
	page *argument.Pagination
	// empty short-circuits the backend: the mapper sees a zero response.
	empty bool
}

// strategy builds the backend request for one query shape.
type strategy struct {
	// fields is the number of selected fields the shape needs.
	fields int
	build  func(p argument.Parameters, spec filter.Spec) (plan, error)
}

var strategies = map[descriptor.ShapeKind]strategy{
	descriptor.ShapePlain:         {build: buildPlain},
	descriptor.ShapePaginated:     {build: buildPaginated},
	descriptor.ShapeAggregated:    {fields: 1, build: buildAggregated},
	descriptor.ShapeSubAggregated: {fields: 2, build: buildSubAggregated},
	descriptor.ShapeSummed:        {fields: 1, build: buildSummed},
	descriptor.ShapeRange:         {fields: 1, build: buildRange},
	descriptor.ShapeNested:        {fields: 1, build: buildNested},
	descriptor.ShapeGlobal:        {build: buildGlobal},
}

func buildPlain(p argument.Parameters, spec filter.Spec) (plan, error) {
	q, err := Compose(p.Args(), spec)
	if err != nil {
		return plan{}, err
	}
	body := map[string]any{
		"query":            q,
		"size":             domain.MaxPageSize,
		"track_total_hits": true,
	}
	if sort := p.Page().Sort(); sort != nil {
		body["sort"] = sort
	}
	withSource(body, p)
	return plan{request: db.SearchRequest{Index: spec.Index, Body: body}}, nil
}

func buildPaginated(p argument.Parameters, spec filter.Spec) (plan, error) {
	q, err := Compose(p.Args(), spec)
	if err != nil {
		return plan{}, err
	}
	body := map[string]any{
		"query":            q,
		"track_total_hits": true,
	}
	withSource(body, p)
	page := p.Page()
	return plan{request: db.SearchRequest{Index: spec.Index, Body: body}, page: &page}, nil
}

func buildAggregated(p argument.Parameters, spec filter.Spec) (plan, error) {
	return aggregate(p, spec, dsl.M{
		aggGroups: dsl.TermsAgg(spec.Field(0), domain.AggregationSize),
	})
}

func buildSubAggregated(p argument.Parameters, spec filter.Spec) (plan, error) {
	return aggregate(p, spec, dsl.M{
		aggGroups: dsl.WithSub(dsl.TermsAgg(spec.Field(0), domain.AggregationSize), dsl.M{
			aggChildren: dsl.TermsAgg(spec.Field(1), domain.AggregationSize),
		}),
	})
}

func buildSummed(p argument.Parameters, spec filter.Spec) (plan, error) {
	return aggregate(p, spec, dsl.M{aggSum: dsl.Sum(spec.Field(0))})
}

func buildRange(p argument.Parameters, spec filter.Spec) (plan, error) {
	return aggregate(p, spec, dsl.M{
		aggMin: dsl.Min(spec.Field(0)),
		aggMax: dsl.Max(spec.Field(0)),
	})
}

func buildNested(p argument.Parameters, spec filter.Spec) (plan, error) {
	inner, err := ComposeNested(p.Args(), spec)
	if err != nil {
		return plan{}, err
	}
	return aggregate(p, spec, dsl.M{
		aggNested: dsl.WithSub(dsl.NestedAgg(spec.NestedPath), dsl.M{
			aggFiltered: dsl.WithSub(dsl.FilterAgg(inner), dsl.M{
				aggGroups: dsl.TermsAgg(spec.Field(0), domain.AggregationSize),
			}),
		}),
	})
}

// aggregate wraps the filter query into a zero-hit aggregation body.
func aggregate(p argument.Parameters, spec filter.Spec, aggs dsl.M) (plan, error) {
	q, err := Compose(p.Args(), spec)
	if err != nil {
		return plan{}, err
	}
	return plan{request: db.SearchRequest{
		Index: spec.Index,
		Body: map[string]any{
			"query":            q,
			"size":             0,
			"track_total_hits": true,
			"aggs":             aggs,
		},
	}}, nil
}

var (
	booleanToken = regexp.MustCompile(`(?i)\b(true|false)\b`)
	integerToken = regexp.MustCompile(`\b\d+\b`)
)

func buildGlobal(p argument.Parameters, spec filter.Spec) (plan, error) {
	input := strings.TrimSpace(p.Input())
	if input == "" {
		return plan{empty: true}, nil
	}

	search := dsl.Bool().MinimumShouldMatch(1)
	for _, f := range spec.Searchable {
		if c, ok := searchClause(f, input); ok {
			search.Should(c)
		}
	}
	if search.IsEmpty() {
		return plan{empty: true}, nil
	}

	filterQuery, err := Compose(p.Args(), spec)
	if err != nil {
		return plan{}, err
	}
	q := dsl.Bool().Must(search.Build())
	if _, all := filterQuery["match_all"]; !all {
		q.Filter(filterQuery)
	}

	body := map[string]any{
		"query":            q.Build(),
		"track_total_hits": true,
	}
	if h := spec.Highlight; len(h.Fields) > 0 {
		body["highlight"] = dsl.Highlight(h.PreTag, h.PostTag, h.FragmentSize, h.Fields)
	}
	withSource(body, p)
	page := p.Page()
	return plan{request: db.SearchRequest{Index: spec.Index, Body: body}, page: &page}, nil
}

// searchClause matches input against one searchable field. Typed fields only
// contribute when a token of their type can be extracted from input.
func searchClause(f filter.SearchField, input string) (dsl.M, bool) {
	switch f.Match {
	case filter.MatchTerm:
		return dsl.Term(f.Name, input), true
	case filter.MatchWildcard:
		return dsl.Wildcard(f.Name, "*"+input+"*", true), true
	case filter.MatchText:
		return dsl.Match(f.Name, input), true
	case filter.MatchBoolean:
		tok := booleanToken.FindString(input)
		if tok == "" {
			return nil, false
		}
		return dsl.Term(f.Name, strings.EqualFold(tok, "true")), true
	case filter.MatchInteger:
		tok := integerToken.FindString(input)
		if tok == "" {
			return nil, false
		}
		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, false
		}
		return dsl.Term(f.Name, n), true
	}
	return nil, false
}

// withSource restricts returned documents to the requested fields.
func withSource(body map[string]any, p argument.Parameters) {
	if fields := p.Fields(); len(fields) > 0 {
		body["_source"] = fields
	}
}

func lookupStrategy(kind descriptor.ShapeKind) (strategy, error) {
	s, ok := strategies[kind]
	if !ok {
		return strategy{}, fmt.Errorf("shape %q: %w", kind, domain.ErrUnknownShape)
	}
	return s, nil
}
