// Package dsl builds OpenSearch query and aggregation bodies as plain maps.
package dsl

// M is a JSON object fragment.
type M = map[string]any

// MatchAll returns a match_all query.
func MatchAll() M {
	return M{"match_all": M{}}
}

// Term returns an exact term query.
func Term(field string, value any) M {
	return M{"term": M{field: value}}
}

// Terms returns a terms query matching any of values.
func Terms(field string, values []string) M {
	return M{"terms": M{field: values}}
}

// Wildcard returns a wildcard query.
func Wildcard(field, pattern string, caseInsensitive bool) M {
	opts := M{"value": pattern}
	if caseInsensitive {
		opts["case_insensitive"] = true
	}
	return M{"wildcard": M{field: opts}}
}

// Match returns a full-text match query.
func Match(field string, query any) M {
	return M{"match": M{field: query}}
}

// Range returns a range query. Nil bounds are omitted.
func Range(field string, gte, lte *int64) M {
	opts := M{}
	if gte != nil {
		opts["gte"] = *gte
	}
	if lte != nil {
		opts["lte"] = *lte
	}
	return M{"range": M{field: opts}}
}

// Nested wraps a query so it runs against nested documents under path.
func Nested(path string, query M) M {
	return M{"nested": M{"path": path, "query": query}}
}

// BoolQuery accumulates boolean clauses.
type BoolQuery struct {
	filter []any
	should []any
	must   []any
	minSM  any
}

// Bool creates an empty boolean query builder.
func Bool() *BoolQuery { return &BoolQuery{} }

// Filter adds non-scoring clauses.
func (b *BoolQuery) Filter(clauses ...M) *BoolQuery {
	for _, c := range clauses {
		b.filter = append(b.filter, c)
	}
	return b
}

// Should adds optional clauses.
func (b *BoolQuery) Should(clauses ...M) *BoolQuery {
	for _, c := range clauses {
		b.should = append(b.should, c)
	}
	return b
}

// Must adds scoring required clauses.
func (b *BoolQuery) Must(clauses ...M) *BoolQuery {
	for _, c := range clauses {
		b.must = append(b.must, c)
	}
	return b
}

// MinimumShouldMatch sets minimum_should_match.
func (b *BoolQuery) MinimumShouldMatch(v any) *BoolQuery {
	b.minSM = v
	return b
}

// IsEmpty reports whether no clauses were added.
func (b *BoolQuery) IsEmpty() bool {
	return len(b.filter) == 0 && len(b.should) == 0 && len(b.must) == 0
}

// Build renders the query; an empty builder renders match_all.
func (b *BoolQuery) Build() M {
	if b.IsEmpty() {
		return MatchAll()
	}
	q := M{}
	if len(b.filter) > 0 {
		q["filter"] = b.filter
	}
	if len(b.should) > 0 {
		q["should"] = b.should
	}
	if len(b.must) > 0 {
		q["must"] = b.must
	}
	if b.minSM != nil {
		q["minimum_should_match"] = b.minSM
	}
	return M{"bool": q}
}

// Highlight builds a highlight block over fields.
func Highlight(preTag, postTag string, fragmentSize int, fields []string) M {
	fs := M{}
	for _, f := range fields {
		fs[f] = M{}
	}
	h := M{
		"fields":              fs,
		"number_of_fragments": 1,
	}
	if preTag != "" {
		h["pre_tags"] = []string{preTag}
	}
	if postTag != "" {
		h["post_tags"] = []string{postTag}
	}
	if fragmentSize > 0 {
		h["fragment_size"] = fragmentSize
	}
	return h
}
