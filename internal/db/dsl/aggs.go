package dsl

// TermsAgg returns a terms aggregation capped at size buckets.
func TermsAgg(field string, size int) M {
	return M{"terms": M{"field": field, "size": size}}
}

// NestedAgg returns a nested single-bucket aggregation.
func NestedAgg(path string) M {
	return M{"nested": M{"path": path}}
}

// FilterAgg returns a filter single-bucket aggregation.
func FilterAgg(query M) M {
	return M{"filter": query}
}

// Cardinality returns an approximate distinct-count aggregation.
func Cardinality(field string, precision int) M {
	return M{"cardinality": M{"field": field, "precision_threshold": precision}}
}

// Sum returns a sum aggregation.
func Sum(field string) M { return M{"sum": M{"field": field}} }

// Min returns a min aggregation.
func Min(field string) M { return M{"min": M{"field": field}} }

// Max returns a max aggregation.
func Max(field string) M { return M{"max": M{"field": field}} }

// RangeBucket is one range of a range aggregation. To is exclusive; nil means unbounded.
type RangeBucket struct {
	Key  string
	From *int
	To   *int
}

// RangeAgg returns a range aggregation.
func RangeAgg(field string, buckets []RangeBucket) M {
	ranges := make([]any, 0, len(buckets))
	for _, b := range buckets {
		r := M{"key": b.Key}
		if b.From != nil {
			r["from"] = *b.From
		}
		if b.To != nil {
			r["to"] = *b.To
		}
		ranges = append(ranges, r)
	}
	return M{"range": M{"field": field, "ranges": ranges}}
}

// WithSub attaches named sub-aggregations to agg and returns it.
func WithSub(agg M, subs M) M {
	agg["aggs"] = subs
	return agg
}

// ReverseNested returns an aggregation that joins back from nested documents to their parent.
func ReverseNested() M {
	return M{"reverse_nested": M{}}
}
