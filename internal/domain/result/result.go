// Package result holds the typed values query mappers produce.
package result

// Object is one projected hit. Dotted field paths become nested objects.
type Object map[string]any

// GroupCount is one bucket of a terms aggregation.
type GroupCount struct {
	Group    string `json:"group"`
	Subjects int64  `json:"subjects"`
}

// NestedGroupCount is a nested terms aggregation with its overflow.
// Total always equals the sum of Groups plus Other.
type NestedGroupCount struct {
	Groups []GroupCount `json:"groups"`
	Other  int64        `json:"other"`
	Total  int64        `json:"total"`
}

// Bounds is the minimum and maximum of a numeric field.
type Bounds struct {
	LowerBound float64 `json:"lowerBound"`
	UpperBound float64 `json:"upperBound"`
}

// Hierarchy is a parent group with its child groups, in backend order.
type Hierarchy struct {
	Group    string       `json:"group"`
	Subjects int64        `json:"subjects"`
	Children []GroupCount `json:"children"`
}

// Page is a window of objects with the total match count.
type Page struct {
	Total int64    `json:"total"`
	Items []Object `json:"items"`
}

// FacetBucket is one facet value with its count.
type FacetBucket struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
	// Exact is set when the count came from an exact recount.
	Exact bool `json:"exact,omitempty"`
}

// FacetBundle is the full facet response for one argument set.
type FacetBundle struct {
	Total  int64                    `json:"total"`
	Facets map[string][]FacetBucket `json:"facets"`
}
