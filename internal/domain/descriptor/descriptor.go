// Package descriptor loads declarative query descriptors from YAML files.
package descriptor

import (
	"github.com/kailas-cloud/facetdex/internal/domain/argument"
	"github.com/kailas-cloud/facetdex/internal/domain/filter"
)

// ShapeKind names a query-shape strategy.
type ShapeKind string

// Query shapes.
const (
	ShapePlain         ShapeKind = "plain"
	ShapePaginated     ShapeKind = "paginated"
	ShapeAggregated    ShapeKind = "aggregated"
	ShapeSubAggregated ShapeKind = "sub_aggregated"
	ShapeSummed        ShapeKind = "summed"
	ShapeRange         ShapeKind = "range"
	ShapeNested        ShapeKind = "nested"
	ShapeGlobal        ShapeKind = "global"
)

// ResultKind names a result mapper.
type ResultKind string

// Result kinds.
const (
	ResultObjectList       ResultKind = "object_list"
	ResultStringList       ResultKind = "string_list"
	ResultGroupCount       ResultKind = "group_count"
	ResultNestedGroupCount ResultKind = "nested_group_count"
	ResultTotal            ResultKind = "total"
	ResultSum              ResultKind = "sum"
	ResultRange            ResultKind = "range"
	ResultHierarchical     ResultKind = "hierarchical"
	ResultHighlight        ResultKind = "highlight"
)

// Query is one named query as written in a descriptor file.
type Query struct {
	Name            string        `yaml:"name"`
	Index           string        `yaml:"index"`
	Shape           ShapeKind     `yaml:"shape"`
	Result          ResultKind    `yaml:"result"`
	Fields          []string      `yaml:"fields"`
	CaseInsensitive bool          `yaml:"case_insensitive"`
	Range           []string      `yaml:"range"`
	Ignore          []string      `yaml:"ignore"`
	Nested          *Nested       `yaml:"nested"`
	Sort            Sort          `yaml:"sort"`
	Page            Page          `yaml:"page"`
	Search          []SearchField `yaml:"search"`
	Highlight       *Highlight    `yaml:"highlight"`
	// Members turns the query into a group executed as one batch.
	Members []string `yaml:"members"`
}

// Nested configures nested-path aggregation.
type Nested struct {
	Path   string   `yaml:"path"`
	Params []string `yaml:"params"`
}

// Sort configures default and caller-selectable sort fields.
type Sort struct {
	Default string            `yaml:"default"`
	Fields  map[string]string `yaml:"fields"`
}

// Page overrides paging defaults for a query.
type Page struct {
	DefaultSize int `yaml:"default_size"`
	MaxSize     int `yaml:"max_size"`
}

// SearchField is a field consulted by free-text search.
type SearchField struct {
	Field string `yaml:"field"`
	Match string `yaml:"match"`
}

// Highlight configures highlighted fragments.
type Highlight struct {
	PreTag       string   `yaml:"pre_tag"`
	PostTag      string   `yaml:"post_tag"`
	FragmentSize int      `yaml:"fragment_size"`
	Fields       []string `yaml:"fields"`
}

// IsGroup reports whether the query only bundles other queries.
func (q Query) IsGroup() bool { return len(q.Members) > 0 }

// Spec converts the descriptor into a filter specification.
func (q Query) Spec() filter.Spec {
	s := filter.Spec{
		Index:           q.Index,
		Fields:          q.Fields,
		CaseInsensitive: q.CaseInsensitive,
		RangeKeys:       q.Range,
		Ignore:          q.Ignore,
		DefaultSort:     q.Sort.Default,
		SortFields:      q.Sort.Fields,
	}
	if q.Nested != nil {
		s.NestedPath = q.Nested.Path
		s.NestedParams = q.Nested.Params
	}
	for _, f := range q.Search {
		s.Searchable = append(s.Searchable, filter.SearchField{Name: f.Field, Match: filter.MatchKind(f.Match)})
	}
	if q.Highlight != nil {
		s.Highlight = filter.Highlight{
			PreTag:       q.Highlight.PreTag,
			PostTag:      q.Highlight.PostTag,
			FragmentSize: q.Highlight.FragmentSize,
			Fields:       q.Highlight.Fields,
		}
	}
	return s
}

// PageConfig derives paging defaults, falling back to the given service-wide values.
func (q Query) PageConfig(defaultSize, maxSize int) argument.PageConfig {
	cfg := argument.PageConfig{
		DefaultSize: defaultSize,
		MaxSize:     maxSize,
		DefaultSort: q.Sort.Default,
		SortFields:  q.Sort.Fields,
	}
	if q.Page.DefaultSize > 0 {
		cfg.DefaultSize = q.Page.DefaultSize
	}
	if q.Page.MaxSize > 0 {
		cfg.MaxSize = q.Page.MaxSize
	}
	return cfg
}
