// Package filter holds the per-query filter specification built from a descriptor.
package filter

import (
	"fmt"

	"github.com/kailas-cloud/facetdex/internal/domain"
)

// MatchKind selects how a searchable field matches free text.
type MatchKind string

// Match kinds for global search fields.
const (
	MatchTerm     MatchKind = "term"
	MatchWildcard MatchKind = "wildcard"
	MatchText     MatchKind = "match"
	MatchBoolean  MatchKind = "boolean"
	MatchInteger  MatchKind = "integer"
)

// IsValid checks if the kind is supported.
func (k MatchKind) IsValid() bool {
	switch k {
	case MatchTerm, MatchWildcard, MatchText, MatchBoolean, MatchInteger:
		return true
	}
	return false
}

// SearchField is one field consulted by free-text search.
type SearchField struct {
	Name  string
	Match MatchKind
}

// Highlight configures highlighted fragments for free-text search.
type Highlight struct {
	PreTag       string
	PostTag      string
	FragmentSize int
	Fields       []string
}

// Spec describes how one named query filters, sorts and aggregates.
// It is built once at registration and shared read-only afterwards.
type Spec struct {
	Index string
	// Fields are the selected fields: the aggregation or projection targets.
	Fields          []string
	CaseInsensitive bool
	RangeKeys       []string
	Ignore          []string
	NestedPath      string
	// NestedParams are argument keys applied inside the nested filter aggregation.
	NestedParams []string
	DefaultSort  string
	SortFields   map[string]string
	Searchable   []SearchField
	Highlight    Highlight
}

// Validate checks internal consistency.
func (s Spec) Validate() error {
	if s.Index == "" {
		return fmt.Errorf("index is required: %w", domain.ErrInvalidDescriptor)
	}
	for _, f := range s.Searchable {
		if f.Name == "" {
			return fmt.Errorf("searchable field without name: %w", domain.ErrInvalidDescriptor)
		}
		if !f.Match.IsValid() {
			return fmt.Errorf("searchable field %q: match %q: %w", f.Name, f.Match, domain.ErrInvalidDescriptor)
		}
	}
	if len(s.NestedParams) > 0 && s.NestedPath == "" {
		return fmt.Errorf("nested params without nested path: %w", domain.ErrInvalidDescriptor)
	}
	return nil
}

// Field returns the i-th selected field, or "" when absent.
func (s Spec) Field(i int) string {
	if i < 0 || i >= len(s.Fields) {
		return ""
	}
	return s.Fields[i]
}

// IsRange reports whether key is filtered as a numeric range.
func (s Spec) IsRange(key string) bool { return contains(s.RangeKeys, key) }

// IsIgnored reports whether key never contributes a clause.
func (s Spec) IsIgnored(key string) bool { return contains(s.Ignore, key) }

// IsNestedParam reports whether key belongs inside the nested filter aggregation.
func (s Spec) IsNestedParam(key string) bool { return contains(s.NestedParams, key) }

func contains(list []string, key string) bool {
	for _, v := range list {
		if v == key {
			return true
		}
	}
	return false
}
