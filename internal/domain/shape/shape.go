// Package shape describes the output shape a caller requests from a query.
package shape

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/facetdex/internal/domain"
)

// Field is one node of the requested output tree.
// A leaf has no Fields; an object field lists its children; Variants holds
// inline fragments keyed by type name.
type Field struct {
	Name     string             `json:"name"`
	Fields   []Field            `json:"fields,omitempty"`
	Variants map[string][]Field `json:"variants,omitempty"`
}

// Leaf builds a scalar field.
func Leaf(name string) Field { return Field{Name: name} }

// Object builds an object field with the given children.
func Object(name string, children ...Field) Field {
	return Field{Name: name, Fields: children}
}

// Requested returns the sorted set of field paths the root selects.
// Object children are reported as dotted paths; variant fields are excluded.
func (f Field) Requested() ([]string, error) {
	set := make(map[string]struct{})
	for _, child := range f.Fields {
		if err := collect(child, "", set); err != nil {
			return nil, err
		}
	}
	return sortedKeys(set), nil
}

// VariantFields returns the field set of each inline variant.
func (f Field) VariantFields() (map[string][]string, error) {
	if len(f.Variants) == 0 {
		return nil, nil
	}
	out := make(map[string][]string, len(f.Variants))
	for typeName, fields := range f.Variants {
		if typeName == "" {
			return nil, fmt.Errorf("variant without type name: %w", domain.ErrInvalidShape)
		}
		if len(fields) == 0 {
			return nil, domain.NewFieldError(typeName, fmt.Errorf("variant has no fields: %w", domain.ErrInvalidShape))
		}
		set := make(map[string]struct{})
		for _, child := range fields {
			if err := collect(child, "", set); err != nil {
				return nil, err
			}
		}
		out[typeName] = sortedKeys(set)
	}
	return out, nil
}

func collect(f Field, prefix string, set map[string]struct{}) error {
	if f.Name == "" {
		return fmt.Errorf("field without name under %q: %w", prefix, domain.ErrInvalidShape)
	}
	path := f.Name
	if prefix != "" {
		path = prefix + "." + f.Name
	}
	if len(f.Fields) == 0 {
		set[path] = struct{}{}
		return nil
	}
	for _, child := range f.Fields {
		if err := collect(child, path, set); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
