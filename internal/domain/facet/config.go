// Package facet describes facet sets: which entity owns which field,
// what each facet aggregates and where approximate counts stop being trusted.
package facet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/facetdex/internal/domain"
)

// Kind selects the facet aggregation.
type Kind string

// Facet kinds.
const (
	KindTerms    Kind = "terms"
	KindAgeRange Kind = "age_range"
)

// Entity is a searchable entity. Sub-entities are stored as nested documents under Path.
type Entity struct {
	Path string `yaml:"path"`
}

// Facet is one facet of a set.
type Facet struct {
	Name string `yaml:"name"`
	// Arg is the argument key the facet filters on; defaults to Name.
	Arg   string `yaml:"arg"`
	Field string `yaml:"field"`
	Kind  Kind   `yaml:"kind"`
	// DistinctField, when set, adds a cardinality sub-aggregation over it.
	DistinctField string `yaml:"distinct_field"`
}

// ArgKey returns the argument key that filters this facet.
func (f Facet) ArgKey() string {
	if f.Arg != "" {
		return f.Arg
	}
	return f.Name
}

// Thresholds maps entity -> field -> value -> the largest approximate count still trusted.
type Thresholds map[string]map[string]map[string]int64

// Set is the configuration of one facet set.
type Set struct {
	Index   string `yaml:"index"`
	Primary string `yaml:"primary"`
	// Entities lists sub-entities by name.
	Entities map[string]Entity `yaml:"entities"`
	// Ownership maps entity name to the fields it owns.
	Ownership  map[string][]string `yaml:"ownership"`
	Facets     []Facet             `yaml:"facets"`
	Thresholds Thresholds          `yaml:"thresholds"`
	RangeKeys  []string            `yaml:"range"`
	// CaseInsensitive filters string arguments with case-insensitive wildcards.
	CaseInsensitive bool `yaml:"case_insensitive"`

	owners map[string]string
}

// Route describes where a field lives in the backend document.
type Route struct {
	Entity string
	// Path is the nested path, empty for top-level fields.
	Path string
	// Field is the backend field name (path-qualified when nested).
	Field string
}

// Nested reports whether the field sits inside a nested document.
func (r Route) Nested() bool { return r.Path != "" }

// Validate checks the set and builds the ownership index.
func (s *Set) Validate() error {
	if s.Index == "" {
		return errors.New("index is required")
	}
	if s.Primary == "" {
		return errors.New("primary entity is required")
	}
	s.owners = make(map[string]string)
	// sorted for deterministic duplicate detection
	entities := make([]string, 0, len(s.Ownership))
	for e := range s.Ownership {
		entities = append(entities, e)
	}
	sort.Strings(entities)
	for _, e := range entities {
		if e != s.Primary {
			if ent, ok := s.Entities[e]; !ok || ent.Path == "" {
				return fmt.Errorf("entity %q owns fields but has no nested path", e)
			}
		}
		for _, f := range s.Ownership[e] {
			if prev, dup := s.owners[f]; dup {
				return fmt.Errorf("field %q owned by both %q and %q", f, prev, e)
			}
			s.owners[f] = e
		}
	}
	seen := make(map[string]struct{}, len(s.Facets))
	for i := range s.Facets {
		if s.Facets[i].Kind == "" {
			s.Facets[i].Kind = KindTerms
		}
		f := s.Facets[i]
		if f.Name == "" || f.Field == "" {
			return fmt.Errorf("facet requires name and field: %+v", f)
		}
		if strings.HasPrefix(f.Name, "_") {
			return fmt.Errorf("facet %q: names starting with _ are reserved", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate facet %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		switch f.Kind {
		case KindTerms, KindAgeRange:
		default:
			return fmt.Errorf("facet %q: unknown kind %q", f.Name, f.Kind)
		}
		// exact recounts count documents, which a top-level cardinality is not
		if f.DistinctField != "" && !s.Route(f.Field).Nested() && len(s.Thresholds[s.Primary][f.Field]) > 0 {
			return fmt.Errorf("facet %q: thresholds are not supported on top-level distinct facets", f.Name)
		}
	}
	return nil
}

// Route resolves field through the ownership table. Fields owned by the
// primary entity, or by nobody, stay top-level.
func (s *Set) Route(field string) Route {
	owner, ok := s.owners[field]
	if !ok || owner == s.Primary {
		return Route{Entity: s.Primary, Field: field}
	}
	path := s.Entities[owner].Path
	return Route{Entity: owner, Path: path, Field: path + "." + field}
}

// Threshold returns the trusted-count ceiling for a value, if any.
func (s *Set) Threshold(entity, field, value string) (int64, bool) {
	byField, ok := s.Thresholds[entity]
	if !ok {
		return 0, false
	}
	byValue, ok := byField[field]
	if !ok {
		return 0, false
	}
	t, ok := byValue[value]
	return t, ok
}

// IsRange reports whether key filters as a numeric range.
func (s *Set) IsRange(key string) bool {
	for _, k := range s.RangeKeys {
		if k == key {
			return true
		}
	}
	return false
}

// AgeBucket is one fixed age range expressed in years.
type AgeBucket struct {
	Key      string
	FromYear int
	// ToYear is exclusive; zero means unbounded.
	ToYear int
}

// AgeBuckets are the fixed age ranges used by age_range facets.
var AgeBuckets = []AgeBucket{
	{Key: "0 - 4", FromYear: 0, ToYear: 5},
	{Key: "5 - 9", FromYear: 5, ToYear: 10},
	{Key: "10 - 14", FromYear: 10, ToYear: 15},
	{Key: "15 - 19", FromYear: 15, ToYear: 20},
	{Key: "20 - 29", FromYear: 20, ToYear: 30},
	{Key: "> 29", FromYear: 30},
}

// FromDays returns the inclusive lower bound in days.
func (b AgeBucket) FromDays() int { return b.FromYear * domain.DaysPerYear }

// ToDays returns the exclusive upper bound in days, or 0 when unbounded.
func (b AgeBucket) ToDays() int { return b.ToYear * domain.DaysPerYear }

type file struct {
	Sets map[string]*Set `yaml:"sets"`
}

// Load reads facet sets from path. A missing file yields no sets.
func Load(path string) (map[string]*Set, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]*Set{}, nil
		}
		return nil, fmt.Errorf("read facet config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates facet sets.
func Parse(data []byte) (map[string]*Set, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse facet config: %w", err)
	}
	if f.Sets == nil {
		f.Sets = map[string]*Set{}
	}
	for name, s := range f.Sets {
		if s == nil {
			return nil, fmt.Errorf("facet set %q is empty", name)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("facet set %q: %w", name, err)
		}
	}
	return f.Sets, nil
}
