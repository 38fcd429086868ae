package query

import (
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/argument"
	"github.com/kailas-cloud/facetdex/internal/domain/descriptor"
	"github.com/kailas-cloud/facetdex/internal/domain/filter"
)

// Limits are the service-wide paging defaults a descriptor may override.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
}

// registered is one validated query.
type registered struct {
	name     string
	shape    descriptor.ShapeKind
	result   descriptor.ResultKind
	spec     filter.Spec
	pageCfg  argument.PageConfig
	strategy strategy
	mapFn    mapper
	members  []string
}

func (q *registered) isGroup() bool { return len(q.members) > 0 }

// Registry holds every query that passed validation. Read-only after construction.
type Registry struct {
	queries map[string]*registered
}

// NewRegistry validates and registers descs. A failing descriptor is skipped and
// its error returned; the rest still register.
func NewRegistry(descs []descriptor.Query, limits Limits) (*Registry, []error) {
	r := &Registry{queries: make(map[string]*registered, len(descs))}
	var errs []error

	var groups []descriptor.Query
	for _, d := range descs {
		if _, dup := r.queries[d.Name]; dup {
			errs = append(errs, fmt.Errorf("query %q: duplicate name: %w", d.Name, domain.ErrInvalidDescriptor))
			continue
		}
		if d.IsGroup() {
			groups = append(groups, d)
			continue
		}
		q, err := compile(d, limits)
		if err != nil {
			errs = append(errs, fmt.Errorf("query %q: %w", d.Name, err))
			continue
		}
		r.queries[d.Name] = q
	}

	// groups resolve after every single query is known
	for _, g := range groups {
		if _, dup := r.queries[g.Name]; dup {
			errs = append(errs, fmt.Errorf("query %q: duplicate name: %w", g.Name, domain.ErrInvalidDescriptor))
			continue
		}
		if err := r.checkMembers(g); err != nil {
			errs = append(errs, fmt.Errorf("group %q: %w", g.Name, err))
			continue
		}
		r.queries[g.Name] = &registered{name: g.Name, members: g.Members}
	}
	return r, errs
}

// RegisterAll builds a registry, logging and counting every rejected descriptor.
func RegisterAll(
	descs []descriptor.Query, limits Limits, failures prometheus.Counter, logger *zap.Logger,
) *Registry {
	r, errs := NewRegistry(descs, limits)
	for _, err := range errs {
		logger.Error("Query registration failed", zap.Error(err))
		if failures != nil {
			failures.Inc()
		}
	}
	logger.Info("Queries registered", zap.Int("count", len(r.queries)), zap.Int("rejected", len(errs)))
	return r
}

func compile(d descriptor.Query, limits Limits) (*registered, error) {
	strat, err := lookupStrategy(d.Shape)
	if err != nil {
		return nil, err
	}
	mapFn, err := lookupMapper(d.Result, d.Shape)
	if err != nil {
		return nil, err
	}
	spec := d.Spec()
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("filter spec: %w", err)
	}
	if len(spec.Fields) < strat.fields {
		return nil, fmt.Errorf("shape %q needs %d fields, got %d: %w",
			d.Shape, strat.fields, len(spec.Fields), domain.ErrInvalidDescriptor)
	}
	switch d.Shape {
	case descriptor.ShapePaginated:
		if spec.DefaultSort == "" {
			return nil, fmt.Errorf("paginated query needs a default sort: %w", domain.ErrInvalidDescriptor)
		}
	case descriptor.ShapeNested:
		if spec.NestedPath == "" {
			return nil, fmt.Errorf("nested query needs a nested path: %w", domain.ErrInvalidDescriptor)
		}
	case descriptor.ShapeGlobal:
		if len(spec.Searchable) == 0 {
			return nil, fmt.Errorf("global query needs searchable fields: %w", domain.ErrInvalidDescriptor)
		}
	}
	return &registered{
		name:     d.Name,
		shape:    d.Shape,
		result:   d.Result,
		spec:     spec,
		pageCfg:  d.PageConfig(limits.DefaultPageSize, limits.MaxPageSize),
		strategy: strat,
		mapFn:    mapFn,
	}, nil
}

func (r *Registry) checkMembers(g descriptor.Query) error {
	seen := make(map[string]struct{}, len(g.Members))
	for _, m := range g.Members {
		q, ok := r.queries[m]
		if !ok {
			return fmt.Errorf("member %q: %w", m, domain.ErrUnknownQuery)
		}
		if q.isGroup() {
			return fmt.Errorf("member %q is itself a group: %w", m, domain.ErrInvalidDescriptor)
		}
		if _, dup := seen[m]; dup {
			return fmt.Errorf("member %q listed twice: %w", m, domain.ErrInvalidDescriptor)
		}
		seen[m] = struct{}{}
	}
	return nil
}

func (r *Registry) get(name string) (*registered, bool) {
	q, ok := r.queries[name]
	return q, ok
}

// Names returns registered query names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.queries))
	for n := range r.queries {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
