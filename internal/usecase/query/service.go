// Package query translates named queries into backend requests and maps the replies.
package query

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/argument"
	"github.com/kailas-cloud/facetdex/internal/domain/shape"
	"github.com/kailas-cloud/facetdex/internal/usecase/batch"
)

// Service runs registered queries.
type Service struct {
	reg    *Registry
	exec   Executor
	logger *zap.Logger
}

// New creates a query service.
func New(reg *Registry, exec Executor, logger *zap.Logger) *Service {
	return &Service{reg: reg, exec: exec, logger: logger}
}

// Names lists the registered queries.
func (s *Service) Names() []string { return s.reg.Names() }

// Run executes the named query with raw arguments and returns its typed result.
// A group returns a map keyed by member name; out then selects each member's
// shape through the child field of the same name.
func (s *Service) Run(ctx context.Context, name string, raw map[string]any, out shape.Field) (any, error) {
	q, ok := s.reg.get(name)
	if !ok {
		return nil, fmt.Errorf("query %q: %w", name, domain.ErrUnknownQuery)
	}
	if q.isGroup() {
		return s.runGroup(ctx, q, raw, out)
	}

	nr, direct, err := s.prepare(q, raw, out)
	if err != nil {
		return nil, err
	}
	if nr == nil {
		return direct, nil
	}
	v, err := s.exec.One(ctx, *nr)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", name, err)
	}
	return v, nil
}

func (s *Service) runGroup(ctx context.Context, g *registered, raw map[string]any, out shape.Field) (any, error) {
	results := make(map[string]any, len(g.members))
	reqs := make([]batch.NamedRequest, 0, len(g.members))
	for _, m := range g.members {
		q, _ := s.reg.get(m)
		nr, direct, err := s.prepare(q, raw, memberShape(out, m))
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", m, err)
		}
		if nr == nil {
			results[m] = direct
			continue
		}
		reqs = append(reqs, *nr)
	}

	if len(reqs) > 0 {
		fetched, err := s.exec.Execute(ctx, reqs)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", g.name, err)
		}
		for k, v := range fetched {
			results[k] = v
		}
	}
	s.logger.Debug("Group executed", zap.String("group", g.name), zap.Int("requests", len(reqs)))
	return results, nil
}

// prepare builds the request for q. When the strategy short-circuits, nr is nil
// and direct holds the mapped empty result.
func (s *Service) prepare(q *registered, raw map[string]any, out shape.Field) (nr *batch.NamedRequest, direct any, err error) {
	params, err := argument.NewParameters(raw, out, q.pageCfg)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // domain errors carry the field
	}
	p, err := q.strategy.build(params, q.spec)
	if err != nil {
		return nil, nil, err
	}

	spec, mapFn := q.spec, q.mapFn
	if p.empty {
		v, err := mapFn(db.SearchResponse{}, params, spec)
		return nil, v, err
	}
	return &batch.NamedRequest{
		Name:    q.name,
		Request: p.request,
		Page:    p.page,
		Map: func(resp db.SearchResponse) (any, error) {
			return mapFn(resp, params, spec)
		},
	}, nil, nil
}

func memberShape(out shape.Field, member string) shape.Field {
	for _, f := range out.Fields {
		if f.Name == member {
			return f
		}
	}
	return shape.Field{Name: member}
}
