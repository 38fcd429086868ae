// Package facet computes facet bundles: disjunctive per-facet counts with
// ownership-aware routing, exact recounts above thresholds, and caching.
package facet

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/db/dsl"
	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/argument"
	domfacet "github.com/kailas-cloud/facetdex/internal/domain/facet"
	"github.com/kailas-cloud/facetdex/internal/domain/result"
	"github.com/kailas-cloud/facetdex/internal/repository/facetcache"
	"github.com/kailas-cloud/facetdex/internal/usecase/batch"
)

// totalRequest names the hit-count member of a bundle batch. Facet names never start with "_".
const totalRequest = "_total"

// recountParallelism bounds concurrent exact recounts per bundle.
const recountParallelism = 4

// Service computes facet bundles for configured sets.
type Service struct {
	sets     map[string]*domfacet.Set
	exec     Executor
	counter  Counter
	cache    Cache
	recounts *prometheus.CounterVec
	logger   *zap.Logger
}

// New creates a facet service. cache and recounts may be nil.
func New(
	sets map[string]*domfacet.Set, exec Executor, counter Counter, cache Cache,
	recounts *prometheus.CounterVec, logger *zap.Logger,
) *Service {
	return &Service{
		sets:     sets,
		exec:     exec,
		counter:  counter,
		cache:    cache,
		recounts: recounts,
		logger:   logger,
	}
}

// Sets returns the configured set names, sorted.
func (s *Service) Sets() []string {
	out := make([]string, 0, len(s.sets))
	for n := range s.sets {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Bundle returns the facet bundle of set for raw arguments, from cache when possible.
func (s *Service) Bundle(ctx context.Context, setName string, raw map[string]any) (result.FacetBundle, error) {
	set, ok := s.sets[setName]
	if !ok {
		return result.FacetBundle{}, fmt.Errorf("facet set %q: %w", setName, domain.ErrUnknownFacetSet)
	}
	args, err := argument.ResolveArgs(raw)
	if err != nil {
		return result.FacetBundle{}, err //nolint:wrapcheck // domain errors carry the field
	}

	if s.cache == nil {
		return s.compute(ctx, setName, set, args)
	}

	data, err := s.cache.GetOrCompute(ctx, facetcache.Key(setName, args), func(ctx context.Context) ([]byte, error) {
		b, err := s.compute(ctx, setName, set, args)
		if err != nil {
			return nil, err
		}
		return json.Marshal(b) //nolint:wrapcheck // plain struct, cannot fail
	})
	if err != nil {
		return result.FacetBundle{}, err //nolint:wrapcheck // cache wraps with its key
	}
	var bundle result.FacetBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return result.FacetBundle{}, fmt.Errorf("decode cached bundle: %w", err)
	}
	return bundle, nil
}

// Invalidate drops the cached bundles of set.
func (s *Service) Invalidate(ctx context.Context, setName string) (int, error) {
	if _, ok := s.sets[setName]; !ok {
		return 0, fmt.Errorf("facet set %q: %w", setName, domain.ErrUnknownFacetSet)
	}
	if s.cache == nil {
		return 0, nil
	}
	n, err := s.cache.Invalidate(ctx, setName)
	if err != nil {
		return 0, fmt.Errorf("invalidate %q: %w", setName, err)
	}
	s.logger.Info("Facet cache invalidated", zap.String("set", setName), zap.Int("entries", n))
	return n, nil
}

func (s *Service) compute(
	ctx context.Context, setName string, set *domfacet.Set, args argument.Args,
) (result.FacetBundle, error) {
	all, err := filterQuery(set, args)
	if err != nil {
		return result.FacetBundle{}, err
	}
	reqs := []batch.NamedRequest{{
		Name: totalRequest,
		Request: db.SearchRequest{Index: set.Index, Body: map[string]any{
			"query": all, "size": 0, "track_total_hits": true,
		}},
		Map: func(resp db.SearchResponse) (any, error) { return resp.Total, nil },
	}}

	// each facet ignores its own argument so its values stay selectable
	bases := make(map[string]dsl.M, len(set.Facets))
	for _, f := range set.Facets {
		base, err := filterQuery(set, args.Without(f.ArgKey()))
		if err != nil {
			return result.FacetBundle{}, err
		}
		bases[f.Name] = base
		route := set.Route(f.Field)
		reqs = append(reqs, batch.NamedRequest{
			Name: f.Name,
			Request: db.SearchRequest{Index: set.Index, Body: map[string]any{
				"query": base, "size": 0, "track_total_hits": true, "aggs": facetAggs(f, route),
			}},
			Map: func(resp db.SearchResponse) (any, error) {
				return decodeFacet(resp.Aggregations, f, route)
			},
		})
	}

	out, err := s.exec.Execute(ctx, reqs)
	if err != nil {
		return result.FacetBundle{}, fmt.Errorf("facet set %q: %w", setName, err)
	}

	bundle := result.FacetBundle{
		Total:  out[totalRequest].(int64),
		Facets: make(map[string][]result.FacetBucket, len(set.Facets)),
	}
	for _, f := range set.Facets {
		bundle.Facets[f.Name] = out[f.Name].([]result.FacetBucket)
	}

	if err := s.recount(ctx, setName, set, bases, bundle); err != nil {
		return result.FacetBundle{}, err
	}
	return bundle, nil
}

// recount replaces approximate counts above their threshold with exact counts,
// one count request per offending value.
func (s *Service) recount(
	ctx context.Context, setName string, set *domfacet.Set,
	bases map[string]dsl.M, bundle result.FacetBundle,
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(recountParallelism)

	for _, f := range set.Facets {
		if f.Kind != domfacet.KindTerms {
			continue
		}
		route := set.Route(f.Field)
		buckets := bundle.Facets[f.Name]
		for i := range buckets {
			limit, ok := set.Threshold(route.Entity, f.Field, buckets[i].Value)
			if !ok || buckets[i].Count <= limit {
				continue
			}
			q := dsl.Bool().Filter(bases[f.Name], routedTerm(route, buckets[i].Value)).Build()
			g.Go(func() error {
				n, err := s.counter.Count(gctx, set.Index, q)
				if err != nil {
					return fmt.Errorf("recount %s=%s: %w", f.Name, buckets[i].Value, err)
				}
				buckets[i].Count = n
				buckets[i].Exact = true
				if s.recounts != nil {
					s.recounts.WithLabelValues(setName, f.Name).Inc()
				}
				return nil
			})
		}
	}
	return g.Wait() //nolint:wrapcheck // members carry facet and value
}
