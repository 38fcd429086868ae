// Package batch runs named backend requests in parallel and maps each reply independently.
package batch

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/argument"
)

// MaxBatchSize is the maximum number of requests per batch.
const MaxBatchSize = 100

// DefaultParallelism bounds concurrent backend calls per batch.
const DefaultParallelism = 8

// Mapper turns a raw backend reply into a typed result.
type Mapper func(resp db.SearchResponse) (any, error)

// NamedRequest is one member of a batch.
type NamedRequest struct {
	Name    string
	Request db.SearchRequest
	// Page routes the request through the pager when set.
	Page *argument.Pagination
	Map  Mapper
}

// Service executes batches.
type Service struct {
	search       Searcher
	pager        Pager
	parallelism  int
	maxBatchSize int
}

// New creates a batch service.
func New(search Searcher, pager Pager) *Service {
	return &Service{
		search:       search,
		pager:        pager,
		parallelism:  DefaultParallelism,
		maxBatchSize: MaxBatchSize,
	}
}

// WithParallelism configures how many requests run at once.
func (s *Service) WithParallelism(n int) *Service {
	if n > 0 {
		s.parallelism = n
	}
	return s
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// Execute runs every request and returns the mapped results keyed by name.
// The first failure cancels the remaining requests and fails the batch.
func (s *Service) Execute(ctx context.Context, reqs []NamedRequest) (map[string]any, error) {
	if len(reqs) > s.maxBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds %d: %w", len(reqs), s.maxBatchSize, domain.ErrInvalidArgument)
	}
	seen := make(map[string]struct{}, len(reqs))
	for _, r := range reqs {
		if _, dup := seen[r.Name]; dup {
			return nil, fmt.Errorf("duplicate request name %q: %w", r.Name, domain.ErrInvalidArgument)
		}
		seen[r.Name] = struct{}{}
	}

	var (
		mu  sync.Mutex
		out = make(map[string]any, len(reqs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, r := range reqs {
		g.Go(func() error {
			v, err := s.run(gctx, r)
			if err != nil {
				return fmt.Errorf("%s: %w", r.Name, err)
			}
			mu.Lock()
			out[r.Name] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // members already carry their name
	}
	return out, nil
}

// One runs a single request outside a batch.
func (s *Service) One(ctx context.Context, r NamedRequest) (any, error) {
	return s.run(ctx, r)
}

func (s *Service) run(ctx context.Context, r NamedRequest) (any, error) {
	var (
		resp db.SearchResponse
		err  error
	)
	if r.Page != nil {
		resp, err = s.pager.Fetch(ctx, r.Request, *r.Page)
	} else {
		resp, err = s.search.Search(ctx, r.Request)
	}
	if err != nil {
		return nil, err //nolint:wrapcheck // backend errors already carry their op
	}
	if r.Map == nil {
		return resp, nil
	}
	v, err := r.Map(resp)
	if err != nil {
		return nil, fmt.Errorf("map result: %w", err)
	}
	return v, nil
}
