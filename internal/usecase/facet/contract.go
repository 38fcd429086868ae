package facet

import (
	"context"

	"github.com/kailas-cloud/facetdex/internal/usecase/batch"
)

// Executor runs the per-facet requests of one bundle.
type Executor interface {
	Execute(ctx context.Context, reqs []batch.NamedRequest) (map[string]any, error)
}

// Counter returns exact hit counts.
type Counter interface {
	Count(ctx context.Context, index string, query map[string]any) (int64, error)
}

// Cache fronts bundle computation.
type Cache interface {
	GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) ([]byte, error)) ([]byte, error)
	Invalidate(ctx context.Context, namespace string) (int, error)
}
