package chi

import (
	"context"

	"github.com/kailas-cloud/facetdex/internal/domain/result"
	"github.com/kailas-cloud/facetdex/internal/domain/shape"
)

// QueryRunner executes named queries.
type QueryRunner interface {
	Run(ctx context.Context, name string, raw map[string]any, out shape.Field) (any, error)
	Names() []string
}

// FacetProvider computes and invalidates facet bundles.
type FacetProvider interface {
	Bundle(ctx context.Context, set string, raw map[string]any) (result.FacetBundle, error)
	Invalidate(ctx context.Context, set string) (int, error)
	Sets() []string
}
