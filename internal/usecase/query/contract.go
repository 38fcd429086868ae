package query

import (
	"context"

	"github.com/kailas-cloud/facetdex/internal/usecase/batch"
)

// Executor runs backend requests and maps their replies.
type Executor interface {
	Execute(ctx context.Context, reqs []batch.NamedRequest) (map[string]any, error)
	One(ctx context.Context, r batch.NamedRequest) (any, error)
}
