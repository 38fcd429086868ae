package pagination

import (
	"context"
	"time"

	"github.com/kailas-cloud/facetdex/internal/db"
)

// Searcher issues one-shot and scrolled searches.
type Searcher interface {
	Search(ctx context.Context, req db.SearchRequest) (db.SearchResponse, error)
	Scroll(ctx context.Context, scrollID string, keepAlive time.Duration) (db.SearchResponse, error)
	ClearScroll(ctx context.Context, scrollID string) error
}
