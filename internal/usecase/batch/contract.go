package batch

import (
	"context"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/domain/argument"
)

// Searcher issues one-shot searches.
type Searcher interface {
	Search(ctx context.Context, req db.SearchRequest) (db.SearchResponse, error)
}

// Pager serves one page of a search, scrolling when the page lies past the native window.
type Pager interface {
	Fetch(ctx context.Context, req db.SearchRequest, page argument.Pagination) (db.SearchResponse, error)
}
