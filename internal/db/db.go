package db

import (
	"context"
	"encoding/json"
	"maps"
	"time"
)

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Searcher is the search backend facade: one-shot search, cursor scroll and count.
type Searcher interface {
	Pinger
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
	Scroll(ctx context.Context, scrollID string, keepAlive time.Duration) (SearchResponse, error)
	ClearScroll(ctx context.Context, scrollID string) error
	Count(ctx context.Context, index string, query map[string]any) (int64, error)
}

// KVStore provides simple key-value operations for the shared cache tier.
type KVStore interface {
	Pinger
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// SearchRequest is a backend _search call.
// Body holds the full JSON body (query, aggs, from/size, sort, highlight).
type SearchRequest struct {
	Index string
	Body  map[string]any
	// Scroll opens a scroll cursor with this keep-alive when non-zero.
	Scroll time.Duration
}

// WithBody returns a copy of the request with keys merged into a shallow copy of Body.
func (r SearchRequest) WithBody(kv map[string]any) SearchRequest {
	body := maps.Clone(r.Body)
	if body == nil {
		body = make(map[string]any, len(kv))
	}
	maps.Copy(body, kv)
	r.Body = body
	return r
}

// Hit is one returned document.
type Hit struct {
	ID        string
	Source    map[string]any
	Highlight map[string][]string
}

// SearchResponse is the decoded _search or _search/scroll reply.
type SearchResponse struct {
	Total        int64
	Hits         []Hit
	Aggregations map[string]json.RawMessage
	ScrollID     string
}
