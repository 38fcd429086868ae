// Package pagination serves result pages, switching to a scroll cursor past the native window.
package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/argument"
)

// DefaultKeepAlive is the idle timeout of an open scroll cursor.
const DefaultKeepAlive = 10 * time.Second

// Service fetches one page of hits.
type Service struct {
	search    Searcher
	window    int
	keepAlive time.Duration
	sessions  *prometheus.CounterVec
	logger    *zap.Logger
}

// New creates a pagination service. sessions is a counter vec with label "outcome", may be nil.
func New(search Searcher, sessions *prometheus.CounterVec, logger *zap.Logger) *Service {
	return &Service{
		search:    search,
		window:    domain.ResultWindow,
		keepAlive: DefaultKeepAlive,
		sessions:  sessions,
		logger:    logger,
	}
}

// WithWindow overrides the native result window.
func (s *Service) WithWindow(n int) *Service {
	if n > 0 {
		s.window = n
	}
	return s
}

// WithKeepAlive overrides the scroll cursor idle timeout.
func (s *Service) WithKeepAlive(d time.Duration) *Service {
	if d > 0 {
		s.keepAlive = d
	}
	return s
}

// Fetch returns the page of req described by page. Total and Aggregations
// come from the first backend reply; Hits hold only the requested page.
func (s *Service) Fetch(
	ctx context.Context, req db.SearchRequest, page argument.Pagination,
) (db.SearchResponse, error) {
	size := page.Size()
	if size <= 0 {
		return db.SearchResponse{}, fmt.Errorf("page size %d: %w", size, domain.ErrInvalidArgument)
	}
	if page.Offset()+size <= s.window {
		return s.single(ctx, req, page)
	}
	return s.scroll(ctx, req, page)
}

func (s *Service) single(
	ctx context.Context, req db.SearchRequest, page argument.Pagination,
) (db.SearchResponse, error) {
	body := map[string]any{"from": page.Offset(), "size": page.Size()}
	if sort := page.Sort(); sort != nil {
		body["sort"] = sort
	}
	resp, err := s.search.Search(ctx, req.WithBody(body))
	if err != nil {
		return db.SearchResponse{}, fmt.Errorf("search page: %w", err)
	}
	return resp, nil
}

func (s *Service) scroll(
	ctx context.Context, req db.SearchRequest, page argument.Pagination,
) (resp db.SearchResponse, err error) {
	size, offset := page.Size(), page.Offset()
	if offset%size != 0 {
		return db.SearchResponse{}, domain.NewFieldError(argument.KeyOffset,
			fmt.Errorf("offset %d beyond window %d must be a multiple of page size %d: %w",
				offset, s.window, size, domain.ErrInvalidArgument))
	}
	batch := (s.window / size) * size

	body := map[string]any{"size": batch}
	if sort := page.Sort(); sort != nil {
		body["sort"] = sort
	}
	req = req.WithBody(body)
	delete(req.Body, "from")
	req.Scroll = s.keepAlive

	var scrollID string
	defer func() {
		s.release(scrollID)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		if s.sessions != nil {
			s.sessions.WithLabelValues(outcome).Inc()
		}
	}()

	first, err := s.search.Search(ctx, req)
	if err != nil {
		return db.SearchResponse{}, fmt.Errorf("open scroll: %w", err)
	}
	scrollID = first.ScrollID

	cur := first
	seen := len(cur.Hits)
	for seen <= offset && len(cur.Hits) > 0 {
		cur, err = s.search.Scroll(ctx, scrollID, s.keepAlive)
		if err != nil {
			return db.SearchResponse{}, fmt.Errorf("scroll: %w", err)
		}
		if cur.ScrollID != "" {
			scrollID = cur.ScrollID
		}
		seen += len(cur.Hits)
	}

	out := db.SearchResponse{
		Total:        first.Total,
		Aggregations: first.Aggregations,
	}
	if seen <= offset {
		return out, nil
	}
	start := offset - (seen - len(cur.Hits))
	end := min(start+size, len(cur.Hits))
	out.Hits = cur.Hits[start:end]
	return out, nil
}

// release clears the cursor on a fresh context so a cancelled request still frees it.
func (s *Service) release(scrollID string) {
	if scrollID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.keepAlive)
	defer cancel()
	if err := s.search.ClearScroll(ctx, scrollID); err != nil {
		s.logger.Warn("Failed to clear scroll", zap.Error(err))
	}
}
