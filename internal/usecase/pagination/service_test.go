package pagination

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/argument"
)

type mockSearcher struct {
	searchFn func(ctx context.Context, req db.SearchRequest) (db.SearchResponse, error)
	scrollFn func(ctx context.Context, scrollID string, keepAlive time.Duration) (db.SearchResponse, error)
	clearFn  func(ctx context.Context, scrollID string) error

	searches int
	scrolls  int
	clears   []string
}

func (m *mockSearcher) Search(ctx context.Context, req db.SearchRequest) (db.SearchResponse, error) {
	m.searches++
	return m.searchFn(ctx, req)
}

func (m *mockSearcher) Scroll(ctx context.Context, id string, keepAlive time.Duration) (db.SearchResponse, error) {
	m.scrolls++
	return m.scrollFn(ctx, id, keepAlive)
}

func (m *mockSearcher) ClearScroll(ctx context.Context, id string) error {
	m.clears = append(m.clears, id)
	if m.clearFn != nil {
		return m.clearFn(ctx, id)
	}
	return nil
}

func hits(from, n int) []db.Hit {
	out := make([]db.Hit, n)
	for i := range out {
		out[i] = db.Hit{ID: strconv.Itoa(from + i)}
	}
	return out
}

// corpus serves total documents in scroll batches of whatever size the first request asks for.
func corpus(total int) *mockSearcher {
	m := &mockSearcher{}
	var batch, pos int
	next := func() []db.Hit {
		n := min(batch, total-pos)
		if n < 0 {
			n = 0
		}
		h := hits(pos, n)
		pos += n
		return h
	}
	m.searchFn = func(_ context.Context, req db.SearchRequest) (db.SearchResponse, error) {
		batch = req.Body["size"].(int)
		return db.SearchResponse{Total: int64(total), Hits: next(), ScrollID: "cursor"}, nil
	}
	m.scrollFn = func(context.Context, string, time.Duration) (db.SearchResponse, error) {
		return db.SearchResponse{Hits: next(), ScrollID: "cursor"}, nil
	}
	return m
}

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_scroll_total"}, []string{"outcome"})
}

func TestFetch_WithinWindowSingleRequest(t *testing.T) {
	var got db.SearchRequest
	m := &mockSearcher{
		searchFn: func(_ context.Context, req db.SearchRequest) (db.SearchResponse, error) {
			got = req
			return db.SearchResponse{Total: 42, Hits: hits(20, 10)}, nil
		},
	}
	svc := New(m, nil, zap.NewNop())

	page := argument.NewPage(10, 20, "created", argument.Asc)
	resp, err := svc.Fetch(context.Background(), db.SearchRequest{Index: "studies"}, page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.searches != 1 || m.scrolls != 0 || len(m.clears) != 0 {
		t.Errorf("searches=%d scrolls=%d clears=%d", m.searches, m.scrolls, len(m.clears))
	}
	if got.Body["from"] != 20 || got.Body["size"] != 10 {
		t.Errorf("unexpected body %v", got.Body)
	}
	if got.Body["sort"] == nil {
		t.Error("expected sort clause")
	}
	if got.Scroll != 0 {
		t.Error("single request must not open a scroll")
	}
	if resp.Total != 42 || len(resp.Hits) != 10 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestFetch_AtWindowBoundaryStaysSingle(t *testing.T) {
	m := corpus(20000)
	svc := New(m, nil, zap.NewNop())

	if _, err := svc.Fetch(context.Background(), db.SearchRequest{}, argument.NewPage(100, 9900, "", "")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.searches != 1 || m.scrolls != 0 || len(m.clears) != 0 {
		t.Errorf("searches=%d scrolls=%d clears=%d", m.searches, m.scrolls, len(m.clears))
	}
}

func TestFetch_ScrollPastWindow(t *testing.T) {
	m := corpus(100)
	sessions := newCounter()
	svc := New(m, sessions, zap.NewNop()).WithWindow(10)

	resp, err := svc.Fetch(context.Background(), db.SearchRequest{Index: "studies"}, argument.NewPage(4, 12, "", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Total != 100 {
		t.Errorf("total = %d", resp.Total)
	}
	want := []string{"12", "13", "14", "15"}
	if len(resp.Hits) != len(want) {
		t.Fatalf("expected %d hits, got %d", len(want), len(resp.Hits))
	}
	for i, h := range resp.Hits {
		if h.ID != want[i] {
			t.Errorf("hit %d = %s, want %s", i, h.ID, want[i])
		}
	}
	if len(m.clears) != 1 || m.clears[0] != "cursor" {
		t.Errorf("expected exactly one clear, got %v", m.clears)
	}
	if v := testutil.ToFloat64(sessions.WithLabelValues("ok")); v != 1 {
		t.Errorf("ok sessions = %f", v)
	}
}

func TestFetch_ScrollBatchSize(t *testing.T) {
	var req db.SearchRequest
	m := corpus(50000)
	inner := m.searchFn
	m.searchFn = func(ctx context.Context, r db.SearchRequest) (db.SearchResponse, error) {
		req = r
		return inner(ctx, r)
	}
	svc := New(m, nil, zap.NewNop())

	if _, err := svc.Fetch(context.Background(),
		db.SearchRequest{Body: map[string]any{"from": 5}},
		argument.NewPage(300, 15000, "", "")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Body["size"] != 9900 {
		t.Errorf("batch size = %v, want 9900", req.Body["size"])
	}
	if _, ok := req.Body["from"]; ok {
		t.Error("scroll request must not carry from")
	}
	if req.Scroll != DefaultKeepAlive {
		t.Errorf("keep-alive = %v", req.Scroll)
	}
}

func TestFetch_OffsetNotMultipleOfSize(t *testing.T) {
	m := corpus(100)
	svc := New(m, nil, zap.NewNop()).WithWindow(10)

	_, err := svc.Fetch(context.Background(), db.SearchRequest{}, argument.NewPage(4, 13, "", ""))
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if m.searches != 0 {
		t.Errorf("no backend call expected, got %d", m.searches)
	}
}

func TestFetch_ScrollErrorStillClears(t *testing.T) {
	m := corpus(100)
	m.scrollFn = func(context.Context, string, time.Duration) (db.SearchResponse, error) {
		return db.SearchResponse{}, errors.New("timeout")
	}
	sessions := newCounter()
	svc := New(m, sessions, zap.NewNop()).WithWindow(10)

	_, err := svc.Fetch(context.Background(), db.SearchRequest{}, argument.NewPage(4, 12, "", ""))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(m.clears) != 1 {
		t.Errorf("expected exactly one clear, got %d", len(m.clears))
	}
	if v := testutil.ToFloat64(sessions.WithLabelValues("error")); v != 1 {
		t.Errorf("error sessions = %f", v)
	}
}

func TestFetch_ClearFailureIgnored(t *testing.T) {
	m := corpus(100)
	m.clearFn = func(context.Context, string) error { return errors.New("gone") }
	svc := New(m, nil, zap.NewNop()).WithWindow(10)

	resp, err := svc.Fetch(context.Background(), db.SearchRequest{}, argument.NewPage(4, 12, "", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Hits) != 4 {
		t.Errorf("expected 4 hits, got %d", len(resp.Hits))
	}
}

func TestFetch_OffsetBeyondTotal(t *testing.T) {
	m := corpus(14)
	svc := New(m, nil, zap.NewNop()).WithWindow(10)

	resp, err := svc.Fetch(context.Background(), db.SearchRequest{}, argument.NewPage(4, 20, "", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Hits) != 0 {
		t.Errorf("expected empty page, got %d hits", len(resp.Hits))
	}
	if len(m.clears) != 1 {
		t.Errorf("expected exactly one clear, got %d", len(m.clears))
	}
}

func TestFetch_PartialLastPage(t *testing.T) {
	m := corpus(14)
	svc := New(m, nil, zap.NewNop()).WithWindow(10)

	resp, err := svc.Fetch(context.Background(), db.SearchRequest{}, argument.NewPage(4, 12, "", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Hits) != 2 || resp.Hits[0].ID != "12" {
		t.Errorf("unexpected page %+v", resp.Hits)
	}
}
