package facet

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/argument"
	domfacet "github.com/kailas-cloud/facetdex/internal/domain/facet"
	"github.com/kailas-cloud/facetdex/internal/domain/result"
	"github.com/kailas-cloud/facetdex/internal/repository/facetcache"
	"github.com/kailas-cloud/facetdex/internal/usecase/batch"
)

// --- Mocks ---

type mockExecutor struct {
	mu       sync.Mutex
	aggs     map[string]string
	total    int64
	err      error
	calls    int
	requests map[string]db.SearchRequest
}

func (m *mockExecutor) Execute(_ context.Context, reqs []batch.NamedRequest) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	m.requests = make(map[string]db.SearchRequest, len(reqs))
	out := make(map[string]any, len(reqs))
	for _, r := range reqs {
		m.requests[r.Name] = r.Request
		resp := db.SearchResponse{Total: m.total}
		if raw, ok := m.aggs[r.Name]; ok {
			if err := json.Unmarshal([]byte(raw), &resp.Aggregations); err != nil {
				return nil, err
			}
		}
		v, err := r.Map(resp)
		if err != nil {
			return nil, err
		}
		out[r.Name] = v
	}
	return out, nil
}

type mockCounter struct {
	mu      sync.Mutex
	countFn func(ctx context.Context, index string, query map[string]any) (int64, error)
	queries []map[string]any
}

func (m *mockCounter) Count(ctx context.Context, index string, query map[string]any) (int64, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	if m.countFn != nil {
		return m.countFn(ctx, index, query)
	}
	return 0, nil
}

// --- Fixtures ---

func toJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func testSet(t *testing.T) *domfacet.Set {
	t.Helper()
	s := &domfacet.Set{
		Index:    "studies",
		Primary:  "study",
		Entities: map[string]domfacet.Entity{"site": {Path: "sites"}},
		Ownership: map[string][]string{
			"study": {"phase", "country", "age"},
			"site":  {"city"},
		},
		Facets: []domfacet.Facet{
			{Name: "phase", Field: "phase"},
			{Name: "city", Field: "city", DistinctField: "study_id"},
			{Name: "age", Field: "age_days", Kind: domfacet.KindAgeRange},
		},
		Thresholds: domfacet.Thresholds{
			"study": {"phase": {"Phase 1": 500, "Phase 2": 500}},
		},
		RangeKeys: []string{"age"},
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func testAggs(phase1, phase2 int) map[string]string {
	return map[string]string{
		"phase": `{"values":{"buckets":[` +
			`{"key":"Phase 1","doc_count":` + itoa(phase1) + `},` +
			`{"key":"Phase 2","doc_count":` + itoa(phase2) + `}]}}`,
		"city": `{"scope":{"doc_count":50,"values":{"buckets":[` +
			`{"key":"Boston","doc_count":30,"parent":{"doc_count":12,"distinct":{"value":11}}}]}}}`,
		"age": `{"values":{"buckets":[` +
			`{"key":"0 - 4","from":0,"to":1825,"doc_count":3},` +
			`{"key":"> 29","from":10950,"doc_count":7}]}}`,
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func newService(t *testing.T, exec *mockExecutor, counter *mockCounter, cache Cache) *Service {
	t.Helper()
	return New(map[string]*domfacet.Set{"trials": testSet(t)}, exec, counter, cache, nil, zap.NewNop())
}

// --- Tests ---

func TestFilterQuery_RoutesNestedFields(t *testing.T) {
	args := argument.Args{
		"phase":   argument.String("Phase 1"),
		"city":    argument.Strings("Boston", "Denver"),
		"country": argument.Strings(""),
		"age":     argument.Range(nil, i64(30)),
	}
	q, err := filterQuery(testSet(t), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"bool":{"filter":[` +
		`{"range":{"age":{"lte":30}}},` +
		`{"terms":{"phase":["Phase 1"]}},` +
		`{"nested":{"path":"sites","query":{"bool":{"filter":[{"terms":{"sites.city":["Boston","Denver"]}}]}}}}]}}`
	if got := toJSON(t, q); got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestFilterQuery_InvalidRange(t *testing.T) {
	_, err := filterQuery(testSet(t), argument.Args{"age": argument.Range(nil, nil)})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func i64(n int64) *int64 { return &n }

func TestFacetAggs(t *testing.T) {
	set := testSet(t)
	tests := []struct {
		facet domfacet.Facet
		want  string
	}{
		{
			facet: domfacet.Facet{Name: "phase", Field: "phase", Kind: domfacet.KindTerms},
			want:  `{"values":{"terms":{"field":"phase","size":1000}}}`,
		},
		{
			facet: domfacet.Facet{Name: "city", Field: "city", Kind: domfacet.KindTerms, DistinctField: "study_id"},
			want: `{"scope":{"aggs":{"values":{"aggs":{"parent":{"aggs":{"distinct":` +
				`{"cardinality":{"field":"study_id","precision_threshold":40000}}},"reverse_nested":{}}},` +
				`"terms":{"field":"sites.city","size":1000}}},"nested":{"path":"sites"}}}`,
		},
		{
			facet: domfacet.Facet{Name: "age", Field: "age_days", Kind: domfacet.KindAgeRange},
			want: `{"values":{"range":{"field":"age_days","ranges":[` +
				`{"from":0,"key":"0 - 4","to":1825},{"from":1825,"key":"5 - 9","to":3650},` +
				`{"from":3650,"key":"10 - 14","to":5475},{"from":5475,"key":"15 - 19","to":7300},` +
				`{"from":7300,"key":"20 - 29","to":10950},{"from":10950,"key":"> 29"}]}}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.facet.Name, func(t *testing.T) {
			got := toJSON(t, facetAggs(tt.facet, set.Route(tt.facet.Field)))
			if got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestBundle_CountsAndDisjunctiveFilters(t *testing.T) {
	exec := &mockExecutor{aggs: testAggs(120, 80), total: 200}
	svc := newService(t, exec, &mockCounter{}, nil)

	bundle, err := svc.Bundle(context.Background(), "trials", map[string]any{
		"phase": "Phase 1",
		"city":  "Boston",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := result.FacetBundle{
		Total: 200,
		Facets: map[string][]result.FacetBucket{
			"phase": {{Value: "Phase 1", Count: 120}, {Value: "Phase 2", Count: 80}},
			"city":  {{Value: "Boston", Count: 11}},
			"age":   {{Value: "0 - 4", Count: 3}, {Value: "> 29", Count: 7}},
		},
	}
	if diff := cmp.Diff(want, bundle); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	phaseQuery := toJSON(t, exec.requests["phase"].Body["query"])
	if strings.Contains(phaseQuery, `"phase"`) || !strings.Contains(phaseQuery, "sites.city") {
		t.Errorf("phase facet must drop its own filter and keep others: %s", phaseQuery)
	}
	cityQuery := toJSON(t, exec.requests["city"].Body["query"])
	if strings.Contains(cityQuery, "sites.city") || !strings.Contains(cityQuery, `"phase"`) {
		t.Errorf("city facet must drop its own filter and keep others: %s", cityQuery)
	}
	totalQuery := toJSON(t, exec.requests["_total"].Body["query"])
	if !strings.Contains(totalQuery, "sites.city") || !strings.Contains(totalQuery, `"phase"`) {
		t.Errorf("total applies every filter: %s", totalQuery)
	}
	for name, req := range exec.requests {
		if req.Index != "studies" || req.Body["size"] != 0 || req.Body["track_total_hits"] != true {
			t.Errorf("%s: unexpected request %+v", name, req)
		}
	}
}

func TestBundle_RecountAboveThreshold(t *testing.T) {
	exec := &mockExecutor{aggs: testAggs(480, 900), total: 1380}
	counter := &mockCounter{
		countFn: func(context.Context, string, map[string]any) (int64, error) { return 905, nil },
	}
	recounts := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_recount_total"}, []string{"set", "facet"})
	svc := New(map[string]*domfacet.Set{"trials": testSet(t)}, exec, counter, nil, recounts, zap.NewNop())

	bundle, err := svc.Bundle(context.Background(), "trials", map[string]any{"country": "US"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(counter.queries) != 1 {
		t.Fatalf("expected exactly one count request, got %d", len(counter.queries))
	}
	want := []result.FacetBucket{
		{Value: "Phase 1", Count: 480},
		{Value: "Phase 2", Count: 905, Exact: true},
	}
	if diff := cmp.Diff(want, bundle.Facets["phase"]); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	q := toJSON(t, counter.queries[0])
	wantQ := `{"bool":{"filter":[{"bool":{"filter":[{"terms":{"country":["US"]}}]}},{"term":{"phase":"Phase 2"}}]}}`
	if q != wantQ {
		t.Errorf("count query got  %s\nwant %s", q, wantQ)
	}
	if v := testutil.ToFloat64(recounts.WithLabelValues("trials", "phase")); v != 1 {
		t.Errorf("recounts = %f", v)
	}
}

func TestBundle_RecountFailureFailsBundle(t *testing.T) {
	exec := &mockExecutor{aggs: testAggs(480, 900)}
	counter := &mockCounter{
		countFn: func(context.Context, string, map[string]any) (int64, error) {
			return 0, errors.New("count timeout")
		},
	}
	svc := newService(t, exec, counter, nil)

	if _, err := svc.Bundle(context.Background(), "trials", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestBundle_CachedPerCanonicalArgs(t *testing.T) {
	exec := &mockExecutor{aggs: testAggs(1, 2), total: 3}
	cache := facetcache.New(facetcache.NewMemory(10, 0), time.Minute, nil, zap.NewNop())
	svc := newService(t, exec, &mockCounter{}, cache)
	ctx := context.Background()

	first, err := svc.Bundle(ctx, "trials", map[string]any{"city": []any{"Denver", "Boston"}, "phase": ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Bundle(ctx, "trials", map[string]any{"city": []any{"Boston", "Denver"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.calls != 1 {
		t.Errorf("expected one computation, got %d", exec.calls)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached bundle differs (-first +second):\n%s", diff)
	}

	n, err := svc.Invalidate(ctx, "trials")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("invalidated %d entries", n)
	}
	if _, err := svc.Bundle(ctx, "trials", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.calls != 2 {
		t.Errorf("expected recomputation after invalidate, got %d calls", exec.calls)
	}
}

func TestBundle_BackendErrorNotCached(t *testing.T) {
	exec := &mockExecutor{aggs: testAggs(1, 2), err: errors.New("down")}
	cache := facetcache.New(facetcache.NewMemory(10, 0), time.Minute, nil, zap.NewNop())
	svc := newService(t, exec, &mockCounter{}, cache)
	ctx := context.Background()

	if _, err := svc.Bundle(ctx, "trials", nil); err == nil {
		t.Fatal("expected error")
	}
	exec.err = nil
	if _, err := svc.Bundle(ctx, "trials", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.calls != 2 {
		t.Errorf("expected failure to be retried, got %d calls", exec.calls)
	}
}

func TestBundle_UnknownSet(t *testing.T) {
	svc := newService(t, &mockExecutor{}, &mockCounter{}, nil)
	if _, err := svc.Bundle(context.Background(), "nope", nil); !errors.Is(err, domain.ErrUnknownFacetSet) {
		t.Fatalf("expected ErrUnknownFacetSet, got %v", err)
	}
	if _, err := svc.Invalidate(context.Background(), "nope"); !errors.Is(err, domain.ErrUnknownFacetSet) {
		t.Fatalf("expected ErrUnknownFacetSet, got %v", err)
	}
	if diff := cmp.Diff([]string{"trials"}, svc.Sets()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
