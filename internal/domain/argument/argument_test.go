package argument

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/shape"
)

func i64(n int64) *int64 { return &n }

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		wantKind Kind
		wantList []string
		wantOK   bool
		wantErr  bool
	}{
		{name: "nil dropped", raw: nil, wantOK: false},
		{name: "string", raw: "Canada", wantKind: KindString, wantList: []string{"Canada"}, wantOK: true},
		{name: "bool", raw: true, wantKind: KindString, wantList: []string{"true"}, wantOK: true},
		{name: "string list", raw: []any{"a", "b"}, wantKind: KindStrings, wantList: []string{"a", "b"}, wantOK: true},
		{name: "number pair", raw: []any{18.0, 65.0}, wantKind: KindRange, wantList: []string{"18", "65"}, wantOK: true},
		{name: "open upper", raw: []any{18.0}, wantKind: KindRange, wantList: []string{"18"}, wantOK: true},
		{name: "open lower", raw: []any{nil, 65.0}, wantKind: KindRange, wantList: []string{"65"}, wantOK: true},
		{name: "scalar number", raw: 3.0, wantKind: KindRange, wantList: []string{"3"}, wantOK: true},
		{name: "many numbers", raw: []any{1.0, 2.0, 3.0}, wantKind: KindStrings, wantList: []string{"1", "2", "3"}, wantOK: true},
		{name: "mixed list", raw: []any{"a", 2.0}, wantKind: KindStrings, wantList: []string{"a", "2"}, wantOK: true},
		{name: "fraction", raw: []any{1.5}, wantErr: true},
		{name: "object", raw: map[string]any{"a": 1}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, ok, err := Resolve(tc.raw)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrInvalidArgument) {
					t.Fatalf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if v.Kind() != tc.wantKind {
				t.Errorf("kind = %v, want %v", v.Kind(), tc.wantKind)
			}
			if diff := cmp.Diff(tc.wantList, v.List()); diff != "" {
				t.Errorf("list mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValue_IsBlank(t *testing.T) {
	if !Strings("").IsBlank() {
		t.Error(`[""] should be blank`)
	}
	if !String("").IsBlank() {
		t.Error(`"" should be blank`)
	}
	if Strings("", "x").IsBlank() {
		t.Error(`["", "x"] should not be blank`)
	}
	if !Range(nil, nil).IsBlank() {
		t.Error("unbounded range should be blank")
	}
	if Range(i64(1), nil).IsBlank() {
		t.Error("half-open range should not be blank")
	}
}

func TestArgs_CanonicalOrderIndependent(t *testing.T) {
	a := Args{
		"country": Strings("US", "CA"),
		"age":     Range(i64(18), i64(65)),
		"phase":   String("2"),
		"empty":   Strings(""),
	}
	b := Args{
		"phase":   String("2"),
		"age":     Range(i64(18), i64(65)),
		"country": Strings("CA", "US"),
	}
	if a.Canonical() != b.Canonical() {
		t.Errorf("canonical strings differ:\n%s\n%s", a.Canonical(), b.Canonical())
	}
	want := `{"age":{"range":[18,65]},"country":{"in":["CA","US"]},"phase":{"in":["2"]}}`
	if a.Canonical() != want {
		t.Errorf("canonical = %q, want %q", a.Canonical(), want)
	}
}

func TestValue_CanonicalDistinguishesKinds(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Value
		equal bool
	}{
		{name: "string with space vs list", a: String("Asian White"), b: Strings("White", "Asian")},
		{name: "range vs bracketed string", a: Range(i64(1), i64(2)), b: String("[1:2]")},
		{name: "open lower vs open upper", a: Range(i64(5), nil), b: Range(nil, i64(5))},
		{name: "separator inside element", a: Strings("a b", "c"), b: Strings("a", "b c")},
		{name: "single string vs one-element list", a: String("A"), b: Strings("A"), equal: true},
		{name: "duplicates collapse", a: Strings("A", "B", "A"), b: Strings("B", "A"), equal: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Canonical() == tt.b.Canonical()
			if got != tt.equal {
				t.Errorf("equal = %v, want %v (%s vs %s)", got, tt.equal, tt.a.Canonical(), tt.b.Canonical())
			}
		})
	}
}

func TestArgs_Without(t *testing.T) {
	a := Args{"x": String("1"), "y": String("2")}
	b := a.Without("x")
	if _, ok := b["x"]; ok {
		t.Error("x should be removed")
	}
	if _, ok := a["x"]; !ok {
		t.Error("original must not be modified")
	}
}

func TestNewPagination(t *testing.T) {
	cfg := PageConfig{
		DefaultSize: 20,
		MaxSize:     100,
		DefaultSort: "start_date",
		SortFields:  map[string]string{"title": "title.keyword"},
	}

	tests := []struct {
		name       string
		raw        map[string]any
		wantSize   int
		wantOffset int
		wantSort   string
		wantDir    Direction
		wantErr    bool
	}{
		{name: "defaults", raw: map[string]any{}, wantSize: 20, wantSort: "start_date", wantDir: Desc},
		{name: "clamped", raw: map[string]any{"first": 500.0}, wantSize: 100, wantSort: "start_date", wantDir: Desc},
		{name: "negative offset", raw: map[string]any{"offset": -5.0}, wantSize: 20, wantSort: "start_date", wantDir: Desc},
		{
			name:     "mapped sort asc",
			raw:      map[string]any{"order_by": "title", "sort_direction": "ASC", "offset": 40.0},
			wantSize: 20, wantOffset: 40, wantSort: "title.keyword", wantDir: Asc,
		},
		{name: "unknown sort", raw: map[string]any{"order_by": "bogus"}, wantSize: 20, wantSort: "start_date", wantDir: Desc},
		{name: "bad direction", raw: map[string]any{"sort_direction": "up"}, wantErr: true},
		{name: "bad first", raw: map[string]any{"first": "ten"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewPagination(tc.raw, cfg)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrInvalidArgument) {
					t.Fatalf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Size() != tc.wantSize {
				t.Errorf("size = %d, want %d", p.Size(), tc.wantSize)
			}
			if p.Offset() != tc.wantOffset {
				t.Errorf("offset = %d, want %d", p.Offset(), tc.wantOffset)
			}
			if p.SortField() != tc.wantSort {
				t.Errorf("sort = %q, want %q", p.SortField(), tc.wantSort)
			}
			if p.Direction() != tc.wantDir {
				t.Errorf("direction = %q, want %q", p.Direction(), tc.wantDir)
			}
		})
	}
}

func TestNewPagination_HardCap(t *testing.T) {
	p, err := NewPagination(map[string]any{"first": 50000.0}, PageConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Size() != domain.MaxPageSize {
		t.Errorf("size = %d, want %d", p.Size(), domain.MaxPageSize)
	}
}

func TestNewParameters(t *testing.T) {
	raw := map[string]any{
		"first":   10.0,
		"input":   "heart",
		"country": []any{"US"},
		"missing": nil,
	}
	out := shape.Object("studies", shape.Leaf("title"), shape.Leaf("id"))

	p, err := NewParameters(raw, out, PageConfig{DefaultSort: "id"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Input() != "heart" {
		t.Errorf("input = %q", p.Input())
	}
	if p.Page().Size() != 10 {
		t.Errorf("size = %d", p.Page().Size())
	}
	args := p.Args()
	if diff := cmp.Diff([]string{"country"}, args.Keys()); diff != "" {
		t.Errorf("arg keys mismatch (-want +got):\n%s", diff)
	}
	if !p.HasField("title") || p.HasField("sponsor") {
		t.Errorf("unexpected field set %v", p.Fields())
	}

	fields := p.Fields()
	fields[0] = "mutated"
	if p.Fields()[0] == "mutated" {
		t.Error("Fields must return a copy")
	}
}

func TestNewParameters_InvalidShape(t *testing.T) {
	out := shape.Object("studies", shape.Leaf(""))
	_, err := NewParameters(map[string]any{}, out, PageConfig{})
	if !errors.Is(err, domain.ErrInvalidShape) {
		t.Fatalf("expected ErrInvalidShape, got %v", err)
	}
}

func TestPagination_Sort(t *testing.T) {
	if NewPage(10, 0, "", Asc).Sort() != nil {
		t.Error("empty sort field should produce nil sort")
	}
	got := NewPage(10, 0, "date", "").Sort()
	want := []any{map[string]any{"date": map[string]any{"order": "desc"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sort mismatch (-want +got):\n%s", diff)
	}
}
