package query

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/argument"
	"github.com/kailas-cloud/facetdex/internal/domain/filter"
)

func toJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func i64(n int64) *int64 { return &n }

func TestCompose(t *testing.T) {
	tests := []struct {
		name string
		args argument.Args
		spec filter.Spec
		want string
	}{
		{
			name: "no args",
			args: argument.Args{},
			want: `{"match_all":{}}`,
		},
		{
			name: "single empty string contributes nothing",
			args: argument.Args{"country": argument.Strings("")},
			want: `{"match_all":{}}`,
		},
		{
			name: "empty string scalar contributes nothing",
			args: argument.Args{"country": argument.String("")},
			want: `{"match_all":{}}`,
		},
		{
			name: "terms",
			args: argument.Args{"country": argument.Strings("US", "CA")},
			want: `{"bool":{"filter":[{"terms":{"country":["US","CA"]}}]}}`,
		},
		{
			name: "case insensitive wildcard",
			args: argument.Args{"name": argument.Strings("abc", "Def")},
			spec: filter.Spec{CaseInsensitive: true},
			want: `{"bool":{"filter":[{"bool":{"minimum_should_match":1,"should":[` +
				`{"wildcard":{"name":{"case_insensitive":true,"value":"abc"}}},` +
				`{"wildcard":{"name":{"case_insensitive":true,"value":"Def"}}}]}}]}}`,
		},
		{
			name: "range from numeric pair",
			args: argument.Args{"age": argument.Range(i64(18), i64(65))},
			spec: filter.Spec{RangeKeys: []string{"age"}},
			want: `{"bool":{"filter":[{"range":{"age":{"gte":18,"lte":65}}}]}}`,
		},
		{
			name: "range from strings ignores extra values",
			args: argument.Args{"age": argument.Strings("18", "65", "99")},
			spec: filter.Spec{RangeKeys: []string{"age"}},
			want: `{"bool":{"filter":[{"range":{"age":{"gte":18,"lte":65}}}]}}`,
		},
		{
			name: "range with only upper bound",
			args: argument.Args{"age": argument.Range(nil, i64(30))},
			spec: filter.Spec{RangeKeys: []string{"age"}},
			want: `{"bool":{"filter":[{"range":{"age":{"lte":30}}}]}}`,
		},
		{
			name: "ignored and nested params left out",
			args: argument.Args{
				"country": argument.String("US"),
				"debug":   argument.String("1"),
				"site":    argument.String("Boston"),
			},
			spec: filter.Spec{Ignore: []string{"debug"}, NestedPath: "sites", NestedParams: []string{"site"}},
			want: `{"bool":{"filter":[{"terms":{"country":["US"]}}]}}`,
		},
		{
			name: "clauses in key order",
			args: argument.Args{
				"phase":   argument.String("2"),
				"country": argument.String("US"),
			},
			want: `{"bool":{"filter":[{"terms":{"country":["US"]}},{"terms":{"phase":["2"]}}]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Compose(tt.args, tt.spec)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := toJSON(t, q); got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestCompose_InvalidRange(t *testing.T) {
	spec := filter.Spec{RangeKeys: []string{"age"}}
	tests := []struct {
		name string
		v    argument.Value
	}{
		{"both bounds absent", argument.Range(nil, nil)},
		{"non numeric bound", argument.Strings("young", "old")},
		{"empty first and second", argument.Strings("", "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compose(argument.Args{"age": tt.v}, spec)
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
			var fe *domain.FieldError
			if !errors.As(err, &fe) || fe.Field != "age" {
				t.Errorf("expected field error for age, got %v", err)
			}
		})
	}
}

func TestCompose_BlankRangeStringSkipped(t *testing.T) {
	q, err := Compose(argument.Args{"age": argument.Strings("")}, filter.Spec{RangeKeys: []string{"age"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := toJSON(t, q); got != `{"match_all":{}}` {
		t.Errorf("got %s", got)
	}
}

func TestComposeNested(t *testing.T) {
	spec := filter.Spec{
		NestedPath:   "sites",
		NestedParams: []string{"city", "sites.state"},
	}
	args := argument.Args{
		"city":        argument.String("Boston"),
		"sites.state": argument.String("MA"),
		"country":     argument.String("US"),
	}

	q, err := ComposeNested(args, spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"bool":{"filter":[{"terms":{"sites.city":["Boston"]}},{"terms":{"sites.state":["MA"]}}]}}`
	if got := toJSON(t, q); got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}
