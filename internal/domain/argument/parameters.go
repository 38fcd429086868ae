package argument

import (
	"encoding/json"
	"sort"

	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/shape"
)

// Args holds resolved filter arguments keyed by argument name.
type Args map[string]Value

// Keys returns argument names in sorted order.
func (a Args) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Without returns a copy of a with key removed.
func (a Args) Without(key string) Args {
	out := make(Args, len(a))
	for k, v := range a {
		if k != key {
			out[k] = v
		}
	}
	return out
}

// Canonical renders the non-blank arguments as an order-independent JSON object.
func (a Args) Canonical() string {
	out := make(map[string]json.RawMessage, len(a))
	for k, v := range a {
		if v.IsBlank() {
			continue
		}
		out[k] = json.RawMessage(v.Canonical())
	}
	data, _ := json.Marshal(out) //nolint:errchkjson // keys are strings, values are pre-rendered JSON
	return string(data)
}

// Parameters is the typed form of one query invocation.
type Parameters struct {
	args     Args
	fields   []string
	variants map[string][]string
	input    string
	page     Pagination
}

// NewParameters resolves raw arguments against the requested output shape.
func NewParameters(raw map[string]any, out shape.Field, cfg PageConfig) (Parameters, error) {
	fields, err := out.Requested()
	if err != nil {
		return Parameters{}, err
	}
	variants, err := out.VariantFields()
	if err != nil {
		return Parameters{}, err
	}

	page, err := NewPagination(raw, cfg)
	if err != nil {
		return Parameters{}, err
	}

	args, err := ResolveArgs(raw)
	if err != nil {
		return Parameters{}, err
	}

	input, _ := raw[KeyInput].(string)

	return Parameters{
		args:     args,
		fields:   fields,
		variants: variants,
		input:    input,
		page:     page,
	}, nil
}

// ResolveArgs resolves every non-reserved key of raw.
func ResolveArgs(raw map[string]any) (Args, error) {
	args := make(Args, len(raw))
	for k, rv := range raw {
		if IsReserved(k) {
			continue
		}
		v, ok, err := Resolve(rv)
		if err != nil {
			return nil, domain.NewFieldError(k, err)
		}
		if ok {
			args[k] = v
		}
	}
	return args, nil
}

// Args returns a copy of the filter arguments.
func (p Parameters) Args() Args {
	out := make(Args, len(p.args))
	for k, v := range p.args {
		out[k] = v
	}
	return out
}

// Fields returns a copy of the requested field set, sorted.
func (p Parameters) Fields() []string {
	out := make([]string, len(p.fields))
	copy(out, p.fields)
	return out
}

// HasField reports whether name is in the requested field set.
func (p Parameters) HasField(name string) bool {
	i := sort.SearchStrings(p.fields, name)
	return i < len(p.fields) && p.fields[i] == name
}

// Variant returns a copy of the field set requested for the named variant.
func (p Parameters) Variant(typeName string) []string {
	fs := p.variants[typeName]
	out := make([]string, len(fs))
	copy(out, fs)
	return out
}

// Input returns the free-text search string.
func (p Parameters) Input() string { return p.input }

// Page returns the pagination block.
func (p Parameters) Page() Pagination { return p.page }
