package db

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Bucket is one bucket of a terms or range aggregation.
type Bucket struct {
	Key      string
	DocCount int64
	// Sub holds named sub-aggregations.
	Sub map[string]json.RawMessage
}

// UnmarshalJSON splits known bucket keys from sub-aggregations.
func (b *Bucket) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err //nolint:wrapcheck // caller wraps with aggregation name
	}
	if v, ok := raw["key_as_string"]; ok {
		if err := json.Unmarshal(v, &b.Key); err != nil {
			return fmt.Errorf("key_as_string: %w", err)
		}
	} else if v, ok := raw["key"]; ok {
		b.Key = rawKey(v)
	}
	if v, ok := raw["doc_count"]; ok {
		if err := json.Unmarshal(v, &b.DocCount); err != nil {
			return fmt.Errorf("doc_count: %w", err)
		}
	}
	for _, k := range []string{"key", "key_as_string", "doc_count", "from", "to", "from_as_string", "to_as_string"} {
		delete(raw, k)
	}
	if len(raw) > 0 {
		b.Sub = raw
	}
	return nil
}

func rawKey(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) > 0 && v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
	}
	return string(v)
}

// Terms is a decoded terms aggregation.
type Terms struct {
	Buckets          []Bucket `json:"buckets"`
	SumOtherDocCount int64    `json:"sum_other_doc_count"`
}

// Single is a decoded single-bucket aggregation (nested, filter, global).
type Single struct {
	DocCount int64
	Sub      map[string]json.RawMessage
}

// DecodeTerms decodes a terms aggregation.
func DecodeTerms(aggs map[string]json.RawMessage, name string) (Terms, error) {
	raw, ok := aggs[name]
	if !ok {
		return Terms{}, fmt.Errorf("aggregation %q missing: %w", name, ErrAggregationType)
	}
	var t Terms
	if err := json.Unmarshal(raw, &t); err != nil {
		return Terms{}, fmt.Errorf("aggregation %q: %v: %w", name, err, ErrAggregationType)
	}
	return t, nil
}

// DecodeBuckets decodes a range aggregation. Keyed and array forms are both accepted.
func DecodeBuckets(aggs map[string]json.RawMessage, name string) ([]Bucket, error) {
	raw, ok := aggs[name]
	if !ok {
		return nil, fmt.Errorf("aggregation %q missing: %w", name, ErrAggregationType)
	}
	var envelope struct {
		Buckets json.RawMessage `json:"buckets"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("aggregation %q: %v: %w", name, err, ErrAggregationType)
	}
	var list []Bucket
	if err := json.Unmarshal(envelope.Buckets, &list); err == nil {
		return list, nil
	}
	var keyed map[string]Bucket
	if err := json.Unmarshal(envelope.Buckets, &keyed); err != nil {
		return nil, fmt.Errorf("aggregation %q buckets: %v: %w", name, err, ErrAggregationType)
	}
	for k, b := range keyed {
		b.Key = k
		list = append(list, b)
	}
	return list, nil
}

// DecodeSingle decodes a single-bucket aggregation.
func DecodeSingle(aggs map[string]json.RawMessage, name string) (Single, error) {
	raw, ok := aggs[name]
	if !ok {
		return Single{}, fmt.Errorf("aggregation %q missing: %w", name, ErrAggregationType)
	}
	var b Bucket
	if err := json.Unmarshal(raw, &b); err != nil {
		return Single{}, fmt.Errorf("aggregation %q: %v: %w", name, err, ErrAggregationType)
	}
	return Single{DocCount: b.DocCount, Sub: b.Sub}, nil
}

// DecodeValue decodes a metric aggregation ({"value": x}). A null value yields nil.
func DecodeValue(aggs map[string]json.RawMessage, name string) (*float64, error) {
	raw, ok := aggs[name]
	if !ok {
		return nil, fmt.Errorf("aggregation %q missing: %w", name, ErrAggregationType)
	}
	var m struct {
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("aggregation %q: %v: %w", name, err, ErrAggregationType)
	}
	return m.Value, nil
}
