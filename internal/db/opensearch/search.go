package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/kailas-cloud/facetdex/internal/db"
)

// Search runs a _search request, opening a scroll cursor when req.Scroll is set.
func (c *Client) Search(ctx context.Context, req db.SearchRequest) (db.SearchResponse, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return db.SearchResponse{}, &db.Error{Op: db.OpSearch, Err: err}
	}

	var out db.SearchResponse
	err = c.call(ctx, db.OpSearch, func() (*opensearchapi.Response, error) {
		return opensearchapi.SearchRequest{
			Index:  []string{req.Index},
			Body:   bytes.NewReader(body),
			Scroll: req.Scroll,
		}.Do(ctx, c.transport)
	}, func(resp *opensearchapi.Response) error {
		var derr error
		out, derr = decodeSearch(resp.Body)
		return derr
	})
	return out, err
}

// Scroll fetches the next batch of an open cursor.
func (c *Client) Scroll(ctx context.Context, scrollID string, keepAlive time.Duration) (db.SearchResponse, error) {
	var out db.SearchResponse
	err := c.call(ctx, db.OpScroll, func() (*opensearchapi.Response, error) {
		return opensearchapi.ScrollRequest{
			ScrollID: scrollID,
			Scroll:   keepAlive,
		}.Do(ctx, c.transport)
	}, func(resp *opensearchapi.Response) error {
		var err error
		out, err = decodeSearch(resp.Body)
		return err
	})
	return out, err
}

// ClearScroll releases a scroll cursor.
func (c *Client) ClearScroll(ctx context.Context, scrollID string) error {
	if scrollID == "" {
		return nil
	}
	return c.call(ctx, db.OpClearScroll, func() (*opensearchapi.Response, error) {
		return opensearchapi.ClearScrollRequest{ScrollID: []string{scrollID}}.Do(ctx, c.transport)
	}, nil)
}

// Count returns the exact number of documents matching query.
func (c *Client) Count(ctx context.Context, index string, query map[string]any) (int64, error) {
	body, err := encodeBody(map[string]any{"query": query})
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}

	var count int64
	err = c.call(ctx, db.OpCount, func() (*opensearchapi.Response, error) {
		return opensearchapi.CountRequest{
			Index: []string{index},
			Body:  bytes.NewReader(body),
		}.Do(ctx, c.transport)
	}, func(resp *opensearchapi.Response) error {
		var r struct {
			Count int64 `json:"count"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
			return fmt.Errorf("decode count: %w", err)
		}
		count = r.Count
		return nil
	})
	return count, err
}

func encodeBody(body map[string]any) ([]byte, error) {
	if body == nil {
		body = map[string]any{}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return data, nil
}

type searchResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Total json.RawMessage `json:"total"`
		Hits  []struct {
			ID        string              `json:"_id"`
			Source    map[string]any      `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

func decodeSearch(r io.Reader) (db.SearchResponse, error) {
	var raw searchResponse
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return db.SearchResponse{}, fmt.Errorf("decode search response: %w", err)
	}

	total, err := decodeTotal(raw.Hits.Total)
	if err != nil {
		return db.SearchResponse{}, err
	}

	out := db.SearchResponse{
		Total:        total,
		Aggregations: raw.Aggregations,
		ScrollID:     raw.ScrollID,
		Hits:         make([]db.Hit, 0, len(raw.Hits.Hits)),
	}
	for _, h := range raw.Hits.Hits {
		out.Hits = append(out.Hits, db.Hit{ID: h.ID, Source: h.Source, Highlight: h.Highlight})
	}
	return out, nil
}

// decodeTotal accepts both {"value": n, "relation": ...} and the legacy bare number.
func decodeTotal(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var obj struct {
		Value int64 `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Value, nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("decode hits.total: %w", err)
	}
	return n, nil
}

// parseError turns an error reply into a db.StatusError.
func parseError(resp *opensearchapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	se := &db.StatusError{Status: resp.StatusCode}

	var structured struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &structured) == nil && structured.Error.Type != "" {
		se.Type = structured.Error.Type
		se.Reason = structured.Error.Reason
		return se
	}

	var plain struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &plain) == nil && plain.Error != "" {
		se.Reason = plain.Error
		return se
	}

	se.Reason = string(body)
	return se
}
