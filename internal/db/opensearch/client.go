// Package opensearch implements db.Searcher on top of opensearch-go.
package opensearch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	osgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/facetdex/internal/db"
)

// Compile-time check: Client implements db.Searcher.
var _ db.Searcher = (*Client)(nil)

// Config holds connection parameters for the search backend.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Timeout   time.Duration
	// MaxRPS caps outgoing requests per second; zero disables the limiter.
	MaxRPS             float64
	InsecureSkipVerify bool
}

// Instruments are optional Prometheus collectors, labeled by op and status.
type Instruments struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// Client talks to OpenSearch or Elasticsearch-compatible backends.
type Client struct {
	transport opensearchapi.Transport
	limiter   *rate.Limiter
	inst      Instruments
}

// New creates a backend client.
func New(cfg Config, inst Instruments) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("addresses is required")
	}

	httpTransport := http.DefaultTransport.(*http.Transport).Clone()
	httpTransport.ResponseHeaderTimeout = cfg.Timeout
	if cfg.InsecureSkipVerify {
		httpTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for dev clusters
	}

	client, err := osgo.NewClient(osgo.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpTransport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return newClient(client, cfg.MaxRPS, inst), nil
}

// NewForTest wraps an arbitrary transport.
func NewForTest(t opensearchapi.Transport, maxRPS float64) *Client {
	return newClient(t, maxRPS, Instruments{})
}

func newClient(t opensearchapi.Transport, maxRPS float64, inst Instruments) *Client {
	c := &Client{transport: t, inst: inst}
	if maxRPS > 0 {
		burst := int(maxRPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(maxRPS), burst)
	}
	return c
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, db.OpPing, func() (*opensearchapi.Response, error) {
		return opensearchapi.PingRequest{}.Do(ctx, c.transport)
	}, nil)
}

// WaitForReady polls Ping until the backend responds or timeout expires.
func (c *Client) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for search backend: %w", ctx.Err())
		case <-ticker.C:
			if err := c.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// call runs one backend request: rate limit, execute, classify status, decode.
// decode may be nil when the body is irrelevant.
func (c *Client) call(
	ctx context.Context,
	op string,
	do func() (*opensearchapi.Response, error),
	decode func(resp *opensearchapi.Response) error,
) (err error) {
	start := time.Now()
	status := "error"
	defer func() {
		if c.inst.Requests != nil {
			c.inst.Requests.WithLabelValues(op, status).Inc()
		}
		if c.inst.Duration != nil {
			c.inst.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		}
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &db.Error{Op: op, Err: err}
		}
	}

	resp, err := do()
	if err != nil {
		return &db.Error{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	status = strconv.Itoa(resp.StatusCode)
	if resp.IsError() {
		return &db.Error{Op: op, Err: parseError(resp)}
	}
	if decode == nil {
		return nil
	}
	if err := decode(resp); err != nil {
		return &db.Error{Op: op, Err: err}
	}
	return nil
}
