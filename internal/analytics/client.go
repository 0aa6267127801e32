// Package analytics talks to the community discovery service and the
// analytics API. Every failure is classified as a network, HTTP status or
// decode error so callers can log and drop it.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aryankumar/usagemetrics/internal/aggregate"
	"github.com/aryankumar/usagemetrics/internal/target"
	"github.com/aryankumar/usagemetrics/internal/util"
	"github.com/aryankumar/usagemetrics/pkg/version"
	"github.com/hashicorp/go-cleanhttp"
)

// DefaultTimeout bounds a single request when no timeout is configured
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of a response body is read
const maxBodyBytes = 32 << 20

// DimensionDay is the only dimension requested for metric time series
const DimensionDay = "day"

// MetricPayload is the JSON body posted for a metric time series
type MetricPayload struct {
	StartTime  int64    `json:"startTime"`
	EndTime    int64    `json:"endTime"`
	Metric     string   `json:"metric"`
	Dimensions []string `json:"dimensions"`
}

// NewMetricPayload builds the payload for one metric over [start, end]
func NewMetricPayload(metric string, start, end time.Time) MetricPayload {
	return MetricPayload{
		StartTime:  start.UnixMilli(),
		EndTime:    end.UnixMilli(),
		Metric:     metric,
		Dimensions: []string{DimensionDay},
	}
}

// Client performs discovery and analytics requests
type Client struct {
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the pooled default client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// NewClient creates a client backed by a pooled transport
func NewClient(opts ...Option) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = DefaultTimeout

	c := &Client{
		http:   httpClient,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Discover fetches the community -> datacenter mapping. Any failure is
// returned as a *util.DiscoveryError.
func (c *Client) Discover(ctx context.Context, discoveryURL string) (map[target.Community]target.Datacenter, error) {
	body, err := c.do(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return nil, &util.DiscoveryError{URL: discoveryURL, Err: err}
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &util.DiscoveryError{URL: discoveryURL, Err: &util.DecodeError{URL: discoveryURL, Err: err}}
	}

	mapping := make(map[target.Community]target.Datacenter, len(raw))
	for community, value := range raw {
		// non-string values carry no datacenter tag and fall to the default column
		dc, _ := value.(string)
		mapping[target.Community(community)] = target.Datacenter(dc)
	}

	c.logger.Debug("discovered communities", "url", discoveryURL, "count", len(mapping))
	return mapping, nil
}

// Fetch performs one analytics request. payload is JSON-encoded as the
// request body when non-nil. A non-object JSON body is wrapped under "data".
func (c *Client) Fetch(ctx context.Context, t target.Target, payload interface{}) (aggregate.MetricResult, error) {
	var reqBody []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload for %s: %w", t.URL(), err)
		}
		reqBody = b
	}

	body, err := c.do(ctx, t.Method, t.URL(), reqBody)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &util.DecodeError{URL: t.URL(), Err: err}
	}

	if obj, ok := decoded.(map[string]interface{}); ok {
		return aggregate.MetricResult(obj), nil
	}
	return aggregate.MetricResult{"data": decoded}, nil
}

// do sends one request and returns the body of a 200 response
func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &util.NetworkError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &util.NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("http request", "method", method, "url", url, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &util.HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &util.NetworkError{URL: url, Err: err}
	}
	return data, nil
}

// CloseIdleConnections releases pooled keep-alive connections
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}
