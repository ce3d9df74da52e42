// Package oracle talks to the settlement oracle: an external service that is
// asked, in batches, how concluded events actually ended. Replies are plain
// text that should contain JSON but often carries model noise, so they are
// returned raw and pushed through the normalizer by the caller.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultRateLimit = 1.0
	defaultBurst     = 2
)

// Querier resolves outcomes for concluded events. Implementations return the
// reply body verbatim.
type Querier interface {
	ScoreBatch(ctx context.Context, queries []ScoreQuery) (string, error)
	AccumulatorBatch(ctx context.Context, queries []AccumulatorQuery) (string, error)
}

// Client is an HTTP Querier.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ScoreBatch(ctx context.Context, queries []ScoreQuery) (string, error) {
	if len(queries) == 0 {
		return "", nil
	}
	return c.post(ctx, "/v1/settle/scores", queries)
}

func (c *Client) AccumulatorBatch(ctx context.Context, queries []AccumulatorQuery) (string, error) {
	if len(queries) == 0 {
		return "", nil
	}
	return c.post(ctx, "/v1/settle/accumulators", queries)
}

func (c *Client) post(ctx context.Context, path string, payload any) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle error %d: %s", resp.StatusCode, string(raw))
	}
	return string(raw), nil
}
