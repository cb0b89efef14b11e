// Package forward delivers matched decisions to a downstream HTTP sink.
// Delivery is best-effort: failures are captured in the audit trail under
// forward-error and never reach the caller.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alfredjeanlab/gatepass/internal/audit"
	"github.com/alfredjeanlab/gatepass/internal/model"
)

// DefaultTimeout bounds one delivery attempt.
const DefaultTimeout = 5 * time.Second

// Forwarder delivers a matched-decision payload. Forward never fails.
type Forwarder interface {
	Forward(ctx context.Context, payload json.RawMessage)
}

// NoopForwarder is used when no sink is configured.
type NoopForwarder struct{}

func (NoopForwarder) Forward(context.Context, json.RawMessage) {}

// Client posts payloads verbatim to one sink URL.
type Client struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
	log        audit.Log
	logger     *slog.Logger

	replayMu sync.Mutex // one Replay at a time
}

// Compile-time check that Client implements Forwarder.
var _ Forwarder = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each delivery attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient returns a Client posting to url and recording outcomes in log.
func NewClient(url string, log audit.Log, opts ...Option) *Client {
	c := &Client{
		url:        url,
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		log:        log,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Forward attempts one delivery. Success is recorded under forwarded and
// failure under forward-error together with the original payload.
func (c *Client) Forward(ctx context.Context, payload json.RawMessage) {
	if err := c.post(ctx, payload); err != nil {
		c.logger.Warn("forward: delivery failed", "url", c.url, "err", err)
		c.record(ctx, model.CategoryForwardError, model.ForwardErrorEntry{Error: err.Error(), Payload: payload})
		return
	}
	c.record(ctx, model.CategoryForwarded, payload)
}

func (c *Client) record(ctx context.Context, category model.Category, payload any) {
	if c.log == nil {
		return
	}
	if _, err := c.log.Append(ctx, category, payload); err != nil {
		c.logger.Warn("forward: audit append failed", "category", category, "err", err)
	}
}

// post sends payload and treats any non-2xx status as a failure.
func (c *Client) post(ctx context.Context, payload json.RawMessage) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sink returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
