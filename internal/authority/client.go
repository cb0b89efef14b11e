// Package authority looks up permit records at the legacy permit authority
// over SOAP and normalizes its responses into model.AuthorityRecord.
package authority

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alfredjeanlab/gatepass/internal/model"
)

// DefaultTimeout bounds a lookup when the caller configures none.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of an authority response is read.
const maxResponseBytes = 4 << 20

var (
	// ErrUnavailable covers transport failures, timeouts, non-2xx responses
	// and SOAP faults.
	ErrUnavailable = errors.New("authority unavailable")
	// ErrMalformedResponse means no known permit-detail block was found.
	ErrMalformedResponse = errors.New("authority response malformed")
)

// Looker is the lookup contract the reconciliation engine depends on.
type Looker interface {
	Lookup(ctx context.Context, permitNumber string) (*model.AuthorityRecord, error)
}

// Client calls a single statically configured authority endpoint.
type Client struct {
	endpoint   string
	action     string
	location   *time.Location
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every lookup.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLocation sets the zone used for timestamps without an offset.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.location = loc
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

// WithLogger sets the logger used for lookup diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the endpoint. action is sent as the
// SOAPAction header.
func NewClient(endpoint, action string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		action:     action,
		location:   time.UTC,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches and normalizes the permit record. It never retries.
func (c *Client) Lookup(ctx context.Context, permitNumber string) (*model.AuthorityRecord, error) {
	body, err := buildEnvelope(permitNumber)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `"`+c.action+`"`)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	if fault := parseFault(raw); fault != "" {
		return nil, fmt.Errorf("%w: soap fault: %s", ErrUnavailable, fault)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	rec, err := Normalize(raw, c.location)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("authority lookup",
		"permit", permitNumber,
		"shape", rec.Shape,
		"duration", time.Since(start),
	)
	return rec, nil
}

const envelopeTemplate = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema">
  <soap:Body>
    <GetPermitDetails xmlns="http://tempuri.org/">
      <PermitNo>%s</PermitNo>
    </GetPermitDetails>
  </soap:Body>
</soap:Envelope>`

// buildEnvelope embeds the permit number into the fixed request template.
func buildEnvelope(permitNumber string) ([]byte, error) {
	var esc strings.Builder
	if err := xml.EscapeText(&esc, []byte(strings.TrimSpace(permitNumber))); err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(envelopeTemplate, esc.String())), nil
}

type faultEnvelope struct {
	Fault *struct {
		Code   string `xml:"faultcode"`
		String string `xml:"faultstring"`
	} `xml:"Body>Fault"`
}

// parseFault returns the fault string when raw is a SOAP fault.
func parseFault(raw []byte) string {
	var env faultEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil || env.Fault == nil {
		return ""
	}
	msg := strings.TrimSpace(env.Fault.String)
	if msg == "" {
		msg = strings.TrimSpace(env.Fault.Code)
	}
	if msg == "" {
		msg = "unspecified"
	}
	return msg
}
