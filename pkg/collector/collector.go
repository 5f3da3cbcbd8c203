// Package collector pkg/collector/collector.go polls the remote device's
// status endpoint.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/mfreeman451/netmon/pkg/config"
)

var (
	// ErrSourceUnavailable marks transport failures and non-2xx responses
	// from the device. Nothing is written; polling continues on schedule.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrMalformedPayload marks responses that are not valid JSON.
	ErrMalformedPayload = errors.New("malformed payload")
)

const (
	fetchTimeout = 10 * time.Second

	// On-demand fetches are rate limited so dashboard refresh storms
	// cannot hammer the device.
	onDemandRate  = rate.Limit(1)
	onDemandBurst = 2
)

// Client fetches status payloads from a single remote device.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a collector for the configured device endpoint.
func NewClient(source config.SourceConfig) *Client {
	return &Client{
		url:        fmt.Sprintf("http://%s:%d/net/status", source.Host, source.Port),
		token:      source.Token,
		httpClient: &http.Client{Timeout: fetchTimeout},
		limiter:    rate.NewLimiter(onDemandRate, onDemandBurst),
	}
}

// URL returns the device endpoint being polled.
func (c *Client) URL() string {
	return c.url
}

// Allow reports whether an on-demand fetch may proceed right now.
// Scheduled polls bypass the limiter; their cadence is fixed.
func (c *Client) Allow() bool {
	return c.limiter.Allow()
}

// Poll issues one bounded GET against the device's status endpoint and
// decodes the response. It performs no writes; persistence is the write
// path's job.
func (c *Client) Poll(ctx context.Context) (*Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var payload Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	return &payload, nil
}
