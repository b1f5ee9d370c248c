package looplib

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/signloop/signloop/pkg/logger"
)

const (
	// DEF_FETCH_TIMEOUT bounds a single payload request.
	DEF_FETCH_TIMEOUT = 30 * time.Second
)

// Client fetches the device's content payload from the management endpoint.
type Client struct {
	endpoint *url.URL
	deviceId string
	http     *http.Client
	lg       logger.Logger
}

// NewClient validates the endpoint URL and returns a payload client.
// The endpoint must be an absolute http or https URL. deviceId is sent
// as the id query parameter on every request so the endpoint can serve
// device-specific content.
func NewClient(endpoint, deviceId string, hc *http.Client, lg logger.Logger) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("content endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid content endpoint %q: %w", endpoint, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("content endpoint must be http or https, got %q", endpoint)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("content endpoint has no host: %q", endpoint)
	}
	if deviceId == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if hc == nil {
		hc = &http.Client{Timeout: DEF_FETCH_TIMEOUT}
	}
	if lg == nil {
		lg = &logger.NopLogger{}
	}
	return &Client{
		endpoint: u,
		deviceId: deviceId,
		http:     hc,
		lg:       lg,
	}, nil
}

// Endpoint returns the configured endpoint URL string.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// DeviceId returns the device identifier sent with every request.
func (c *Client) DeviceId() string {
	return c.deviceId
}

// FetchPayload performs one GET against the endpoint and parses the
// response. Transport failures and non-2xx statuses wrap ErrNetwork;
// malformed response bodies wrap ErrPayload.
func (c *Client) FetchPayload(ctx context.Context) (*Payload, error) {
	u := *c.endpoint
	q := u.Query()
	q.Set("id", c.deviceId)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build payload request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: endpoint returned status %d", ErrNetwork, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	return ParsePayload(data, c.lg)
}
