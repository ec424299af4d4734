// Package backend implements the HTTP client for the Pixzlo web
// backend. Every request carries the user's session credentials, and
// responses are normalized through the backend's envelope conventions:
// 404 means "not configured" rather than failure, 401 maps to a
// user-facing login prompt, and 2xx bodies carrying a success flag are
// unwrapped to their data or error field.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pixzlo/bridge/internal/metrics"
	"github.com/pkg/errors"
)

// Fixed backend paths used by the integration services.
const (
	PathProfile          = "/api/users/profile"
	PathFigmaMetadata    = "/api/integrations/figma/metadata"
	PathFigmaPreference  = "/api/integrations/figma/preference"
	PathFigmaDesignLinks = "/api/integrations/figma/design-links"
	PathLinearStatus     = "/api/integrations/linear/status"
	PathLinearMetadata   = "/api/integrations/linear/metadata"
	PathLinearPreference = "/api/integrations/linear/preference"
	PathIssueBatchCreate = "/api/issues/batch-create"
)

// ErrUnauthorized is returned verbatim to the UI layer when the
// backend rejects the session.
var ErrUnauthorized = errors.New("Please log in to Pixzlo to use this feature")

// Config holds the backend client settings.
type Config struct {
	BaseURL       string
	SessionCookie string
	Timeout       time.Duration
}

// Client is a credentialed JSON client for the Pixzlo backend.
type Client struct {
	base    string
	cookie  string
	httpcli *http.Client
}

// New creates a backend client from cfg.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		cookie:  cfg.SessionCookie,
		httpcli: &http.Client{Timeout: timeout},
	}
}

// envelope is the backend's common response wrapper. Success is a
// pointer so a body without the flag is distinguishable from
// success=false.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Do issues a request and normalizes the response. A nil result with a
// nil error means HTTP 404: the resource is absent, which several
// endpoints use to signal "integration not configured".
func (c *Client) Do(ctx context.Context, method, path string, headers map[string]string, body interface{}) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "backend: marshal request body")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "backend: build request")
	}

	req.Header.Set("Content-Type", "application/json")
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpcli.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "backend: send request")
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.OutboundRequestsTotal.WithLabelValues("backend", strconv.Itoa(resp.StatusCode)).Inc()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "backend: read response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var e envelope
		if err := json.Unmarshal(buf, &e); err == nil && e.Error != "" {
			return nil, errors.New(e.Error)
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if len(bytes.TrimSpace(buf)) == 0 {
		return nil, nil
	}

	if !json.Valid(buf) {
		return nil, fmt.Errorf("backend: invalid JSON response for %s %s", method, path)
	}

	var e envelope
	if err := json.Unmarshal(buf, &e); err == nil && e.Success != nil {
		if !*e.Success {
			if e.Error != "" {
				return nil, errors.New(e.Error)
			}
			return nil, fmt.Errorf("backend: request failed for %s %s", method, path)
		}
		return e.Data, nil
	}

	return json.RawMessage(buf), nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, path, nil, nil)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, path, nil, body)
}

// Delete issues a DELETE request with an optional JSON body.
func (c *Client) Delete(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, body)
}
