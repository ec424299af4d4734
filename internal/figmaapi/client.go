// Package figmaapi implements a thin client for the Figma REST API
// using bearer-token authorization. Figma reports failures through an
// err field in otherwise successful responses, so the client checks it
// on every call.
package figmaapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pixzlo/bridge/internal/metrics"
	"github.com/pkg/errors"
)

// Client talks to the Figma REST API.
type Client struct {
	base    string
	httpcli *http.Client
}

// New creates a Figma API client rooted at baseURL
// (https://api.figma.com in production).
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:    strings.TrimRight(baseURL, "/"),
		httpcli: &http.Client{Timeout: timeout},
	}
}

type errProbe struct {
	Err *string `json:"err"`
}

func (c *Client) get(ctx context.Context, token, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return errors.Wrap(err, "figma: build request")
	}

	req.Header.Set("Authorization", "Bearer "+token)

	// render URLs are time-limited; never let an intermediary serve
	// a stale copy
	req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Expires", "0")

	resp, err := c.httpcli.Do(req)
	if err != nil {
		return errors.Wrap(err, "figma: send request")
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.OutboundRequestsTotal.WithLabelValues("figma", strconv.Itoa(resp.StatusCode)).Inc()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "figma: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("figma: HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	// Figma signals failure via an err field even on HTTP 200
	var probe errProbe
	if err := json.Unmarshal(buf, &probe); err == nil && probe.Err != nil && *probe.Err != "" {
		return fmt.Errorf("figma: %s", *probe.Err)
	}

	if err := json.Unmarshal(buf, out); err != nil {
		return errors.Wrap(err, "figma: decode response")
	}

	return nil
}

// File fetches the full document tree for fileID.
func (c *Client) File(ctx context.Context, token, fileID string) (*File, error) {
	var file File
	if err := c.get(ctx, token, "/v1/files/"+url.PathEscape(fileID), &file); err != nil {
		return nil, err
	}
	if file.Document == nil {
		return nil, fmt.Errorf("figma: file %s has no document", fileID)
	}
	return &file, nil
}

// RenderImage renders nodeID of fileID through the Figma image
// endpoint and returns the (time-limited) image URL.
func (c *Client) RenderImage(ctx context.Context, token, fileID, nodeID string) (string, error) {
	params := url.Values{}
	params.Set("ids", nodeID)
	params.Set("format", "png")
	params.Set("scale", "2")

	var resp imagesResponse
	path := "/v1/images/" + url.PathEscape(fileID) + "?" + params.Encode()
	if err := c.get(ctx, token, path, &resp); err != nil {
		return "", err
	}

	imageURL, ok := resp.Images[nodeID]
	if !ok || imageURL == "" {
		return "", fmt.Errorf("figma: no image URL returned for node %s", nodeID)
	}

	return imageURL, nil
}
