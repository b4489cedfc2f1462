// Package bidboard is a Go client for the bidboard HTTP API.
package bidboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// Client provides a Go SDK for interacting with the bidboard-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new bidboard API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Snapshots is the response of GET /api/bidding. A nil cell is an absent
// value.
type Snapshots struct {
	Timestamps []string                `json:"timestamps"`
	Data       map[string][][]*string `json:"data"`
}

// Health is the response of GET /api/health.
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bidboard: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("bidboard: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var e *APIError
	return errors.As(err, &e) && e.StatusCode == http.StatusNotFound
}

// Bidding retrieves the snapshots for date with time tokens in [start, end].
func (c *Client) Bidding(ctx context.Context, date, start, end string) (*Snapshots, error) {
	q := url.Values{}
	q.Set("date", date)
	q.Set("start", start)
	q.Set("end", end)

	var out Snapshots
	if err := c.get(ctx, "/api/bidding?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dates lists the dates the server has snapshots for.
func (c *Client) Dates(ctx context.Context) ([]string, error) {
	var out struct {
		Dates []string `json:"dates"`
	}
	if err := c.get(ctx, "/api/bidding/dates", &out); err != nil {
		return nil, err
	}
	return out.Dates, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.get(ctx, "/api/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PasswordHash retrieves the SHA-256 hex digest of the dashboard password.
func (c *Client) PasswordHash(ctx context.Context) (string, error) {
	var out struct {
		Hash string `json:"hash"`
	}
	if err := c.get(ctx, "/api/password_hash", &out); err != nil {
		return "", err
	}
	return out.Hash, nil
}

// RealtimeLimit returns the upstream realtime body unchanged.
func (c *Client) RealtimeLimit(ctx context.Context) ([]byte, error) {
	return c.do(ctx, "/api/realtime_limit")
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	body, err := c.do(ctx, path)
	if err != nil {
		return err
	}
	if err := sonic.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		if sonic.Unmarshal(body, &e) == nil {
			apiErr.Message = e.Error
		}
		return nil, apiErr
	}
	return body, nil
}
