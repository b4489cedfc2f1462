// Package upstream fetches the realtime limit list from the third-party
// market-data API and hands the body back untouched.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNotConfigured is returned when no API token is set.
	ErrNotConfigured = errors.New("upstream token not configured")

	// ErrUnavailable covers transport failures and non-2xx responses.
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrMalformed is returned when the upstream body is not valid JSON.
	ErrMalformed = errors.New("upstream response malformed")
)

// maxBody caps how much of an upstream response is read.
const maxBody = 16 << 20

// Options configures a Client.
type Options struct {
	URLTemplate string
	Token       string
	DeviceID    string
	UserID      string
	Timeout     time.Duration
	Proxy       string

	// RatePerMin throttles outgoing requests; 0 disables throttling.
	RatePerMin int
}

// Client performs one upstream request per call. It never retries.
type Client struct {
	opts     Options
	http     *http.Client
	throttle *Throttle
}

// NewClient creates a Client. An unparsable proxy URL is ignored.
func NewClient(opts Options) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Proxy != "" {
		if u, err := url.Parse(opts.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	c := &Client{
		opts: opts,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
	}
	if opts.RatePerMin > 0 {
		c.throttle = NewThrottle(opts.RatePerMin)
	}
	return c
}

// Configured reports whether a token is available.
func (c *Client) Configured() bool { return c.opts.Token != "" }

// URL renders the request URL with identifiers substituted and escaped.
func (c *Client) URL() string {
	r := strings.NewReplacer(
		"{token}", url.QueryEscape(c.opts.Token),
		"{device_id}", url.QueryEscape(c.opts.DeviceID),
		"{user_id}", url.QueryEscape(c.opts.UserID),
	)
	return r.Replace(c.opts.URLTemplate)
}

// FetchRealtime requests the realtime limit list and returns the JSON body
// verbatim.
func (c *Client) FetchRealtime(ctx context.Context) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if c.throttle != nil {
		if err := c.throttle.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, redact(err, c.opts.Token))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrUnavailable, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %d bytes of non-JSON body", ErrMalformed, len(body))
	}
	return json.RawMessage(body), nil
}

// redact removes the token from transport errors, which embed the URL.
func redact(err error, token string) string {
	msg := err.Error()
	if token == "" {
		return msg
	}
	return strings.ReplaceAll(msg, url.QueryEscape(token), "***")
}
