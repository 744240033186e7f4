// Package supabase is a small client for a Supabase-compatible hosted backend: the PostgREST data
// API under /rest/v1 and the GoTrue auth API under /auth/v1.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	restPrefix = "/rest/v1"
	authPrefix = "/auth/v1"

	defaultTimeout = 10 * time.Second
)

// Client talks to one hosted backend project. It is safe for concurrent use; per-visitor auth state
// lives in the Auth values returned by NewAuth.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	now     func() time.Time
	logger  *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClock overrides the time source used for session expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a client for the project at rawURL authenticated with the public anon key.
func New(rawURL, anonKey string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(rawURL), "/")
	key := strings.TrimSpace(anonKey)
	if base == "" || key == "" {
		return nil, ErrNotConfigured
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("supabase: invalid project url %q", rawURL)
	}

	c := &Client{
		baseURL: base,
		anonKey: key,
		http:    &http.Client{Timeout: defaultTimeout},
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the project base URL.
func (c *Client) URL() string {
	return c.baseURL
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	bearer  string
	headers map[string]string
}

// do sends req and decodes a JSON response into dest when dest is non-nil.
func (c *Client) do(ctx context.Context, req request, dest any) error {
	endpoint := c.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var payload *bytes.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("supabase: encode %s body: %w", req.path, err)
		}
		payload = bytes.NewReader(raw)
	}

	var (
		httpReq *http.Request
		err     error
	)
	if payload != nil {
		httpReq, err = http.NewRequestWithContext(ctx, req.method, endpoint, payload)
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, req.method, endpoint, nil)
	}
	if err != nil {
		return fmt.Errorf("supabase: build request: %w", err)
	}

	bearer := req.bearer
	if bearer == "" {
		bearer = c.anonKey
	}
	httpReq.Header.Set("apikey", c.anonKey)
	httpReq.Header.Set("Authorization", "Bearer "+bearer)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	start := c.now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Debug("supabase: request failed",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Error(err),
		)
		return wrapNetwork(req.method+" "+req.path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("supabase: request",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", c.now().Sub(start)),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("supabase: decode %s response: %w", req.path, err)
	}
	return nil
}
