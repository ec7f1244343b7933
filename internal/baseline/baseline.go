// Package baseline fetches the advisory pipeline status from the backend.
//
// The backend's view may be stale or partial; the gate treats it as a
// starting point and lets local evidence override it. This package only
// fetches and decodes. Substituting a fallback on failure is the gate's job.
package baseline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"stagegate/internal/stage"
)

// DefaultStatusPath is the backend route returning the workflow status.
const DefaultStatusPath = "/api/workflow/status"

// DefaultTimeout bounds a single baseline fetch.
const DefaultTimeout = 5 * time.Second

// maxBodySize caps how much of the response is read.
const maxBodySize = 1 << 20

// Sentinel errors for baseline fetches.
var (
	// ErrNotConfigured indicates no backend URL was provided.
	ErrNotConfigured = errors.New("backend url not configured")

	// ErrUnexpectedStatus indicates the backend answered with a non-2xx code.
	ErrUnexpectedStatus = errors.New("unexpected backend status")

	// ErrInvalidBody indicates the response was not a JSON object.
	ErrInvalidBody = errors.New("invalid baseline body")
)

// Static is a baseline source that always returns the same state.
type Static stage.State

// Baseline returns a copy of the static state.
func (s Static) Baseline(ctx context.Context) (stage.State, error) {
	return stage.State(s).Clone(), nil
}

// Client fetches the baseline over HTTP.
//
// Create instances using [NewClient]. A Client is safe for concurrent use.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout. Zero or negative keeps the default.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a [Client] for GET {backendURL}{statusPath}. An empty
// statusPath uses [DefaultStatusPath].
func NewClient(backendURL, statusPath string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(backendURL) == "" {
		return nil, ErrNotConfigured
	}
	if statusPath == "" {
		statusPath = DefaultStatusPath
	}

	base, err := url.Parse(strings.TrimRight(backendURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url: unsupported scheme %q", base.Scheme)
	}

	c := &Client{
		endpoint:   base.String() + "/" + strings.TrimLeft(statusPath, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the full status URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Baseline fetches and decodes the remote status.
func (c *Client) Baseline(ctx context.Context) (stage.State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build baseline request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch baseline: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline: %w", err)
	}

	c.logger.Debug("baseline fetched",
		zap.String("url", c.endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return Decode(body)
}

// Decode parses a baseline body.
//
// The body must be a JSON object. The state is read from its "status" or
// "data" member when that member is an object, otherwise from the body
// itself. Member names are stage names (canonical or dashboard alias);
// unknown names are ignored. Values are status strings or booleans, where
// true means completed; anything else is locked.
func Decode(body []byte) (stage.State, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: not valid json", ErrInvalidBody)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected a json object", ErrInvalidBody)
	}

	obj := root
	for _, wrapper := range []string{"status", "data"} {
		if inner := root.Get(wrapper); inner.IsObject() {
			obj = inner
			break
		}
	}

	st := make(stage.State)
	obj.ForEach(func(k, v gjson.Result) bool {
		s, err := stage.Parse(k.String())
		if err != nil {
			return true
		}
		st[s] = decodeStatus(v)
		return true
	})
	return st, nil
}

func decodeStatus(v gjson.Result) stage.Status {
	switch v.Type {
	case gjson.True:
		return stage.StatusCompleted
	case gjson.String:
		return stage.ParseStatus(v.Str)
	default:
		return stage.StatusLocked
	}
}
