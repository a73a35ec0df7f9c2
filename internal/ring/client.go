package ring

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ringlink/ringlink/internal/auth"
	"github.com/ringlink/ringlink/internal/errors"
	"github.com/ringlink/ringlink/internal/logging"
)

// Client talks to the Ring cloud API with managed credentials.
type Client struct {
	baseURL string
	manager *auth.Manager
	http    *http.Client
	logger  *logging.Logger
}

const defaultTimeout = 20 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the transport-level timeout for API calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// NewClient creates a client rooted at baseURL. Trailing slashes on the
// base are tolerated.
func NewClient(baseURL string, manager *auth.Manager, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		manager: manager,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logging.NewLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call performs an authenticated request and decodes the JSON response into
// out (out may be nil for calls whose body is irrelevant). When the API
// answers 401 the call refreshes the token and retries exactly once; a
// second 401 is returned to the caller. When no usable credentials exist
// the call fails immediately without touching the network.
func (c *Client) Call(ctx context.Context, method, path string, body, out interface{}) error {
	err := c.call(ctx, method, path, body, out, false)
	if err != nil && errors.IsUnauthorized(err) {
		c.logger.Info("unauthorized response, retrying with refreshed token",
			"method", method, "path", path)
		err = c.call(ctx, method, path, body, out, true)
	}
	return err
}

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}, forceRefresh bool) error {
	access, err := c.manager.AccessToken(ctx, forceRefresh)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+access)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &errors.ErrAPIStatus{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(data)),
		}
	}

	// A successful authenticated call proves the credentials work, so any
	// outstanding authorization notice is stale.
	c.manager.ClearAuthNotice()

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
