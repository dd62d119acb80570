// Package rest implements tracking.Client against an MLflow tracking
// server's REST API 2.0.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-http-utils/headers"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
	"github.com/YuminosukeSato/greentaxi/tracking"
)

const (
	apiPrefix      = "/api/2.0/mlflow/"
	defaultTimeout = 30 * time.Second
	mimeJSON       = "application/json"
)

// Client talks to an MLflow tracking server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	username   string
	password   string
	logger     log.Logger
}

var _ tracking.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends "Authorization: Bearer token".
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithBasicAuth sends HTTP basic credentials.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client for the server at trackingURI.
func New(trackingURI string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(trackingURI, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     log.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient returns the underlying client, shared with the artifact proxy.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// Authorize sets the configured credentials on req.
func (c *Client) Authorize(req *http.Request) {
	switch {
	case c.token != "":
		req.Header.Set(headers.Authorization, "Bearer "+c.token)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}
}

type apiError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, in, out interface{}) error {
	u := c.baseURL + apiPrefix + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return errors.WrapRegistryError(endpoint, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return errors.WrapRegistryError(endpoint, err)
	}
	if in != nil {
		req.Header.Set(headers.ContentType, mimeJSON)
	}
	req.Header.Set(headers.Accept, mimeJSON)
	c.Authorize(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.WrapRegistryError(endpoint, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("mlflow request",
		log.HTTPPathKey, endpoint,
		log.HTTPStatusKey, resp.StatusCode,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapRegistryError(endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ae apiError
		if jerr := json.Unmarshal(raw, &ae); jerr != nil || ae.ErrorCode == "" {
			ae.Message = strings.TrimSpace(string(raw))
		}
		return errors.NewRegistryError(endpoint, resp.StatusCode, ae.ErrorCode, ae.Message)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.WrapRegistryError(endpoint, errors.Wrap(err, "decode response"))
	}
	return nil
}
