package proxmox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openhyve/openhyve/pkg/engine"
)

// Client is a minimal REST client for a Proxmox VE-style API.
// Mutations use form-encoded bodies; every response wraps its payload
// in a {"data": ...} envelope. Errors are returned already classified
// into the engine taxonomy.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client. Tests use this
// to point the client at an httptest server transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger attaches a logger for request-level debug logging.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger.With().Str("component", "api-client").Logger() }
}

// NewClient creates a client for the API rooted at baseURL (e.g.
// "https://hv01:8006/api2/json"). token is a full API token reference
// of the form "user@realm!tokenid=secret".
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// dataEnvelope is the standard response wrapper.
type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// errorEnvelope is the shape of error bodies: a top-level message plus
// optional per-parameter details.
type errorEnvelope struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

// Get issues a GET request and decodes the data envelope into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a form-encoded POST request.
func (c *Client) Post(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodPost, path, params, out)
}

// Put issues a form-encoded PUT request.
func (c *Client) Put(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodPut, path, params, out)
}

// Delete issues a DELETE request; params are passed as query string.
func (c *Client) Delete(ctx context.Context, path string, params url.Values, out any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, out any) error {
	var body io.Reader
	if params != nil {
		if method == http.MethodPost || method == http.MethodPut {
			body = strings.NewReader(params.Encode())
		} else if encoded := params.Encode(); encoded != "" {
			if strings.Contains(path, "?") {
				path += "&" + encoded
			} else {
				path += "?" + encoded
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return engine.NewRejectedError("building request", err)
	}
	req.Header.Set("Authorization", "PVEAPIToken="+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("api call")

	resp, err := c.http.Do(req)
	if err != nil {
		return engine.NewTransientError("transport failure", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return engine.NewTransientError("reading response", err)
	}

	if resp.StatusCode >= 400 {
		return classify(&APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    errorMessage(raw, resp.Status),
		})
	}

	if out == nil {
		return nil
	}
	var envelope dataEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return engine.NewTransientError("decoding response envelope", err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return engine.NewNotFoundError("empty data envelope", nil)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return engine.NewTransientError("decoding response data", err)
	}
	return nil
}

// errorMessage extracts the most useful detail from an error body.
func errorMessage(raw []byte, fallback string) string {
	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Message != "" {
			return strings.TrimSpace(envelope.Message)
		}
		if len(envelope.Errors) > 0 {
			parts := make([]string, 0, len(envelope.Errors))
			for field, msg := range envelope.Errors {
				parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
			}
			return strings.Join(parts, "; ")
		}
	}
	return fallback
}
