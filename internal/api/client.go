package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"turing-log-tail/internal/model"
	"turing-log-tail/pkg/log"
)

// DefaultTimeout bounds a single logs request.
const DefaultTimeout = 10 * time.Second

// Client fetches log batches from the logs endpoint of one resource.
type Client struct {
	baseURL    string
	path       model.LogsPath
	httpClient *http.Client
	headers    http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHeader adds a header sent on every request, e.g. Authorization.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// NewClient creates a logs client for baseURL (e.g. http://host/v1) and path.
func NewClient(baseURL string, path model.LogsPath, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    path,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		headers: http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError represents a non-success response from the server
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("request_failed:%d", e.StatusCode)
	}
	return fmt.Sprintf("request_failed:%d: %s", e.StatusCode, body)
}

// URL returns the full request URL for q.
func (c *Client) URL(q model.LogsQuery) string {
	u := c.baseURL + c.path.String()
	if enc := q.Values().Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

// FetchLogs requests one batch of raw records. The records are returned
// undecoded so that a malformed record cannot fail the whole batch.
func (c *Client) FetchLogs(ctx context.Context, q model.LogsQuery) ([]json.RawMessage, error) {
	url := c.URL(q)
	requestID, ok := model.RequestID(ctx)
	if !ok {
		requestID = uuid.New().String()
	}
	log.Debug("Fetching logs", "url", url, "request_id", requestID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	log.Debug("Response status", "status_code", resp.StatusCode, "request_id", requestID, "bytes", len(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return records, nil
}
