// Package transport holds the JSON-over-HTTP plumbing shared by the chat
// backends.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4096
	maxBody        = 1 << 20
)

// ErrMalformedResponse is wrapped by every error caused by a 2xx response
// whose body does not have the expected shape.
var ErrMalformedResponse = errors.New("malformed response")

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// ErrorMessage returns the error text carried in the response body, if any.
// Both {"error":"..."} and {"error":{"message":"..."}} are understood.
func (e *HTTPStatusError) ErrorMessage() string {
	if !gjson.Valid(e.Body) {
		return ""
	}
	field := gjson.Get(e.Body, "error")
	switch {
	case field.Type == gjson.String:
		return strings.TrimSpace(field.String())
	case field.IsObject():
		return strings.TrimSpace(field.Get("message").String())
	}
	return ""
}

// Malformed wraps ErrMalformedResponse with the backend name and detail.
func Malformed(backend, detail string) error {
	return fmt.Errorf("%s: %w: %s", backend, ErrMalformedResponse, detail)
}

// Client posts JSON documents and returns the raw 2xx response body.
type Client struct {
	httpClient *http.Client
}

// New returns a Client using httpClient, or a default client with a 30s
// timeout when httpClient is nil.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{httpClient: httpClient}
}

// PostJSON marshals payload, posts it to url with the given headers, and
// returns the response body. Non-2xx responses produce *HTTPStatusError.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

// JoinURL appends path to base, tolerating a trailing slash on base.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
