// Package echo implements the chat backend that talks to the local echo endpoint.
package echo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"chat-exchange/internal/domain"
	"chat-exchange/internal/integrations/transport"
)

// DefaultURL is where `chat serve-echo` listens by default.
const DefaultURL = "http://localhost:3000/api/chat"

type request struct {
	Message string `json:"message"`
}

// Client posts each message to the echo endpoint.
type Client struct {
	url  string
	http *http.Client
}

// NewClient returns a Client for the endpoint at url.
func NewClient(url string, httpClient *http.Client) (*Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("echo: url must not be empty")
	}
	return &Client{url: url, http: httpClient}, nil
}

// Send posts text and returns the endpoint's message field. History is not sent.
func (c *Client) Send(ctx context.Context, _ []domain.Turn, text string) (string, error) {
	raw, err := transport.New(c.http).PostJSON(ctx, c.url, nil, request{Message: text})
	if err != nil {
		return "", fmt.Errorf("echo: request failed: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return "", transport.Malformed("echo", "response is not valid JSON")
	}
	msg := gjson.GetBytes(raw, "message")
	if msg.Type != gjson.String {
		return "", transport.Malformed("echo", "missing message field")
	}
	return msg.String(), nil
}
