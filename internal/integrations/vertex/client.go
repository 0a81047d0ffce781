// Package vertex implements the cloud chat-prediction backend.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"chat-exchange/internal/domain"
	"chat-exchange/internal/integrations/transport"
)

const (
	defaultLocation = "us-central1"
	defaultModel    = "chat-bison"
	userAuthor      = "user"
	replyPath       = "predictions.0.candidates.0.content"
)

type message struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Content string `json:"content"`
}

type instance struct {
	Context  string    `json:"context"`
	Messages []message `json:"messages"`
}

type predictRequest struct {
	Instances []instance `json:"instances"`
}

// TokenResolver yields the bearer access token on demand.
type TokenResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Client calls a chat model's :predict endpoint.
type Client struct {
	project  string
	location string
	model    string
	endpoint string
	tokens   TokenResolver
	http     *http.Client
	newID    func() string
}

type Option func(*Client)

func WithLocation(location string) Option {
	return func(c *Client) {
		if l := strings.TrimSpace(location); l != "" {
			c.location = l
		}
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

// WithEndpoint overrides the scheme and host of the prediction API.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = httpClient
	}
}

// NewClient creates a Client for the given cloud project.
func NewClient(project string, tokens TokenResolver, opts ...Option) (*Client, error) {
	project = strings.TrimSpace(project)
	if project == "" {
		return nil, errors.New("vertex: project must not be empty")
	}
	if tokens == nil {
		return nil, errors.New("vertex: token resolver must not be nil")
	}
	c := &Client{
		project:  project,
		location: defaultLocation,
		model:    defaultModel,
		tokens:   tokens,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) predictURL() string {
	endpoint := c.endpoint
	if endpoint == "" {
		endpoint = "https://" + c.location + "-aiplatform.googleapis.com"
	}
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		endpoint, c.project, c.location, c.model)
}

// Send posts the prior turns as context plus the new message and returns the
// first candidate of the first prediction.
func (c *Client) Send(ctx context.Context, history []domain.Turn, text string) (string, error) {
	token, err := c.tokens.Resolve(ctx)
	if err != nil {
		return "", fmt.Errorf("vertex: resolve access token: %w", err)
	}

	url := c.predictURL()
	raw, err := transport.New(c.http).PostJSON(ctx, url, map[string]string{
		"Authorization": "Bearer " + token,
	}, predictRequest{
		Instances: []instance{{
			Context: ContextString(history),
			Messages: []message{{
				ID:      c.newID(),
				Author:  userAuthor,
				Content: text,
			}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("vertex: request failed: %w", err)
	}

	if !gjson.ValidBytes(raw) {
		return "", transport.Malformed("vertex", "response is not valid JSON")
	}
	reply := gjson.GetBytes(raw, replyPath)
	if !reply.Exists() {
		return "", transport.Malformed("vertex", "missing "+replyPath)
	}
	if reply.Type != gjson.String {
		return "", transport.Malformed("vertex", replyPath+" is not a string")
	}
	return reply.String(), nil
}

// ContextString flattens turns into the "sender: text" lines sent as the
// prediction context, oldest first.
func ContextString(turns []domain.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, string(t.Sender)+": "+t.Text)
	}
	return strings.Join(lines, "\n")
}
