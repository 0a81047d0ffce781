// Package openai implements the completion-API chat backend.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chat-exchange/internal/domain"
	"chat-exchange/internal/integrations/transport"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-3.5-turbo-instruct"
)

// SamplingParams are the fixed sampling settings sent with every completion.
type SamplingParams struct {
	Temperature      float64  `json:"temperature"`
	MaxTokens        int      `json:"max_tokens"`
	TopP             float64  `json:"top_p"`
	FrequencyPenalty float64  `json:"frequency_penalty"`
	PresencePenalty  float64  `json:"presence_penalty"`
	Stop             []string `json:"stop,omitempty"`
}

// DefaultSampling matches the assistant's historical settings.
func DefaultSampling() SamplingParams {
	return SamplingParams{
		Temperature:      0.9,
		MaxTokens:        150,
		TopP:             1,
		FrequencyPenalty: 0,
		PresencePenalty:  0.6,
		Stop:             []string{" Human:", " AI:"},
	}
}

// completionRequest is the request shape for the Completions endpoint.
type completionRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	SamplingParams
}

// completionResponse is the minimal response shape returned by the Completions endpoint.
type completionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Choices []struct {
		Index        int     `json:"index"`
		Text         *string `json:"text"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

// KeyResolver yields the API key on demand.
type KeyResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Client is a focused OpenAI-compatible client for text completions.
type Client struct {
	baseURL  string
	model    string
	sampling SamplingParams
	keys     KeyResolver
	http     *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = httpClient
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

func WithSampling(p SamplingParams) Option {
	return func(c *Client) {
		c.sampling = p
	}
}

// NewClient creates a Client whose API key is produced by keys. Keys backed
// by the parameter store are fetched on the first Send and reused afterwards.
func NewClient(keys KeyResolver, opts ...Option) (*Client, error) {
	if keys == nil {
		return nil, errors.New("openai: key resolver must not be nil")
	}
	c := &Client{
		baseURL:  defaultBaseURL,
		model:    defaultModel,
		sampling: DefaultSampling(),
		keys:     keys,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func completionsURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return transport.JoinURL(base, "completions")
	}
	return transport.JoinURL(base, "v1/completions")
}

// Send completes text and returns the first choice. Prior turns are not part
// of the prompt.
func (c *Client) Send(ctx context.Context, _ []domain.Turn, text string) (string, error) {
	apiKey, err := c.keys.Resolve(ctx)
	if err != nil {
		return "", fmt.Errorf("openai: resolve api key: %w", err)
	}

	url := completionsURL(c.baseURL)
	raw, err := transport.New(c.http).PostJSON(ctx, url, map[string]string{
		"Authorization": "Bearer " + apiKey,
	}, completionRequest{
		Model:          c.model,
		Prompt:         text,
		SamplingParams: c.sampling,
	})
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}

	var payload completionResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", transport.Malformed("openai", "decode response: "+err.Error())
	}
	if len(payload.Choices) == 0 {
		return "", transport.Malformed("openai", "no choices in response")
	}
	if payload.Choices[0].Text == nil {
		return "", transport.Malformed("openai", "first choice has no text")
	}
	return *payload.Choices[0].Text, nil
}
