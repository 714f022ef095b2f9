package message

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/valyala/fasttemplate"
)

// Fallback is returned whenever the endpoint yields no usable message.
const Fallback = "No response from model."

// DefaultModel is the model requested when none is configured.
const DefaultModel = "llama3.3:latest"

// DefaultPrompt is rendered with the diff substituted for {{diff}}.
const DefaultPrompt = "{{diff}}" +
	"Generate a concise (50-80 characters) commit message for the above changes." +
	"The message should be in the imperative mood and briefly describe the changes made." +
	"Only return the commit message, no other text."

// Generator turns diff text into a commit message.
type Generator interface {
	Generate(ctx context.Context, diff string) string
}

// Client talks to an OpenAI-style chat completion endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	prompt  *fasttemplate.Template
	http    *http.Client
	log     zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithModel overrides DefaultModel.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// NewClient returns a Client for the endpoint at baseURL. An empty
// promptTemplate selects DefaultPrompt.
func NewClient(baseURL, apiKey, promptTemplate string, log zerolog.Logger, opts ...Option) (*Client, error) {
	if promptTemplate == "" {
		promptTemplate = DefaultPrompt
	}
	tmpl, err := fasttemplate.NewTemplate(promptTemplate, "{{", "}}")
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template: %w", err)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   DefaultModel,
		prompt:  tmpl,
		http:    http.DefaultClient,
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Prompt renders the prompt sent for diff.
func (c *Client) Prompt(diff string) string {
	return c.prompt.ExecuteString(map[string]any{"diff": diff})
}

// Generate implements Generator. Any failure is logged and yields Fallback.
func (c *Client) Generate(ctx context.Context, diff string) string {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: c.Prompt(diff)}},
	})
	if err != nil {
		c.log.Error().Err(err).Msg("encoding chat request")
		return Fallback
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/completions", bytes.NewReader(body))
	if err != nil {
		c.log.Error().Err(err).Msg("building chat request")
		return Fallback
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error().Err(err).Msg("chat request failed")
		return Fallback
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Error().Int("status", resp.StatusCode).Str("body", string(snippet)).Msg("chat endpoint returned an error")
		return Fallback
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.log.Warn().Err(err).Msg("malformed chat response")
		return Fallback
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		c.log.Warn().Msg("chat response has no content")
		return Fallback
	}

	return strings.TrimSpace(out.Choices[0].Message.Content)
}
