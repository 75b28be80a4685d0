// Package ollama runs analyses against a local Ollama server over its chat API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spigell/jobseekr/internal/ai"
)

const (
	Name           = "ollama"
	defaultBaseURL = "http://localhost:11434"
	chatPath       = "/api/chat"
)

type Options struct {
	BaseURL     string
	Models      ai.Models
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type Client struct {
	baseURL     string
	models      ai.Models
	temperature float64
	maxTokens   int

	HTTPClient *http.Client
}

func New(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &Client{
		baseURL:     base,
		models:      opts.Models,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		HTTPClient:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return Name }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string       `json:"model"`
	Messages []message    `json:"messages"`
	Stream   bool         `json:"stream"`
	Options  *chatOptions `json:"options,omitempty"`
}

type chatResponse struct {
	Message message `json:"message"`
	Error   string  `json:"error"`
}

func (c *Client) Analyze(ctx context.Context, req ai.Request) (string, error) {
	model, err := c.models.For(req.Kind)
	if err != nil {
		return "", ai.NewError(Name, req.Kind, err)
	}

	prompt, err := ai.BuildPrompt(req)
	if err != nil {
		return "", ai.NewError(Name, req.Kind, err)
	}

	out, err := c.chat(ctx, model, prompt, &chatOptions{Temperature: c.temperature, NumPredict: c.maxTokens})
	if err != nil {
		return "", ai.NewError(Name, req.Kind, err)
	}
	return out, nil
}

// IsAvailable sends a minimal chat to the classification model, the first one a run needs.
func (c *Client) IsAvailable(ctx context.Context) bool {
	_, err := c.chat(ctx, c.models.Classification, "test", nil)
	return err == nil
}

func (c *Client) chat(ctx context.Context, model, prompt string, opts *chatOptions) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: []message{{Role: "user", Content: prompt}},
		Options:  opts,
	})
	if err != nil {
		return "", errors.Wrap(err, "encode chat request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "build chat request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "chat with %s", model)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read chat response")
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil && resp.StatusCode == http.StatusOK {
		return "", errors.Wrap(err, "decode chat response")
	}

	if resp.StatusCode != http.StatusOK {
		reason := parsed.Error
		if reason == "" {
			reason = strings.TrimSpace(string(body))
		}
		return "", errors.Newf("ollama returned HTTP %d: %s", resp.StatusCode, reason)
	}

	return parsed.Message.Content, nil
}
