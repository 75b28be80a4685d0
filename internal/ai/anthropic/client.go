// Package anthropic runs analyses with Claude models through the Anthropic SDK.
package anthropic

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"

	"github.com/spigell/jobseekr/internal/ai"
)

const (
	Name         = "anthropic"
	DefaultModel = "claude-sonnet-4-20250514"
)

type Options struct {
	APIKey      string
	BaseURL     string
	Models      ai.Models
	MaxTokens   int
	Temperature float64
	// RequestOptions are appended to the SDK client options.
	RequestOptions []option.RequestOption
}

type Client struct {
	client      sdk.Client
	models      ai.Models
	maxTokens   int64
	temperature float64
}

func New(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.WithHint(errors.New("anthropic api key is required"), "set ANTHROPIC_API_KEY or ai.anthropic.api-key-file")
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(base))
	}
	clientOpts = append(clientOpts, opts.RequestOptions...)

	models := opts.Models
	if models.Fit == "" {
		models.Fit = DefaultModel
	}
	if models.Classification == "" {
		models.Classification = models.Fit
	}

	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 20000
	}

	return &Client{
		client:      sdk.NewClient(clientOpts...),
		models:      models,
		maxTokens:   maxTokens,
		temperature: opts.Temperature,
	}, nil
}

func (c *Client) Name() string { return Name }

func (c *Client) Analyze(ctx context.Context, req ai.Request) (string, error) {
	model, err := c.models.For(req.Kind)
	if err != nil {
		return "", ai.NewError(Name, req.Kind, err)
	}

	prompt, err := ai.BuildPrompt(req)
	if err != nil {
		return "", ai.NewError(Name, req.Kind, err)
	}

	out, err := c.send(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(model),
		MaxTokens:   c.maxTokens,
		Temperature: sdk.Float(c.temperature),
		Messages:    userMessage(prompt),
	})
	if err != nil {
		return "", ai.NewError(Name, req.Kind, err)
	}
	return out, nil
}

func (c *Client) IsAvailable(ctx context.Context) bool {
	_, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.models.Fit),
		MaxTokens: 10,
		Messages:  userMessage("test"),
	})
	return err == nil
}

func (c *Client) send(ctx context.Context, params sdk.MessageNewParams) (string, error) {
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", errors.Wrap(err, "create message")
	}

	var builder strings.Builder
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		builder.WriteString(block.Text)
	}

	out := strings.TrimSpace(builder.String())
	if out == "" {
		return "", errors.New("anthropic api returned no text content")
	}
	return out, nil
}

func userMessage(text string) []sdk.MessageParam {
	return []sdk.MessageParam{{
		Role: sdk.MessageParamRoleUser,
		Content: []sdk.ContentBlockParamUnion{{
			OfText: &sdk.TextBlockParam{Text: text},
		}},
	}}
}
