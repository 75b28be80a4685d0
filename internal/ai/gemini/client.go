// Package gemini runs analyses with Google Gemini models through the GenAI SDK.
package gemini

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/jobseekr/internal/ai"
	"github.com/spigell/jobseekr/internal/utils"
)

const (
	Name              = "gemini"
	defaultModel      = "gemini-2.5-pro"
	defaultMaxRetries = 3
	retryBackoff      = 2 * time.Second
	// quota errors asking to wait longer than this fail right away
	maxRetryDelay = 30 * time.Second
)

var (
	wait         = utils.WaitFor
	retryAfterRe = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*(s|sec|seconds?)\b`)
)

type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Options struct {
	APIKey     string
	Models     ai.Models
	MaxRetries int
}

// Generator sends prompts to Gemini and retries transient API failures.
type Generator struct {
	models     models
	names      ai.Models
	maxRetries int
	logger     *zap.Logger
}

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, opts Options, logger *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.WithHint(errors.New("gemini api key is required"), "set GEMINI_API_KEY or ai.gemini.api-key-file")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}

	return newGenerator(client.Models, opts, logger), nil
}

func newGenerator(m models, opts Options, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}

	names := opts.Models
	if names.Fit = strings.TrimSpace(names.Fit); names.Fit == "" {
		names.Fit = defaultModel
	}
	if strings.TrimSpace(names.Classification) == "" {
		names.Classification = names.Fit
	}

	retries := opts.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	return &Generator{models: m, names: names, maxRetries: retries, logger: logger}
}

func (g *Generator) Name() string { return Name }

func (g *Generator) Analyze(ctx context.Context, req ai.Request) (string, error) {
	model, err := g.names.For(req.Kind)
	if err != nil {
		return "", ai.NewError(Name, req.Kind, err)
	}

	prompt, err := ai.BuildPrompt(req)
	if err != nil {
		return "", ai.NewError(Name, req.Kind, err)
	}

	out, err := g.generate(ctx, model, prompt)
	if err != nil {
		return "", ai.NewError(Name, req.Kind, err)
	}
	return out, nil
}

func (g *Generator) IsAvailable(ctx context.Context) bool {
	_, err := g.models.GenerateContent(ctx, g.names.Classification, genai.Text("test"), nil)
	return err == nil
}

func (g *Generator) generate(ctx context.Context, model, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		resp, err := g.models.GenerateContent(ctx, model, genai.Text(prompt), nil)
		if err == nil {
			return responseText(resp)
		}
		lastErr = err

		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == g.maxRetries {
			break
		}

		g.logger.Warn("gemini request failed, retrying",
			zap.String("model", model),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := wait(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", errors.Wrap(lastErr, "generate content")
}

// retryDelay reports whether err is worth another attempt and how long to wait first.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		if m := retryAfterRe.FindStringSubmatch(apiErr.Message); m != nil {
			secs, _ := strconv.ParseFloat(m[1], 64)
			delay := time.Duration(secs * float64(time.Second))
			if delay > maxRetryDelay {
				return 0, false
			}
			return delay, true
		}
		return time.Duration(attempt) * retryBackoff, true
	case apiErr.Code >= http.StatusInternalServerError:
		return time.Duration(attempt) * retryBackoff, true
	default:
		return 0, false
	}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned no response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}
