// Package analyzer classifies fetched pages and scores the fit of individual postings.
package analyzer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/jobseekr/internal/ai"
	"github.com/spigell/jobseekr/internal/jobs"
	"github.com/spigell/jobseekr/internal/logger"
	"github.com/spigell/jobseekr/internal/utils"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Posting is the result of classifying one URL. Content is only kept for
// individual postings; Err records why classification fell back to none.
type Posting struct {
	Content string
	Type    jobs.PostingType
	Err     error
}

type Analyzer struct {
	fetcher      Fetcher
	ai           ai.Service
	logger       *zap.Logger
	maxLogLength int
}

func New(fetcher Fetcher, service ai.Service, log *zap.Logger, maxLogLength int) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{fetcher: fetcher, ai: service, logger: log, maxLogLength: maxLogLength}
}

// AnalyzePosting fetches url and asks the model what kind of page it is.
// Fetch and model failures never escape: they classify the page as none.
func (a *Analyzer) AnalyzePosting(ctx context.Context, url string) Posting {
	log := a.logger.With(zap.String(logger.FieldJobURL, url))

	content, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		log.Warn("content fetch failed", logger.ErrorFields(err)...)
		return Posting{Type: jobs.PostingNone, Err: err}
	}
	if strings.TrimSpace(content) == "" {
		log.Info("empty content")
		return Posting{Type: jobs.PostingNone, Err: errors.New("empty content")}
	}

	answer, err := a.ai.Analyze(ctx, ai.Request{Kind: ai.KindClassification, Content: content})
	if err != nil {
		log.Warn("classification failed", logger.ErrorFields(err)...)
		return Posting{Type: jobs.PostingNone, Err: err}
	}

	postingType := ParseClassification(answer)
	log.Debug("page classified",
		zap.String("type", string(postingType)),
		zap.String("answer", utils.TruncateForLog(answer, a.maxLogLength)),
	)

	if postingType != jobs.PostingIndividual {
		return Posting{Type: postingType}
	}
	return Posting{Content: content, Type: postingType}
}

// ParseClassification maps a free-form model answer onto a posting type.
// INDIVIDUAL wins over LISTING, anything unrecognised is none.
func ParseClassification(answer string) jobs.PostingType {
	upper := strings.ToUpper(answer)
	switch {
	case strings.Contains(upper, "INDIVIDUAL"):
		return jobs.PostingIndividual
	case strings.Contains(upper, "LISTING"):
		return jobs.PostingListing
	default:
		return jobs.PostingNone
	}
}

// AnalyzeFit asks the model for a fit analysis of content. A nil analysis with
// an error means the job must be skipped; the error wraps jobs.ErrMalformedAnalysis
// when the model answered with something that is not a usable analysis.
func (a *Analyzer) AnalyzeFit(ctx context.Context, content, resume, preferences string) (*jobs.Analysis, error) {
	raw, err := a.ai.Analyze(ctx, ai.Request{
		Kind:        ai.KindFit,
		Content:     content,
		Resume:      resume,
		Preferences: preferences,
	})
	if err != nil {
		return nil, err
	}

	analysis, err := ParseAnalysis(raw)
	if err != nil {
		a.logger.Warn("fit analysis rejected",
			zap.String("response", utils.TruncateForLog(raw, a.maxLogLength)),
			zap.Error(err),
		)
		return nil, err
	}
	return analysis, nil
}

// ParseAnalysis decodes a model response into an Analysis after stripping code fences.
func ParseAnalysis(raw string) (*jobs.Analysis, error) {
	cleaned := StripCodeFences(raw)

	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, errors.Wrapf(jobs.ErrMalformedAnalysis, "decode json: %v", err)
	}

	var analysis jobs.Analysis
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &analysis,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create decoder")
	}
	if err := decoder.Decode(payload); err != nil {
		return nil, errors.Wrapf(jobs.ErrMalformedAnalysis, "unexpected shape: %v", err)
	}

	if err := analysis.Normalize(); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// StripCodeFences removes every ```json and ``` marker from s.
func StripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ContentHash is the digest stored with a processed job for change detection.
func ContentHash(content string) string {
	return utils.ContentHash(content)
}
