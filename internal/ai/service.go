// Package ai defines the model-backed analysis service used by the pipeline and
// the prompts shared by every backend.
package ai

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/spigell/jobseekr/internal/jobs"
)

// Kind selects the prompt and the model an analysis runs with.
type Kind string

const (
	KindClassification Kind = "classification"
	KindFit            Kind = "fit"
)

// Request is the input of one analysis. Resume and Preferences are only used by KindFit.
type Request struct {
	Kind        Kind
	Content     string
	Resume      string
	Preferences string
}

// Service runs analyses against a model backend. Analyze returns the raw model
// text; failures are *jobs.AIAnalysisError.
type Service interface {
	Analyze(ctx context.Context, req Request) (string, error)
	IsAvailable(ctx context.Context) bool
	Name() string
}

// Models maps analysis kinds to model identifiers.
type Models struct {
	Classification string
	Fit            string
}

func (m Models) For(kind Kind) (string, error) {
	switch kind {
	case KindClassification:
		return m.Classification, nil
	case KindFit:
		return m.Fit, nil
	default:
		return "", errors.Wrapf(jobs.ErrUnsupportedAnalysis, "kind %q", kind)
	}
}

// NewError wraps err as an analysis failure of provider.
func NewError(provider string, kind Kind, err error) error {
	return &jobs.AIAnalysisError{Provider: provider, Kind: string(kind), Err: err}
}
