package jobs

import (
	"strings"

	"github.com/cockroachdb/errors"
)

type Recommendation string

const (
	RecommendApply Recommendation = "apply"
	RecommendMaybe Recommendation = "maybe"
	RecommendSkip  Recommendation = "skip"
)

func (r Recommendation) Valid() bool {
	switch r {
	case RecommendApply, RecommendMaybe, RecommendSkip:
		return true
	default:
		return false
	}
}

// RoleSummary is the nested "summary" object of a fit analysis.
type RoleSummary struct {
	Role            string   `json:"role" yaml:"role" mapstructure:"role"`
	Company         string   `json:"company" yaml:"company" mapstructure:"company"`
	Location        string   `json:"location" yaml:"location" mapstructure:"location"`
	SalaryRange     string   `json:"salary_range" yaml:"salary_range" mapstructure:"salary_range"`
	KeyTechnologies []string `json:"key_technologies" yaml:"key_technologies" mapstructure:"key_technologies"`
}

// Analysis is the structured fit assessment returned by the scoring model.
type Analysis struct {
	Recommendation    Recommendation `json:"recommendation" yaml:"recommendation" mapstructure:"recommendation"`
	Confidence        int            `json:"confidence" yaml:"confidence" mapstructure:"confidence"`
	FitScore          int            `json:"fit_score" yaml:"fit_score" mapstructure:"fit_score"`
	Summary           RoleSummary    `json:"summary" yaml:"summary" mapstructure:"summary"`
	JobSummary        string         `json:"job_summary" yaml:"job_summary" mapstructure:"job_summary"`
	FitSummary        string         `json:"fit_summary" yaml:"fit_summary" mapstructure:"fit_summary"`
	WhyGoodFit        []string       `json:"why_good_fit" yaml:"why_good_fit" mapstructure:"why_good_fit"`
	PotentialConcerns []string       `json:"potential_concerns" yaml:"potential_concerns" mapstructure:"potential_concerns"`
}

// Normalize lower-cases the recommendation and checks the score ranges the store relies on.
func (a *Analysis) Normalize() error {
	a.Recommendation = Recommendation(strings.ToLower(strings.TrimSpace(string(a.Recommendation))))
	if !a.Recommendation.Valid() {
		return errors.Wrapf(ErrMalformedAnalysis, "unknown recommendation %q", a.Recommendation)
	}
	if a.Confidence < 1 || a.Confidence > 5 {
		return errors.Wrapf(ErrMalformedAnalysis, "confidence %d out of range 1-5", a.Confidence)
	}
	if a.FitScore < 1 || a.FitScore > 5 {
		return errors.Wrapf(ErrMalformedAnalysis, "fit_score %d out of range 1-5", a.FitScore)
	}
	return nil
}
