package jobs

import (
	"errors"
	"strings"
	"testing"
	"time"

	crdb "github.com/cockroachdb/errors"
)

func TestAnalysisNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      Analysis
		wantErr bool
		want    Recommendation
	}{
		{name: "upper case recommendation", in: Analysis{Recommendation: " APPLY ", Confidence: 4, FitScore: 5}, want: RecommendApply},
		{name: "maybe", in: Analysis{Recommendation: "maybe", Confidence: 1, FitScore: 1}, want: RecommendMaybe},
		{name: "unknown recommendation", in: Analysis{Recommendation: "yes", Confidence: 3, FitScore: 3}, wantErr: true},
		{name: "confidence too high", in: Analysis{Recommendation: "skip", Confidence: 6, FitScore: 3}, wantErr: true},
		{name: "fit score zero", in: Analysis{Recommendation: "skip", Confidence: 3, FitScore: 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := tt.in
			err := a.Normalize()
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedAnalysis) {
					t.Fatalf("expected ErrMalformedAnalysis, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.Recommendation != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, a.Recommendation)
			}
		})
	}
}

func TestNewProcessedJobDefaults(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	job := Job{ID: "abc", Title: "Go Engineer", URL: "https://x.com/job/1", Company: "Acme"}
	analysis := &Analysis{Recommendation: RecommendApply, Confidence: 4, FitScore: 5}

	pj := NewProcessedJob(job, analysis, "hash", now)

	if pj.EmploymentType != DefaultEmploymentType {
		t.Fatalf("expected default employment type, got %q", pj.EmploymentType)
	}
	if pj.PostedTime != UnknownPostedTime {
		t.Fatalf("expected unknown posted time, got %q", pj.PostedTime)
	}
	if pj.ProcessingVersion != ProcessingVersion {
		t.Fatalf("expected version %s, got %s", ProcessingVersion, pj.ProcessingVersion)
	}
	if pj.FitScore != 5 || pj.Confidence != 4 || pj.Recommendation != RecommendApply {
		t.Fatalf("analysis fields not copied: %+v", pj)
	}
	if !pj.ProcessedAt.Equal(now) {
		t.Fatalf("expected processed_at %v, got %v", now, pj.ProcessedAt)
	}

	restored := pj.Job("abc")
	if restored.Title != job.Title || restored.Company != job.Company {
		t.Fatalf("unexpected restored job: %+v", restored)
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")

	fetchErr := error(&ContentFetchError{URL: "https://x", Kind: FetchRateLimited, Attempts: 3, StatusCode: 429, Err: cause})
	if !errors.Is(fetchErr, cause) {
		t.Fatalf("expected fetch error to unwrap to cause")
	}
	if !strings.Contains(fetchErr.Error(), "rate-limited after 3 attempt(s)") {
		t.Fatalf("unexpected message: %s", fetchErr.Error())
	}

	var target *SearchAPIError
	wrapped := crdb.Wrap(&SearchAPIError{StatusCode: 403, Reason: "api key or quota issue"}, "run")
	if !errors.As(wrapped, &target) || target.StatusCode != 403 {
		t.Fatalf("expected SearchAPIError through wrap, got %v", wrapped)
	}

	cfgErr := NewConfigurationError("search.api-key", "set GOOGLE_API_KEY", errors.New("missing"))
	hints := crdb.GetAllHints(cfgErr)
	if len(hints) != 1 || hints[0] != "set GOOGLE_API_KEY" {
		t.Fatalf("expected hint to be attached, got %v", hints)
	}
}
