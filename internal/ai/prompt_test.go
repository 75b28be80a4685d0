package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/jobseekr/internal/jobs"
)

func TestBuildClassificationPromptTruncates(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("a", 5000) + "TAIL"
	prompt, err := BuildPrompt(Request{Kind: KindClassification, Content: content})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Contains(prompt, "TAIL") {
		t.Fatalf("expected content to be truncated")
	}
	if !strings.Contains(prompt, strings.Repeat("a", 3000)+"...") {
		t.Fatalf("expected first 3000 characters followed by an ellipsis")
	}
	if strings.Contains(prompt, strings.Repeat("a", 3001)) {
		t.Fatalf("expected at most 3000 characters of content")
	}
	if !strings.Contains(prompt, "EXACTLY ONE WORD") {
		t.Fatalf("expected single word instruction in prompt")
	}
}

func TestBuildFitPrompt(t *testing.T) {
	t.Parallel()

	prompt, err := BuildPrompt(Request{
		Kind:        KindFit,
		Content:     "POSTING-TEXT",
		Resume:      "RESUME-TEXT {{CONTENT}}",
		Preferences: "PREFS-TEXT",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resume := strings.Index(prompt, "RESUME-TEXT")
	posting := strings.Index(prompt, "POSTING-TEXT")
	prefs := strings.Index(prompt, "PREFS-TEXT")
	if resume < 0 || posting < 0 || prefs < 0 || !(resume < posting && posting < prefs) {
		t.Fatalf("expected resume, posting and preferences in order, got %d %d %d", resume, posting, prefs)
	}
	if strings.Count(prompt, "POSTING-TEXT") != 1 {
		t.Fatalf("placeholders inside the resume must not be expanded")
	}
	if !strings.Contains(prompt, `"fit_score": 1-5`) {
		t.Fatalf("expected json shape in prompt")
	}
}

func TestBuildPromptUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := BuildPrompt(Request{Kind: "summarize"})
	if !errors.Is(err, jobs.ErrUnsupportedAnalysis) {
		t.Fatalf("expected ErrUnsupportedAnalysis, got %v", err)
	}
}

func TestModelsFor(t *testing.T) {
	t.Parallel()

	m := Models{Classification: "small", Fit: "large"}
	if got, _ := m.For(KindClassification); got != "small" {
		t.Fatalf("unexpected classification model %s", got)
	}
	if got, _ := m.For(KindFit); got != "large" {
		t.Fatalf("unexpected fit model %s", got)
	}
	if _, err := m.For("other"); !errors.Is(err, jobs.ErrUnsupportedAnalysis) {
		t.Fatalf("expected ErrUnsupportedAnalysis, got %v", err)
	}
}

type stubService struct {
	out string
	err error
}

func (s stubService) Analyze(context.Context, Request) (string, error) { return s.out, s.err }
func (s stubService) IsAvailable(context.Context) bool                { return s.err == nil }
func (s stubService) Name() string                                    { return "stub" }

func TestWithLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	svc := WithLogging(stubService{out: strings.Repeat("x", 50)}, zap.New(core), 10)

	out, err := svc.Analyze(context.Background(), Request{Kind: KindFit, Content: "c"})
	if err != nil || len(out) != 50 {
		t.Fatalf("expected pass-through response, got %q, %v", out, err)
	}

	entries := logs.FilterMessage("ai analysis done").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["response"] != strings.Repeat("x", 10)+"..." {
		t.Fatalf("expected truncated response, got %v", ctx["response"])
	}
	if ctx["ai_provider"] != "stub" {
		t.Fatalf("expected provider field, got %v", ctx["ai_provider"])
	}

	failing := WithLogging(stubService{err: NewError("stub", KindFit, errors.New("boom"))}, zap.New(core), 10)
	if _, err := failing.Analyze(context.Background(), Request{Kind: KindFit}); err == nil {
		t.Fatalf("expected error to be returned")
	}
	if logs.FilterMessage("ai analysis failed").Len() != 1 {
		t.Fatalf("expected failure to be logged")
	}
}
