package ai

import (
	_ "embed"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/spigell/jobseekr/internal/jobs"
	"github.com/spigell/jobseekr/internal/utils"
)

// ClassificationContentLimit is how much page text the classifier sees.
const ClassificationContentLimit = 3000

var (
	//go:embed prompts/classification.md
	classificationTemplate string
	//go:embed prompts/fit.md
	fitTemplate string
)

// BuildPrompt renders the prompt for req.
func BuildPrompt(req Request) (string, error) {
	switch req.Kind {
	case KindClassification:
		content := utils.Truncate(req.Content, ClassificationContentLimit) + "..."
		return strings.ReplaceAll(classificationTemplate, "{{CONTENT}}", content), nil
	case KindFit:
		return strings.NewReplacer(
			"{{RESUME}}", req.Resume,
			"{{CONTENT}}", req.Content,
			"{{PREFERENCES}}", req.Preferences,
		).Replace(fitTemplate), nil
	default:
		return "", errors.Wrapf(jobs.ErrUnsupportedAnalysis, "kind %q", req.Kind)
	}
}
