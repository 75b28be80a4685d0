// Package filtering drops parsed jobs before any content is fetched or scored.
package filtering

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/spigell/jobseekr/internal/jobs"
)

// Filter represents a single filtering step applied to parsed jobs.
type Filter interface {
	Name() string
	Apply(ctx context.Context, list []jobs.Job) ([]jobs.Job, Step, error)
}

// Config contains the settings the built-in filters are created from.
type Config struct {
	ExcludeCompanies []string
	ExcludeFile      string
	RemoteOnly       bool
}

// FromConfig returns the filters enabled by cfg, in the order they run.
func FromConfig(cfg Config) []Filter {
	var steps []Filter
	if cfg.ExcludeFile != "" {
		steps = append(steps, NewExcludeFile(cfg.ExcludeFile))
	}
	if len(cfg.ExcludeCompanies) > 0 {
		steps = append(steps, NewExcludedCompanies(cfg.ExcludeCompanies))
	}
	if cfg.RemoteOnly {
		steps = append(steps, NewRemoteOnly())
	}
	return steps
}

// Run executes the supplied filters sequentially and returns the jobs left.
func Run(ctx context.Context, logger *zap.Logger, steps []Filter, list []jobs.Job) ([]jobs.Job, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		next, info, err := step.Apply(ctx, list)
		if err != nil {
			return nil, errors.Wrap(err, step.Name())
		}

		logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		list = next
	}

	return list, nil
}

func keep(list []jobs.Job, pred func(jobs.Job) bool) []jobs.Job {
	kept := make([]jobs.Job, 0, len(list))
	for _, job := range list {
		if pred(job) {
			kept = append(kept, job)
		}
	}
	return kept
}
