package filtering

import (
	"context"

	"github.com/spigell/jobseekr/internal/jobs"
)

type uniqueURLFilter struct{}

// NewUniqueURLs keeps the first job for every URL and drops later repeats.
func NewUniqueURLs() Filter {
	return uniqueURLFilter{}
}

func (uniqueURLFilter) Name() string { return "unique_urls" }

func (uniqueURLFilter) Apply(_ context.Context, list []jobs.Job) ([]jobs.Job, Step, error) {
	seen := make(map[string]struct{}, len(list))
	kept := keep(list, func(job jobs.Job) bool {
		if _, ok := seen[job.URL]; ok {
			return false
		}
		seen[job.URL] = struct{}{}
		return true
	})
	return kept, newStep(len(list), len(kept)), nil
}
