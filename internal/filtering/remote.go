package filtering

import (
	"context"

	"github.com/spigell/jobseekr/internal/jobs"
)

type remoteOnlyFilter struct{}

// NewRemoteOnly keeps only jobs that mention remote work in the title or location.
func NewRemoteOnly() Filter {
	return remoteOnlyFilter{}
}

func (remoteOnlyFilter) Name() string { return "remote_only" }

func (remoteOnlyFilter) Apply(_ context.Context, list []jobs.Job) ([]jobs.Job, Step, error) {
	kept := keep(list, jobs.Job.IsRemote)
	return kept, newStep(len(list), len(kept)), nil
}
