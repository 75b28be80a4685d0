package jobs

import "context"

// ListFilter narrows Repository.List. Zero value lists everything.
type ListFilter struct {
	Recommendation Recommendation
}

// Stats aggregates the stored analyses. Averages are rounded to two decimals.
type Stats struct {
	Total         int     `json:"total" yaml:"total"`
	ApplyCount    int     `json:"apply_count" yaml:"apply_count"`
	MaybeCount    int     `json:"maybe_count" yaml:"maybe_count"`
	SkipCount     int     `json:"skip_count" yaml:"skip_count"`
	AvgFitScore   float64 `json:"avg_fit_score" yaml:"avg_fit_score"`
	AvgConfidence float64 `json:"avg_confidence" yaml:"avg_confidence"`
}

// Repository is the persistence boundary of the pipeline. Save is an upsert keyed
// by URL and must be safe for concurrent calls on different URLs.
type Repository interface {
	Exists(ctx context.Context, url string) (bool, error)
	Save(ctx context.Context, job *ProcessedJob) error
	Get(ctx context.Context, url string) (*ProcessedJob, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*ProcessedJob, error)
	Stats(ctx context.Context) (*Stats, error)
	HasContentChanged(ctx context.Context, url, contentHash string) (bool, error)
	Close() error
}
