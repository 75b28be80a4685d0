package jobs

import (
	"strings"
	"time"
)

const (
	DefaultEmploymentType = "Full-time"
	UnknownPostedTime     = "Unknown"
	ProcessingVersion     = "1.0"
)

// Job is a single search hit turned into a structured record. It only lives for
// the duration of one pipeline run.
type Job struct {
	ID             string `json:"id" yaml:"id"`
	Title          string `json:"title" yaml:"title"`
	URL            string `json:"url" yaml:"url"`
	Description    string `json:"description" yaml:"description"`
	PostedTime     string `json:"postedTime" yaml:"posted_time"`
	Company        string `json:"company,omitempty" yaml:"company,omitempty"`
	Location       string `json:"location,omitempty" yaml:"location,omitempty"`
	EmploymentType string `json:"employmentType" yaml:"employment_type"`
	Salary         string `json:"salary,omitempty" yaml:"salary,omitempty"`
	LogoURL        string `json:"logoUrl,omitempty" yaml:"logo_url,omitempty"`
}

func (j Job) IsRemote() bool {
	return strings.Contains(strings.ToLower(j.Title), "remote") ||
		strings.Contains(strings.ToLower(j.Location), "remote")
}

func (j Job) String() string {
	company := j.Company
	if company == "" {
		company = "Unknown"
	}
	return j.Title + " at " + company
}

// ProcessedJob is the persisted outcome of a successful pipeline pass for one URL.
// URL is the dedup key: storing a ProcessedJob for a known URL replaces the old row.
type ProcessedJob struct {
	URL            string `json:"job_url" yaml:"job_url"`
	Title          string `json:"job_title" yaml:"job_title"`
	Company        string `json:"company,omitempty" yaml:"company,omitempty"`
	Location       string `json:"location,omitempty" yaml:"location,omitempty"`
	PostedTime     string `json:"posted_time" yaml:"posted_time"`
	EmploymentType string `json:"employment_type" yaml:"employment_type"`
	Salary         string `json:"salary,omitempty" yaml:"salary,omitempty"`
	LogoURL        string `json:"logo_url,omitempty" yaml:"logo_url,omitempty"`

	Recommendation Recommendation `json:"recommendation" yaml:"recommendation"`
	Confidence     int            `json:"confidence" yaml:"confidence"`
	FitScore       int            `json:"fit_score" yaml:"fit_score"`
	Analysis       *Analysis      `json:"analysis" yaml:"analysis"`

	ProcessedAt       time.Time `json:"processed_at" yaml:"processed_at"`
	ContentHash       string    `json:"content_hash" yaml:"content_hash"`
	ProcessingVersion string    `json:"processing_version" yaml:"processing_version"`
}

// NewProcessedJob combines the search metadata of a job with its fit analysis.
func NewProcessedJob(job Job, analysis *Analysis, contentHash string, now time.Time) *ProcessedJob {
	employment := job.EmploymentType
	if employment == "" {
		employment = DefaultEmploymentType
	}

	posted := job.PostedTime
	if posted == "" {
		posted = UnknownPostedTime
	}

	return &ProcessedJob{
		URL:               job.URL,
		Title:             job.Title,
		Company:           job.Company,
		Location:          job.Location,
		PostedTime:        posted,
		EmploymentType:    employment,
		Salary:            job.Salary,
		LogoURL:           job.LogoURL,
		Recommendation:    analysis.Recommendation,
		Confidence:        analysis.Confidence,
		FitScore:          analysis.FitScore,
		Analysis:          analysis,
		ProcessedAt:       now,
		ContentHash:       contentHash,
		ProcessingVersion: ProcessingVersion,
	}
}

// Job restores the descriptive part of a stored row.
func (p *ProcessedJob) Job(id string) Job {
	return Job{
		ID:             id,
		Title:          p.Title,
		URL:            p.URL,
		PostedTime:     p.PostedTime,
		Company:        p.Company,
		Location:       p.Location,
		EmploymentType: p.EmploymentType,
		Salary:         p.Salary,
		LogoURL:        p.LogoURL,
	}
}

// PostingType is the classification of a fetched page.
type PostingType string

const (
	PostingIndividual PostingType = "individual"
	PostingListing    PostingType = "listing"
	PostingNone       PostingType = "none"
)
