// Package workflow runs the search, classify, score and persist pipeline.
package workflow

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/jobseekr/internal/analyzer"
	"github.com/spigell/jobseekr/internal/filtering"
	"github.com/spigell/jobseekr/internal/jobs"
	"github.com/spigell/jobseekr/internal/logger"
	"github.com/spigell/jobseekr/internal/search"
	"github.com/spigell/jobseekr/internal/utils"
)

const reprocessJobTitle = "Reprocessed Job"

type Searcher interface {
	Search(ctx context.Context, term, dateRestrict string) (*search.Results, error)
}

type Parser interface {
	Parse(results *search.Results) ([]jobs.Job, error)
}

type Analyzer interface {
	AnalyzePosting(ctx context.Context, url string) analyzer.Posting
	AnalyzeFit(ctx context.Context, content, resume, preferences string) (*jobs.Analysis, error)
}

type Options struct {
	Resume      string
	Preferences string
	// SkipUnchangedContent skips fit scoring when the stored content hash matches.
	SkipUnchangedContent bool
	// Concurrency is the number of jobs processed at once. Values below 1 mean 1.
	Concurrency int
	// Filters run on the parsed jobs before the dedup check, after repeated
	// URLs are dropped.
	Filters []filtering.Filter
}

type Deps struct {
	Searcher   Searcher
	Parser     Parser
	Analyzer   Analyzer
	Repository jobs.Repository
	Logger     *zap.Logger
}

type Workflow struct {
	searcher Searcher
	parser   Parser
	analyzer Analyzer
	repo     jobs.Repository
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

func New(deps Deps, opts Options) *Workflow {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	opts.Filters = append([]filtering.Filter{filtering.NewUniqueURLs()}, opts.Filters...)

	return &Workflow{
		searcher: deps.Searcher,
		parser:   deps.Parser,
		analyzer: deps.Analyzer,
		repo:     deps.Repository,
		opts:     opts,
		logger:   log,
		now:      time.Now,
	}
}

// SearchAndProcessJobs runs the pipeline for term and returns the jobs persisted
// in this run, in search order. Only search and parse failures are returned as
// errors; every per-job failure becomes a skipped outcome.
func (w *Workflow) SearchAndProcessJobs(ctx context.Context, term, dateRestrict string) ([]jobs.Job, error) {
	persisted, _, err := w.Run(ctx, term, dateRestrict)
	return persisted, err
}

// Run is SearchAndProcessJobs that also returns the run summary.
func (w *Workflow) Run(ctx context.Context, term, dateRestrict string) ([]jobs.Job, Summary, error) {
	log := w.logger.With(
		zap.String(logger.FieldRunID, uuid.NewString()),
		zap.String("term", term),
	)
	log.Info("starting the search", zap.String("date_restrict", dateRestrict))

	results, err := w.searcher.Search(ctx, term, dateRestrict)
	if err != nil {
		return nil, Summary{Term: term}, errors.Wrapf(err, "search %q", term)
	}

	parsed, err := w.parser.Parse(results)
	if err != nil {
		var parseErr *jobs.JobParsingError
		if !errors.As(err, &parseErr) {
			err = &jobs.JobParsingError{Err: err}
		}
		return nil, Summary{Term: term, Found: results.Len()}, err
	}

	log.Info("search results parsed", zap.Int("found", results.Len()), zap.Int("jobs", len(parsed)))

	parsed, err = filtering.Run(ctx, log, w.opts.Filters, parsed)
	if err != nil {
		return nil, Summary{Term: term, Found: results.Len()}, errors.Wrap(err, "filtering jobs")
	}

	outcomes := w.processAll(ctx, log, parsed)

	var persisted []jobs.Job
	for _, o := range outcomes {
		if o.Persisted() {
			persisted = append(persisted, o.Job)
		}
	}

	summary := summarize(term, results.Len(), outcomes)
	log.Info("search run finished", summary.fields()...)
	w.logStats(ctx, log)

	return persisted, summary, nil
}

// processAll keeps the parser order in the returned outcomes regardless of concurrency.
func (w *Workflow) processAll(ctx context.Context, log *zap.Logger, list []jobs.Job) []Outcome {
	outcomes := make([]Outcome, len(list))

	g := new(errgroup.Group)
	g.SetLimit(w.opts.Concurrency)

	for i, job := range list {
		g.Go(func() error {
			outcomes[i] = w.processGuarded(ctx, log, job, true)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (w *Workflow) processGuarded(ctx context.Context, log *zap.Logger, job jobs.Job, dedup bool) (out Outcome) {
	log = logger.WithFields(log, logger.JobFields(job)...)

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Job: job, Status: StatusFailed, Reason: "panic", Err: fmt.Errorf("panic: %v", r)}
			log.Error("job processing panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
	}()

	if err := ctx.Err(); err != nil {
		return Outcome{Job: job, Status: StatusFailed, Reason: "cancelled", Err: err}
	}

	out = w.process(ctx, log, job, dedup)
	switch out.Status {
	case StatusPersisted:
	case StatusFailed:
		log.Warn("job failed", append([]zap.Field{zap.String("reason", out.Reason)}, logger.ErrorFields(out.Err)...)...)
	default:
		fields := []zap.Field{zap.String("status", string(out.Status)), zap.String("reason", out.Reason)}
		if out.Err != nil {
			fields = append(fields, logger.ErrorFields(out.Err)...)
		}
		log.Info("job skipped", fields...)
	}
	return out
}

func (w *Workflow) process(ctx context.Context, log *zap.Logger, job jobs.Job, dedup bool) Outcome {
	if dedup {
		exists, err := w.repo.Exists(ctx, job.URL)
		if err != nil {
			return Outcome{Job: job, Status: StatusFailed, Reason: "dedup check failed", Err: err}
		}
		if exists {
			return Outcome{Job: job, Status: StatusDuplicate, Reason: "already processed"}
		}
	}

	posting := w.analyzer.AnalyzePosting(ctx, job.URL)
	if posting.Type != jobs.PostingIndividual {
		return Outcome{Job: job, Status: StatusNotIndividual, Reason: "page classified as " + string(posting.Type), Err: posting.Err}
	}

	hash := analyzer.ContentHash(posting.Content)

	if w.opts.SkipUnchangedContent {
		changed, err := w.repo.HasContentChanged(ctx, job.URL, hash)
		if err != nil {
			log.Warn("content change check failed, scoring anyway", logger.ErrorFields(err)...)
		} else if !changed {
			return Outcome{Job: job, Status: StatusUnchanged, Reason: "content hash unchanged"}
		}
	}

	analysis, err := w.analyzer.AnalyzeFit(ctx, posting.Content, w.opts.Resume, w.opts.Preferences)
	if err != nil || analysis == nil {
		if err == nil {
			err = jobs.ErrMalformedAnalysis
		}
		return Outcome{Job: job, Status: StatusAIFailure, Reason: "fit analysis unavailable", Err: err}
	}

	processed := jobs.NewProcessedJob(job, analysis, hash, w.now().UTC())
	if err := w.repo.Save(ctx, processed); err != nil {
		return Outcome{Job: job, Status: StatusFailed, Reason: "save failed", Err: err}
	}

	log.Info("job processed",
		zap.String("recommendation", string(analysis.Recommendation)),
		zap.Int("fit_score", analysis.FitScore),
		zap.Int("confidence", analysis.Confidence),
	)
	return Outcome{Job: job, Status: StatusPersisted}
}

// ReprocessJob forces a new analysis of url, bypassing the dedup check. Stored
// metadata is reused when the URL is known.
func (w *Workflow) ReprocessJob(ctx context.Context, url string) bool {
	out := w.Reprocess(ctx, url)
	return out.Persisted()
}

// Reprocess is ReprocessJob returning the full outcome.
func (w *Workflow) Reprocess(ctx context.Context, url string) Outcome {
	log := w.logger.With(zap.String(logger.FieldRunID, uuid.NewString()))

	job := jobs.Job{
		ID:             utils.JobID(url),
		Title:          reprocessJobTitle,
		URL:            url,
		PostedTime:     jobs.UnknownPostedTime,
		EmploymentType: jobs.DefaultEmploymentType,
	}

	stored, err := w.repo.Get(ctx, url)
	switch {
	case err == nil:
		job = stored.Job(job.ID)
	case errors.Is(err, jobs.ErrNotFound):
	default:
		log.Warn("loading stored job failed, using minimal metadata", logger.ErrorFields(err)...)
	}

	return w.processGuarded(ctx, log, job, false)
}

func (w *Workflow) logStats(ctx context.Context, log *zap.Logger) {
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		log.Warn("failed to get processing stats", logger.ErrorFields(err)...)
		return
	}

	log.Info("processing stats",
		zap.Int("total", stats.Total),
		zap.Int("apply", stats.ApplyCount),
		zap.Int("maybe", stats.MaybeCount),
		zap.Int("skip", stats.SkipCount),
		zap.Float64("avg_fit_score", stats.AvgFitScore),
		zap.Float64("avg_confidence", stats.AvgConfidence),
	)
}
