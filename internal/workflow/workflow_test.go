package workflow

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spigell/jobseekr/internal/ai"
	"github.com/spigell/jobseekr/internal/analyzer"
	"github.com/spigell/jobseekr/internal/content"
	"github.com/spigell/jobseekr/internal/filtering"
	"github.com/spigell/jobseekr/internal/jobs"
	"github.com/spigell/jobseekr/internal/parser"
	"github.com/spigell/jobseekr/internal/search"
)

const applyJSON = `{"recommendation":"apply","confidence":4,"fit_score":5,"summary":{"role":"Go Engineer"}}`

type stubSearcher struct {
	results *search.Results
	err     error
	calls   int
}

func (s *stubSearcher) Search(_ context.Context, _, _ string) (*search.Results, error) {
	s.calls++
	return s.results, s.err
}

type stubFetcher struct {
	mu      sync.Mutex
	content map[string]string
	err     map[string]error
	fetched []string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	if err := f.err[url]; err != nil {
		return "", err
	}
	return f.content[url], nil
}

// scriptedAI answers classification with a fixed word and fit requests from a queue.
type scriptedAI struct {
	mu             sync.Mutex
	classification string
	fit            []string
	fitErr         []error
	fitCalls       int
	classifyCalls  int
}

func (s *scriptedAI) Analyze(_ context.Context, req ai.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Kind == ai.KindClassification {
		s.classifyCalls++
		return s.classification, nil
	}

	i := s.fitCalls
	s.fitCalls++
	if i < len(s.fitErr) && s.fitErr[i] != nil {
		return "", s.fitErr[i]
	}
	if i < len(s.fit) {
		return s.fit[i], nil
	}
	return applyJSON, nil
}

func (s *scriptedAI) IsAvailable(context.Context) bool { return true }
func (s *scriptedAI) Name() string                     { return "scripted" }

type memRepo struct {
	mu       sync.Mutex
	rows     map[string]*jobs.ProcessedJob
	saveErr  error
	statsErr error
}

func newMemRepo() *memRepo { return &memRepo{rows: map[string]*jobs.ProcessedJob{}} }

func (r *memRepo) Exists(_ context.Context, url string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[url]
	return ok, nil
}

func (r *memRepo) Save(_ context.Context, job *jobs.ProcessedJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.rows[job.URL] = job
	return nil
}

func (r *memRepo) Get(_ context.Context, url string) (*jobs.ProcessedJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[url]; ok {
		return row, nil
	}
	return nil, jobs.ErrNotFound
}

func (r *memRepo) List(context.Context, jobs.ListFilter, int, int) ([]*jobs.ProcessedJob, error) {
	return nil, nil
}

func (r *memRepo) Stats(context.Context) (*jobs.Stats, error) {
	if r.statsErr != nil {
		return nil, r.statsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return &jobs.Stats{Total: len(r.rows)}, nil
}

func (r *memRepo) HasContentChanged(_ context.Context, url, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[url]
	return !ok || row.ContentHash != hash, nil
}

func (r *memRepo) Close() error { return nil }

type fixture struct {
	searcher *stubSearcher
	fetcher  *stubFetcher
	ai       *scriptedAI
	repo     *memRepo
}

func newFixture(urls ...string) *fixture {
	results := &search.Results{}
	content := map[string]string{}
	for _, u := range urls {
		results.Items = append(results.Items, &search.Item{Title: "Senior Go Engineer @ Acme", Link: u, Snippet: "Remote. 2 days ago"})
		content[u] = "We are hiring a Go engineer for " + u
	}

	return &fixture{
		searcher: &stubSearcher{results: results},
		fetcher:  &stubFetcher{content: content, err: map[string]error{}},
		ai:       &scriptedAI{classification: "INDIVIDUAL"},
		repo:     newMemRepo(),
	}
}

func (f *fixture) workflow(t *testing.T, opts Options) *Workflow {
	t.Helper()
	log := zaptest.NewLogger(t)

	w := New(Deps{
		Searcher:   f.searcher,
		Parser:     parser.New(log),
		Analyzer:   analyzer.New(f.fetcher, f.ai, log, 200),
		Repository: f.repo,
		Logger:     log,
	}, opts)
	w.now = func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }
	return w
}

func TestIndividualPostingPersisted(t *testing.T) {
	f := newFixture("https://jobs.example.com/1")
	w := f.workflow(t, Options{Resume: "resume", Preferences: "remote"})

	got, err := w.SearchAndProcessJobs(context.Background(), "golang", "d1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://jobs.example.com/1", got[0].URL)

	row := f.repo.rows["https://jobs.example.com/1"]
	require.NotNil(t, row)
	assert.Equal(t, jobs.RecommendApply, row.Recommendation)
	assert.Equal(t, 5, row.FitScore)
	assert.Equal(t, 4, row.Confidence)
	assert.Equal(t, "Acme", row.Company)
	assert.Equal(t, analyzer.ContentHash("We are hiring a Go engineer for https://jobs.example.com/1"), row.ContentHash)
	assert.Equal(t, time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC), row.ProcessedAt)
}

func TestListingPageSkipsFitAnalysis(t *testing.T) {
	f := newFixture("https://jobs.example.com/search")
	f.ai.classification = "LISTING"
	w := f.workflow(t, Options{})

	got, summary, err := w.Run(context.Background(), "golang", "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, f.ai.fitCalls)
	assert.Equal(t, 1, summary.Statuses[StatusNotIndividual])
	assert.Empty(t, f.repo.rows)
}

func TestFetchFailureSkipsJob(t *testing.T) {
	f := newFixture("https://jobs.example.com/1")
	f.fetcher.err["https://jobs.example.com/1"] = &jobs.ContentFetchError{
		URL: "https://jobs.example.com/1", Kind: jobs.FetchHTTPError, StatusCode: 404, Attempts: 1,
	}
	w := f.workflow(t, Options{})

	got, summary, err := w.Run(context.Background(), "golang", "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, f.ai.classifyCalls)
	assert.Equal(t, 1, summary.Statuses[StatusNotIndividual])
}

func TestAIFailureSkipsOnlyThatJob(t *testing.T) {
	f := newFixture("https://jobs.example.com/1", "https://jobs.example.com/2")
	f.ai.fitErr = []error{ai.NewError("scripted", ai.KindFit, errors.New("model overloaded"))}
	w := f.workflow(t, Options{})

	got, summary, err := w.Run(context.Background(), "golang", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://jobs.example.com/2", got[0].URL)
	assert.Equal(t, 1, summary.Statuses[StatusAIFailure])
	assert.Equal(t, 1, summary.Persisted())
	assert.Equal(t, 1, summary.Skipped())
}

func TestMalformedAnalysisSkipsJob(t *testing.T) {
	f := newFixture("https://jobs.example.com/1")
	f.ai.fit = []string{"not json"}
	w := f.workflow(t, Options{})

	got, err := w.SearchAndProcessJobs(context.Background(), "golang", "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, f.repo.rows)
}

func TestAlreadyProcessedSkipsFetchAndAI(t *testing.T) {
	f := newFixture("https://jobs.example.com/1")
	w := f.workflow(t, Options{})

	_, err := w.SearchAndProcessJobs(context.Background(), "golang", "")
	require.NoError(t, err)
	require.Len(t, f.fetcher.fetched, 1)

	got, summary, err := w.Run(context.Background(), "golang", "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Len(t, f.fetcher.fetched, 1, "known url must not be fetched again")
	assert.Equal(t, 1, f.ai.fitCalls)
	assert.Equal(t, 1, summary.Statuses[StatusDuplicate])
}

func TestSearchFailureAbortsRun(t *testing.T) {
	f := newFixture()
	f.searcher.err = &jobs.SearchAPIError{StatusCode: 403, Reason: "api key or quota issue"}
	w := f.workflow(t, Options{})

	got, err := w.SearchAndProcessJobs(context.Background(), "golang", "")
	require.Error(t, err)
	assert.Nil(t, got)

	var apiErr *jobs.SearchAPIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 403, apiErr.StatusCode)
}

func TestParseFailureIsParsingError(t *testing.T) {
	f := newFixture()
	f.searcher.results = nil
	w := f.workflow(t, Options{})

	_, err := w.SearchAndProcessJobs(context.Background(), "golang", "")
	var parseErr *jobs.JobParsingError
	assert.True(t, errors.As(err, &parseErr), "got %v", err)
}

func TestSaveFailureSkipsJob(t *testing.T) {
	f := newFixture("https://jobs.example.com/1")
	f.repo.saveErr = errors.New("disk full")
	f.repo.statsErr = errors.New("disk full")
	w := f.workflow(t, Options{})

	got, summary, err := w.Run(context.Background(), "golang", "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, summary.Statuses[StatusFailed])
}

func TestSkipUnchangedContent(t *testing.T) {
	url := "https://jobs.example.com/1"
	f := newFixture(url)
	content := f.fetcher.content[url]
	f.repo.rows[url] = &jobs.ProcessedJob{URL: url, ContentHash: analyzer.ContentHash(content)}

	w := f.workflow(t, Options{SkipUnchangedContent: true})

	outcome := w.Reprocess(context.Background(), url)
	assert.Equal(t, StatusUnchanged, outcome.Status)
	assert.Equal(t, 0, f.ai.fitCalls)

	f.fetcher.content[url] = content + " Updated."
	outcome = w.Reprocess(context.Background(), url)
	assert.Equal(t, StatusPersisted, outcome.Status)
	assert.Equal(t, 1, f.ai.fitCalls)
}

func TestReprocessUnknownURL(t *testing.T) {
	f := newFixture()
	url := "https://jobs.example.com/new"
	f.fetcher.content[url] = "Staff Go engineer wanted"
	w := f.workflow(t, Options{})

	require.True(t, w.ReprocessJob(context.Background(), url))

	row := f.repo.rows[url]
	require.NotNil(t, row)
	assert.Equal(t, reprocessJobTitle, row.Title)
	assert.Equal(t, jobs.UnknownPostedTime, row.PostedTime)
	assert.Equal(t, jobs.DefaultEmploymentType, row.EmploymentType)
}

func TestReprocessKeepsStoredMetadata(t *testing.T) {
	f := newFixture()
	url := "https://jobs.example.com/known"
	f.fetcher.content[url] = "Go engineer"
	f.repo.rows[url] = &jobs.ProcessedJob{
		URL: url, Title: "Platform Engineer", Company: "Initech",
		Recommendation: jobs.RecommendSkip, FitScore: 1, Confidence: 1,
	}
	f.ai.fit = []string{"```json\n" + applyJSON + "\n```"}
	w := f.workflow(t, Options{})

	require.True(t, w.ReprocessJob(context.Background(), url))

	row := f.repo.rows[url]
	assert.Equal(t, "Platform Engineer", row.Title)
	assert.Equal(t, "Initech", row.Company)
	assert.Equal(t, jobs.RecommendApply, row.Recommendation)
}

func TestReprocessNotIndividual(t *testing.T) {
	f := newFixture()
	f.ai.classification = "NONE"
	url := "https://jobs.example.com/gone"
	f.fetcher.content[url] = "404 page"
	w := f.workflow(t, Options{})

	assert.False(t, w.ReprocessJob(context.Background(), url))
	assert.Empty(t, f.repo.rows)
}

func TestConcurrentRunKeepsSearchOrder(t *testing.T) {
	urls := []string{
		"https://jobs.example.com/1",
		"https://jobs.example.com/2",
		"https://jobs.example.com/3",
		"https://jobs.example.com/4",
		"https://jobs.example.com/5",
	}
	f := newFixture(urls...)
	w := f.workflow(t, Options{Concurrency: 3})

	got, err := w.SearchAndProcessJobs(context.Background(), "golang", "")
	require.NoError(t, err)
	require.Len(t, got, len(urls))
	for i, job := range got {
		assert.Equal(t, urls[i], job.URL)
	}
}

func TestCancelledContextFailsJobs(t *testing.T) {
	f := newFixture("https://jobs.example.com/1")
	w := f.workflow(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, summary, err := w.Run(ctx, "golang", "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, summary.Statuses[StatusFailed])
	assert.Empty(t, f.fetcher.fetched)
}

func TestFiltersRunBeforeFetch(t *testing.T) {
	f := newFixture("https://jobs.example.com/1", "https://jobs.example.com/2")
	w := f.workflow(t, Options{Filters: []filtering.Filter{filtering.NewExcludedCompanies([]string{"acme"})}})

	got, summary, err := w.Run(context.Background(), "golang", "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 2, summary.Found)
	assert.Equal(t, 0, summary.Parsed)
	assert.Empty(t, f.fetcher.fetched)
}

func TestRateLimitedFetchSkipsJob(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := newFixture("https://jobs.example.com/1")
	log := zaptest.NewLogger(t)
	fetcher := content.New(content.Options{BaseURL: srv.URL, MaxRetries: 3, BackoffUnit: time.Millisecond}, log)

	w := New(Deps{
		Searcher:   f.searcher,
		Parser:     parser.New(log),
		Analyzer:   analyzer.New(fetcher, f.ai, log, 200),
		Repository: f.repo,
		Logger:     log,
	}, Options{})

	got, summary, err := w.Run(context.Background(), "golang", "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 0, f.ai.classifyCalls)
	assert.Equal(t, 0, f.ai.fitCalls)
	assert.Equal(t, 1, summary.Statuses[StatusNotIndividual])
	assert.Empty(t, f.repo.rows)
}

func TestRepeatedURLProcessedOnce(t *testing.T) {
	url := "https://jobs.example.com/1"
	f := newFixture(url, url, "https://jobs.example.com/2")
	w := f.workflow(t, Options{Concurrency: 3})

	got, summary, err := w.Run(context.Background(), "golang", "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, url, got[0].URL)
	assert.Equal(t, 3, summary.Found)
	assert.Equal(t, 2, summary.Parsed)
	assert.Len(t, f.fetcher.fetched, 2)
	assert.Equal(t, 2, f.ai.fitCalls)
}
