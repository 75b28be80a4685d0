// Package content downloads the readable text of a posting page through the
// Jina reader proxy.
package content

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/jobseekr/internal/jobs"
	"github.com/spigell/jobseekr/internal/utils"
)

const (
	defaultBaseURL     = "https://r.jina.ai"
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 3
	defaultBackoffUnit = 2 * time.Second
)

type Options struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
	// BackoffUnit is the 429 wait step. Zero or less means the default of 2s.
	BackoffUnit time.Duration
	// RequestsPerMinute caps outgoing requests across all goroutines. Zero disables the cap.
	RequestsPerMinute int
	StripHTML         bool
}

type Fetcher struct {
	baseURL     string
	apiKey      string
	maxRetries  int
	backoffUnit time.Duration
	stripHTML   bool
	limiter     *rate.Limiter
	cleaner     *Cleaner
	logger      *zap.Logger
	sleep       func(ctx context.Context, d time.Duration) error

	HTTPClient *http.Client
}

func New(opts Options, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	retries := opts.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	backoff := opts.BackoffUnit
	if backoff <= 0 {
		backoff = defaultBackoffUnit
	}

	f := &Fetcher{
		baseURL:     base,
		apiKey:      strings.TrimSpace(opts.APIKey),
		maxRetries:  retries,
		backoffUnit: backoff,
		stripHTML:   opts.StripHTML,
		cleaner:     NewCleaner(),
		logger:      logger,
		sleep:       utils.WaitFor,
		HTTPClient:  &http.Client{Timeout: timeout},
	}

	if opts.RequestsPerMinute > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), 1)
	}

	return f
}

// Fetch returns the page text for pageURL. A 429 answer is retried after
// (attempt+1) backoff units, timeouts and network errors are retried at once,
// any other non-200 status is final. The last attempt never waits. Once retries are spent a
// *jobs.ContentFetchError carries the kind of the last failure.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	target := f.baseURL + "/" + pageURL
	log := f.logger.With(zap.String("url", pageURL))

	var last *jobs.ContentFetchError
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return "", errors.Wrap(err, "waiting for rate limiter")
			}
		}

		text, status, err := f.get(ctx, target)
		if ctx.Err() != nil {
			return "", errors.Wrapf(ctx.Err(), "fetch %s", pageURL)
		}

		switch {
		case err != nil:
			kind := jobs.FetchNetwork
			if isTimeout(err) {
				kind = jobs.FetchTimeout
			}
			last = &jobs.ContentFetchError{URL: pageURL, Kind: kind, Attempts: attempt + 1, Err: err}
			log.Debug("content fetch failed, retrying", zap.Int("attempt", attempt+1), zap.String("kind", string(kind)), zap.Error(err))
			continue

		case status == http.StatusOK:
			if f.stripHTML && LooksLikeHTML(text) {
				cleaned, cerr := f.cleaner.Text(text)
				if cerr != nil {
					log.Debug("html cleanup failed, using raw body", zap.Error(cerr))
				} else {
					text = cleaned
				}
			}
			log.Debug("content fetched", zap.Int("attempt", attempt+1), zap.Int("length", len(text)))
			return text, nil

		case status == http.StatusTooManyRequests:
			last = &jobs.ContentFetchError{URL: pageURL, Kind: jobs.FetchRateLimited, StatusCode: status, Attempts: attempt + 1}
			if attempt+1 >= f.maxRetries {
				continue
			}
			wait := time.Duration(attempt+1) * f.backoffUnit
			log.Info("content fetch rate limited, backing off", zap.Int("attempt", attempt+1), zap.Duration("wait", wait))
			if err := f.sleep(ctx, wait); err != nil {
				return "", errors.Wrapf(err, "fetch %s", pageURL)
			}
			continue

		default:
			return "", &jobs.ContentFetchError{URL: pageURL, Kind: jobs.FetchHTTPError, StatusCode: status, Attempts: attempt + 1}
		}
	}

	return "", last
}

func (f *Fetcher) get(ctx context.Context, target string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", 0, errors.Wrap(err, "build request")
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", resp.StatusCode, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, errors.Wrap(err, "read body")
	}

	return string(body), resp.StatusCode, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
