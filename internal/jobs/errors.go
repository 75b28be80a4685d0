package jobs

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrMalformedAnalysis marks a fit-scoring response that is not a usable JSON analysis.
	ErrMalformedAnalysis = errors.New("malformed fit analysis")
	// ErrUnsupportedAnalysis is returned for analysis kinds a backend does not know.
	ErrUnsupportedAnalysis = errors.New("unsupported analysis kind")
	// ErrNotFound is returned by repositories when no row matches the URL.
	ErrNotFound = errors.New("processed job not found")
)

// SearchAPIError is a failure of the search backend. It aborts the whole run.
type SearchAPIError struct {
	StatusCode int
	Reason     string
	Body       string
	Err        error
}

func (e *SearchAPIError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("search api: %s (HTTP %d): %s", e.Reason, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("search api: %s (HTTP %d)", e.Reason, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("search api: %s: %v", e.Reason, e.Err)
	default:
		return "search api: " + e.Reason
	}
}

func (e *SearchAPIError) Unwrap() error { return e.Err }

// FetchErrorKind tells why content could not be fetched.
type FetchErrorKind string

const (
	FetchTimeout     FetchErrorKind = "timeout"
	FetchRateLimited FetchErrorKind = "rate-limited"
	FetchHTTPError   FetchErrorKind = "http-error"
	FetchNetwork     FetchErrorKind = "network-error"
)

// ContentFetchError is returned once the fetcher gave up on a URL. It is final:
// retries have already been spent.
type ContentFetchError struct {
	URL        string
	Kind       FetchErrorKind
	StatusCode int
	Attempts   int
	Err        error
}

func (e *ContentFetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s after %d attempt(s)", e.URL, e.Kind, e.Attempts)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ContentFetchError) Unwrap() error { return e.Err }

// AIAnalysisError wraps a failed model call.
type AIAnalysisError struct {
	Provider string
	Kind     string
	Err      error
}

func (e *AIAnalysisError) Error() string {
	return fmt.Sprintf("%s analysis (%s) failed: %v", e.Provider, e.Kind, e.Err)
}

func (e *AIAnalysisError) Unwrap() error { return e.Err }

// JobParsingError means the parse step as a whole failed. Single malformed items
// are dropped without it.
type JobParsingError struct {
	Err error
}

func (e *JobParsingError) Error() string {
	return fmt.Sprintf("parse search results: %v", e.Err)
}

func (e *JobParsingError) Unwrap() error { return e.Err }

// ConfigurationError is raised at startup for missing or invalid settings.
type ConfigurationError struct {
	Key string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration %s: %v", e.Key, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError builds a ConfigurationError with a user-facing hint attached.
func NewConfigurationError(key, hint string, err error) error {
	if hint != "" {
		err = errors.WithHint(err, hint)
	}
	return &ConfigurationError{Key: key, Err: err}
}
