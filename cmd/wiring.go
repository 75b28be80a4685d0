package cmd

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/spigell/jobseekr/internal/ai"
	"github.com/spigell/jobseekr/internal/ai/anthropic"
	"github.com/spigell/jobseekr/internal/ai/gemini"
	"github.com/spigell/jobseekr/internal/ai/ollama"
	"github.com/spigell/jobseekr/internal/analyzer"
	"github.com/spigell/jobseekr/internal/config"
	"github.com/spigell/jobseekr/internal/content"
	"github.com/spigell/jobseekr/internal/filtering"
	"github.com/spigell/jobseekr/internal/jobs"
	"github.com/spigell/jobseekr/internal/logger"
	"github.com/spigell/jobseekr/internal/parser"
	"github.com/spigell/jobseekr/internal/search"
	"github.com/spigell/jobseekr/internal/secrets"
	"github.com/spigell/jobseekr/internal/store"
	"github.com/spigell/jobseekr/internal/workflow"
)

// repository bundles the SQL store with the optional redis cache in front of it.
type repository struct {
	jobs.Repository

	sql    *store.SQLStore
	cached *store.CachedRepository
}

// Reset drops every stored job and the processed URL cache.
func (r *repository) Reset(ctx context.Context) error {
	if err := r.sql.Reset(ctx); err != nil {
		return err
	}
	if r.cached != nil {
		return r.cached.Forget(ctx)
	}
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config, log *zap.Logger) (*repository, error) {
	sqlStore, err := store.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	repo := &repository{Repository: sqlStore, sql: sqlStore}
	if cfg.Cache.RedisURL == "" {
		return repo, nil
	}

	client, err := store.NewRedisClient(ctx, cfg.Cache.RedisURL)
	if err != nil {
		// the cache only saves lookups, the database stays authoritative
		log.Warn("redis cache disabled", logger.ErrorFields(err)...)
		return repo, nil
	}

	repo.cached = store.NewCachedRepository(sqlStore, client, cfg.Cache.Key, log)
	repo.Repository = repo.cached
	log.Debug("redis cache enabled", zap.String("key", cfg.Cache.Key))
	return repo, nil
}

func newSearchClient(cfg *config.Config, log *zap.Logger) (*search.Client, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "search api key",
		Value: cfg.Search.APIKey,
		File:  cfg.Search.APIKeyFile,
		Hint:  "set GOOGLE_API_KEY or search.api-key-file",
	})
	if err != nil {
		return nil, jobs.NewConfigurationError("search.api-key", "", err)
	}

	cx, err := secrets.Load(secrets.Source{
		Name:  "search engine id",
		Value: cfg.Search.CX,
		Hint:  "set GOOGLE_CSE_ID or search.cx",
	})
	if err != nil {
		return nil, jobs.NewConfigurationError("search.cx", "", err)
	}

	return search.New(search.Options{
		APIKey:     apiKey,
		CX:         cx,
		APIURL:     cfg.Search.BaseURL,
		Sort:       cfg.Search.Sort,
		MaxResults: cfg.Search.MaxResults,
		Pages:      cfg.Search.Pages,
		Timeout:    cfg.Search.Timeout,
	}, log.Named("search")), nil
}

func newFetcher(cfg *config.Config, log *zap.Logger) (*content.Fetcher, error) {
	// the reader proxy works without a key, it only raises the rate limit
	apiKey, err := secrets.Optional(secrets.Source{
		Name:  "content api key",
		Value: cfg.Content.APIKey,
		File:  cfg.Content.APIKeyFile,
	})
	if err != nil {
		return nil, jobs.NewConfigurationError("content.api-key", "", err)
	}

	return content.New(content.Options{
		BaseURL:           cfg.Content.BaseURL,
		APIKey:            apiKey,
		Timeout:           cfg.Content.Timeout,
		MaxRetries:        cfg.Content.MaxRetries,
		BackoffUnit:       cfg.Content.BackoffUnit,
		RequestsPerMinute: cfg.Content.RequestsPerMinute,
		StripHTML:         cfg.Content.StripHTML,
	}, log.Named("content")), nil
}

// newAIService builds the configured backend wrapped with response logging.
func newAIService(ctx context.Context, cfg *config.Config, log *zap.Logger) (ai.Service, error) {
	models := ai.Models{
		Classification: cfg.AI.ClassificationModel(),
		Fit:            cfg.AI.FitModel(),
	}
	aiLog := logger.WithAI(log.Named("ai"), cfg.AI.Provider, models.Fit)

	var (
		service ai.Service
		err     error
	)

	switch cfg.AI.Provider {
	case config.ProviderOllama:
		service = ollama.New(ollama.Options{
			BaseURL:     cfg.AI.Ollama.BaseURL,
			Models:      models,
			Temperature: cfg.AI.Ollama.Temperature,
			MaxTokens:   cfg.AI.Ollama.MaxTokens,
			Timeout:     cfg.AI.Ollama.Timeout,
		})
	case config.ProviderAnthropic:
		var apiKey string
		apiKey, err = secrets.Load(secrets.Source{
			Name:  "anthropic api key",
			Value: cfg.AI.Anthropic.APIKey,
			File:  cfg.AI.Anthropic.APIKeyFile,
			Hint:  "set ANTHROPIC_API_KEY or ai.anthropic.api-key-file",
		})
		if err == nil {
			service, err = anthropic.New(anthropic.Options{
				APIKey:      apiKey,
				BaseURL:     cfg.AI.Anthropic.BaseURL,
				Models:      models,
				MaxTokens:   cfg.AI.Anthropic.MaxTokens,
				Temperature: cfg.AI.Anthropic.Temperature,
			})
		}
	case config.ProviderGemini:
		var apiKey string
		apiKey, err = secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.AI.Gemini.APIKey,
			File:  cfg.AI.Gemini.APIKeyFile,
			Hint:  "set GEMINI_API_KEY or ai.gemini.api-key-file",
		})
		if err == nil {
			service, err = gemini.NewGenerator(ctx, gemini.Options{
				APIKey:     apiKey,
				Models:     models,
				MaxRetries: cfg.AI.Gemini.MaxRetries,
			}, aiLog)
		}
	default:
		err = errors.Newf("unsupported ai provider %q", cfg.AI.Provider)
	}

	if err != nil {
		return nil, jobs.NewConfigurationError("ai.provider", "", errors.Wrapf(err, "creating %s service", cfg.AI.Provider))
	}

	aiLog.Info("ai service configured", zap.String("classification_model", models.Classification))
	return ai.WithLogging(service, aiLog, cfg.AI.MaxLogLength), nil
}

type profile struct {
	resume      string
	preferences string
}

func loadProfile(cfg *config.Config) (profile, error) {
	resume, err := secrets.Load(secrets.Source{
		Name:  "resume",
		Value: cfg.Profile.Resume,
		File:  cfg.Profile.ResumeFile,
		Hint:  "set profile.resume-file to a text or markdown resume",
	})
	if err != nil {
		return profile{}, jobs.NewConfigurationError("profile.resume", "", err)
	}

	preferences, err := secrets.Optional(secrets.Source{
		Name:  "preferences",
		Value: cfg.Profile.Preferences,
		File:  cfg.Profile.PreferencesFile,
	})
	if err != nil {
		return profile{}, jobs.NewConfigurationError("profile.preferences", "", err)
	}

	return profile{resume: resume, preferences: preferences}, nil
}

// pipeline is everything a run or a reprocess needs.
type pipeline struct {
	workflow *workflow.Workflow
	repo     *repository
}

func (p *pipeline) Close() error { return p.repo.Close() }

type pipelineOptions struct {
	concurrency   int
	skipUnchanged bool
	needSearch    bool
}

func newPipeline(ctx context.Context, cfg *config.Config, log *zap.Logger, opts pipelineOptions) (*pipeline, error) {
	prof, err := loadProfile(cfg)
	if err != nil {
		return nil, err
	}

	fetcher, err := newFetcher(cfg, log)
	if err != nil {
		return nil, err
	}

	var searcher workflow.Searcher
	if opts.needSearch {
		client, err := newSearchClient(cfg, log)
		if err != nil {
			return nil, err
		}
		searcher = client
	}

	service, err := newAIService(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	repo, err := openRepository(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	wf := workflow.New(workflow.Deps{
		Searcher:   searcher,
		Parser:     parser.New(log.Named("parser")),
		Analyzer:   analyzer.New(fetcher, service, log.Named("analyzer"), cfg.AI.MaxLogLength),
		Repository: repo,
		Logger:     log.Named("workflow"),
	}, workflow.Options{
		Resume:               prof.resume,
		Preferences:          prof.preferences,
		SkipUnchangedContent: opts.skipUnchanged,
		Concurrency:          opts.concurrency,
		Filters: filtering.FromConfig(filtering.Config{
			ExcludeCompanies: cfg.Workflow.ExcludeCompanies,
			ExcludeFile:      cfg.Workflow.ExcludeFile,
			RemoteOnly:       cfg.Workflow.RemoteOnly,
		}),
	})

	return &pipeline{workflow: wf, repo: repo}, nil
}
