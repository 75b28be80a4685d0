// Package config resolves the jobseekr settings from the config file, the
// environment and flags into one explicit Config value.
package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/spigell/jobseekr/internal/jobs"
)

const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"

	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
)

type Config struct {
	Search   SearchConfig   `mapstructure:"search"`
	Content  ContentConfig  `mapstructure:"content"`
	AI       AIConfig       `mapstructure:"ai"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Profile  ProfileConfig  `mapstructure:"profile"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
}

type SearchConfig struct {
	BaseURL             string        `mapstructure:"base-url" validate:"required,url"`
	APIKey              string        `mapstructure:"api-key" json:"-"`
	APIKeyFile          string        `mapstructure:"api-key-file"`
	CX                  string        `mapstructure:"cx"`
	DefaultDateRestrict string        `mapstructure:"default-date-restrict"`
	MaxResults          int           `mapstructure:"max-results" validate:"min=1,max=10"`
	Pages               int           `mapstructure:"pages" validate:"min=1,max=10"`
	Sort                string        `mapstructure:"sort"`
	Timeout             time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type ContentConfig struct {
	BaseURL           string        `mapstructure:"base-url" validate:"required,url"`
	APIKey            string        `mapstructure:"api-key" json:"-"`
	APIKeyFile        string        `mapstructure:"api-key-file"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries        int           `mapstructure:"max-retries" validate:"min=1"`
	BackoffUnit       time.Duration `mapstructure:"backoff-unit" validate:"gte=0"`
	RequestsPerMinute int           `mapstructure:"requests-per-minute" validate:"gte=0"`
	StripHTML         bool          `mapstructure:"strip-html"`
}

type AIConfig struct {
	Provider     string          `mapstructure:"provider" validate:"oneof=ollama anthropic gemini"`
	Model        string          `mapstructure:"model"`
	MaxLogLength int             `mapstructure:"max-log-length"`
	Ollama       OllamaConfig    `mapstructure:"ollama" validate:"-"`
	Anthropic    AnthropicConfig `mapstructure:"anthropic"`
	Gemini       GeminiConfig    `mapstructure:"gemini"`
}

type OllamaConfig struct {
	BaseURL             string        `mapstructure:"base-url" validate:"required,url"`
	ClassificationModel string        `mapstructure:"classification-model" validate:"required"`
	FitModel            string        `mapstructure:"fit-model" validate:"required"`
	Temperature         float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens           int           `mapstructure:"max-tokens" validate:"gte=0"`
	Timeout             time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type AnthropicConfig struct {
	APIKey              string  `mapstructure:"api-key" json:"-"`
	APIKeyFile          string  `mapstructure:"api-key-file"`
	BaseURL             string  `mapstructure:"base-url" validate:"omitempty,url"`
	Model               string  `mapstructure:"model" validate:"required"`
	ClassificationModel string  `mapstructure:"classification-model"`
	MaxTokens           int     `mapstructure:"max-tokens" validate:"min=1"`
	Temperature         float64 `mapstructure:"temperature" validate:"gte=0,lte=1"`
}

type GeminiConfig struct {
	APIKey              string `mapstructure:"api-key" json:"-"`
	APIKeyFile          string `mapstructure:"api-key-file"`
	Model               string `mapstructure:"model" validate:"required"`
	ClassificationModel string `mapstructure:"classification-model"`
	MaxRetries          int    `mapstructure:"max-retries" validate:"gte=0"`
}

type DatabaseConfig struct {
	Type string `mapstructure:"type" validate:"oneof=sqlite postgres"`
	Path string `mapstructure:"path" validate:"required_if=Type sqlite"`
	URL  string `mapstructure:"url" json:"-" validate:"required_if=Type postgres"`
}

type CacheConfig struct {
	RedisURL string `mapstructure:"redis-url" json:"-"`
	Key      string `mapstructure:"key"`
}

type ProfileConfig struct {
	Resume          string `mapstructure:"resume"`
	ResumeFile      string `mapstructure:"resume-file"`
	Preferences     string `mapstructure:"preferences"`
	PreferencesFile string `mapstructure:"preferences-file"`
}

type WorkflowConfig struct {
	Terms                []string `mapstructure:"terms"`
	Concurrency          int      `mapstructure:"concurrency" validate:"min=1,max=32"`
	SkipUnchangedContent bool     `mapstructure:"skip-unchanged-content"`
	Schedule             string   `mapstructure:"schedule"`
	ExcludeCompanies     []string `mapstructure:"exclude-companies"`
	ExcludeFile          string   `mapstructure:"exclude-file"`
	RemoteOnly           bool     `mapstructure:"remote-only"`
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("search.base-url", "https://www.googleapis.com/customsearch/v1")
	v.SetDefault("search.default-date-restrict", "d3")
	v.SetDefault("search.max-results", 10)
	v.SetDefault("search.pages", 1)
	v.SetDefault("search.sort", "date")
	v.SetDefault("search.timeout", 15*time.Second)

	v.SetDefault("content.base-url", "https://r.jina.ai")
	v.SetDefault("content.timeout", 30*time.Second)
	v.SetDefault("content.max-retries", 3)
	v.SetDefault("content.backoff-unit", 2*time.Second)
	v.SetDefault("content.requests-per-minute", 0)
	v.SetDefault("content.strip-html", true)

	v.SetDefault("ai.provider", ProviderOllama)
	v.SetDefault("ai.max-log-length", 200)
	v.SetDefault("ai.ollama.base-url", "http://localhost:11434")
	v.SetDefault("ai.ollama.classification-model", "qwen2.5:14b-instruct-q4_K_M")
	v.SetDefault("ai.ollama.fit-model", "mistral-small:24b")
	v.SetDefault("ai.ollama.temperature", 0.5)
	v.SetDefault("ai.ollama.max-tokens", 20000)
	v.SetDefault("ai.ollama.timeout", 5*time.Minute)
	v.SetDefault("ai.anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("ai.anthropic.max-tokens", 20000)
	v.SetDefault("ai.anthropic.temperature", 0.5)
	v.SetDefault("ai.gemini.model", "gemini-2.5-pro")
	v.SetDefault("ai.gemini.max-retries", 3)

	v.SetDefault("database.type", DatabaseSQLite)
	v.SetDefault("database.path", "jobs.db")

	v.SetDefault("cache.key", "jobseekr:processed")

	v.SetDefault("workflow.concurrency", 1)
	v.SetDefault("workflow.skip-unchanged-content", false)
}

var envBindings = map[string]string{
	"search.api-key":       "GOOGLE_API_KEY",
	"search.cx":            "GOOGLE_CSE_ID",
	"content.api-key":      "JINA_API_KEY",
	"ai.provider":          "AI_PROVIDER",
	"ai.model":             "AI_MODEL",
	"ai.ollama.base-url":   "OLLAMA_HOST",
	"ai.anthropic.api-key": "ANTHROPIC_API_KEY",
	"ai.gemini.api-key":    "GEMINI_API_KEY",
	"database.type":        "DATABASE_TYPE",
	"database.path":        "DATABASE_PATH",
	"database.url":         "DATABASE_URL",
	"cache.redis-url":      "REDIS_URL",
}

// BindEnv maps the supported environment variables onto config keys.
func BindEnv(v *viper.Viper) error {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return errors.Wrapf(err, "binding %s environment variable", env)
		}
	}
	return nil
}

// Load decodes v into a Config, applies the ai.model override and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, jobs.NewConfigurationError("", "check the config file syntax", err)
	}

	cfg.applyModelOverride()
	cfg.AI.Ollama.BaseURL = withScheme(cfg.AI.Ollama.BaseURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// withScheme turns an OLLAMA_HOST style host:port into an http URL.
func withScheme(host string) string {
	host = strings.TrimSpace(host)
	if host == "" || strings.Contains(host, "://") {
		return host
	}
	return "http://" + host
}

func (c *Config) applyModelOverride() {
	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	c.Database.Type = strings.ToLower(strings.TrimSpace(c.Database.Type))
	if c.Database.Type == "postgresql" {
		c.Database.Type = DatabasePostgres
	}

	model := strings.TrimSpace(c.AI.Model)
	if model == "" {
		return
	}

	switch c.AI.Provider {
	case ProviderOllama:
		c.AI.Ollama.FitModel = model
	case ProviderAnthropic:
		c.AI.Anthropic.Model = model
	case ProviderGemini:
		c.AI.Gemini.Model = model
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// Validate checks the static constraints of the configuration. The ollama
// section is only checked when ollama is the selected provider. Credentials
// are checked later, by the components that need them.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return validationError("", err)
	}
	if c.AI.Provider == ProviderOllama {
		if err := validate.Struct(&c.AI.Ollama); err != nil {
			return validationError("ai.ollama.", err)
		}
	}
	return nil
}

func validationError(prefix string, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return jobs.NewConfigurationError("", "", err)
	}

	first := fieldErrs[0]
	key := first.Namespace()
	if i := strings.Index(key, "."); i >= 0 {
		key = key[i+1:]
	}
	key = prefix + key

	return jobs.NewConfigurationError(
		key,
		"fix "+key+" in the config file or its environment variable",
		errors.Newf("failed %q rule (value %v)", first.Tag(), first.Value()),
	)
}

// ClassificationModel returns the model used for page classification by the selected provider.
func (c *AIConfig) ClassificationModel() string {
	switch c.Provider {
	case ProviderAnthropic:
		return firstNonEmpty(c.Anthropic.ClassificationModel, c.Anthropic.Model)
	case ProviderGemini:
		return firstNonEmpty(c.Gemini.ClassificationModel, c.Gemini.Model)
	default:
		return c.Ollama.ClassificationModel
	}
}

// FitModel returns the model used for fit scoring by the selected provider.
func (c *AIConfig) FitModel() string {
	switch c.Provider {
	case ProviderAnthropic:
		return c.Anthropic.Model
	case ProviderGemini:
		return c.Gemini.Model
	default:
		return c.Ollama.FitModel
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
