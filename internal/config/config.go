package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/citecheck/internal/record"
	"github.com/dgallion1/citecheck/internal/verify"
	"github.com/spf13/viper"
)

// Generator providers.
const (
	GeneratorAnthropic = "anthropic"
	GeneratorOpenAI    = "openai"
	GeneratorNone      = "none"
)

type Config struct {
	Port string `mapstructure:"port" yaml:"port"`

	// Auth for the HTTP API
	APIKey string `mapstructure:"api_key" yaml:"api_key"`

	// Candidate generator
	Generator       string `mapstructure:"generator" yaml:"generator"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key" yaml:"anthropic_api_key"`
	AnthropicModel  string `mapstructure:"anthropic_model" yaml:"anthropic_model"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key" yaml:"openai_api_key"`
	OpenAIModel     string `mapstructure:"openai_model" yaml:"openai_model"`
	OpenAIBaseURL   string `mapstructure:"openai_base_url" yaml:"openai_base_url"`

	// Worker pool
	WorkerCount           int     `mapstructure:"worker_count" yaml:"worker_count"`
	MaxQueueSize          int     `mapstructure:"max_queue_size" yaml:"max_queue_size"`
	VerifyWorkers         int     `mapstructure:"verify_workers" yaml:"verify_workers"`
	MaxConcurrentGenerate int     `mapstructure:"max_concurrent_generate" yaml:"max_concurrent_generate"`
	GenerateRPS           float64 `mapstructure:"generate_rps" yaml:"generate_rps"`

	// Upload limits
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`

	// Chunking
	ChunkTokens int `mapstructure:"chunk_tokens" yaml:"chunk_tokens"`

	// Job state
	JobTTL time.Duration `mapstructure:"job_ttl" yaml:"job_ttl"`

	// PDF
	PDFFallbackPdftotext bool `mapstructure:"pdf_fallback_pdftotext" yaml:"pdf_fallback_pdftotext"`

	// Verification
	Policy         string  `mapstructure:"policy" yaml:"policy"`
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold" yaml:"fuzzy_threshold"`
	FuzzyStrategy  string  `mapstructure:"fuzzy_strategy" yaml:"fuzzy_strategy"`
	MinQuoteLength int     `mapstructure:"min_quote_length" yaml:"min_quote_length"`
	RequireSection bool    `mapstructure:"require_section" yaml:"require_section"`
	// RejectInjection drops candidates whose wording looks like a prompt
	// injection. Off by default since manuals say "act as" legitimately.
	RejectInjection bool `mapstructure:"reject_injection" yaml:"reject_injection"`

	// Page map cache; an empty dir keeps it in memory only
	CacheDir string        `mapstructure:"cache_dir" yaml:"cache_dir"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:                  "8090",
		Generator:             GeneratorAnthropic,
		AnthropicModel:        "claude-sonnet-4-5-20250929",
		OpenAIModel:           "gpt-4o-mini",
		WorkerCount:           4,
		MaxQueueSize:          100,
		VerifyWorkers:         8,
		MaxConcurrentGenerate: 5,
		MaxUploadBytes:        52428800, // 50MB
		ChunkTokens:           3000,
		JobTTL:                time.Hour,
		PDFFallbackPdftotext:  true,
		Policy:                string(record.PolicyStrict),
		FuzzyThreshold:        verify.DefaultThreshold,
		FuzzyStrategy:         verify.StrategyLevenshtein,
		MinQuoteLength:        verify.DefaultMinQuoteLength,
		CacheTTL:              24 * time.Hour,
	}
}

// Setup registers defaults and environment bindings on v. Environment
// variables use the CITECHECK_ prefix; provider keys also fall back to the
// providers' conventional variable names.
func Setup(v *viper.Viper) {
	def := Default()
	v.SetDefault("port", def.Port)
	v.SetDefault("api_key", "")
	v.SetDefault("generator", def.Generator)
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("anthropic_model", def.AnthropicModel)
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_model", def.OpenAIModel)
	v.SetDefault("openai_base_url", "")
	v.SetDefault("worker_count", def.WorkerCount)
	v.SetDefault("max_queue_size", def.MaxQueueSize)
	v.SetDefault("verify_workers", def.VerifyWorkers)
	v.SetDefault("max_concurrent_generate", def.MaxConcurrentGenerate)
	v.SetDefault("generate_rps", def.GenerateRPS)
	v.SetDefault("max_upload_bytes", def.MaxUploadBytes)
	v.SetDefault("chunk_tokens", def.ChunkTokens)
	v.SetDefault("job_ttl", def.JobTTL)
	v.SetDefault("pdf_fallback_pdftotext", def.PDFFallbackPdftotext)
	v.SetDefault("policy", def.Policy)
	v.SetDefault("fuzzy_threshold", def.FuzzyThreshold)
	v.SetDefault("fuzzy_strategy", def.FuzzyStrategy)
	v.SetDefault("min_quote_length", def.MinQuoteLength)
	v.SetDefault("require_section", def.RequireSection)
	v.SetDefault("reject_injection", def.RejectInjection)
	v.SetDefault("cache_dir", "")
	v.SetDefault("cache_ttl", def.CacheTTL)

	v.SetEnvPrefix("CITECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("port", "CITECHECK_PORT", "PORT")
	_ = v.BindEnv("anthropic_api_key", "CITECHECK_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("openai_api_key", "CITECHECK_OPENAI_API_KEY", "OPENAI_API_KEY")
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	v := viper.New()
	Setup(v)
	return FromViper(v)
}

// FromViper decodes the effective configuration held by v and repairs
// out-of-range values the same way the defaults would.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	def := Default()
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.VerifyWorkers <= 0 {
		cfg.VerifyWorkers = def.VerifyWorkers
	}
	if cfg.MaxConcurrentGenerate <= 0 {
		cfg.MaxConcurrentGenerate = def.MaxConcurrentGenerate
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.ChunkTokens <= 0 {
		cfg.ChunkTokens = def.ChunkTokens
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = def.JobTTL
	}
	if cfg.MinQuoteLength <= 0 {
		cfg.MinQuoteLength = def.MinQuoteLength
	}
	cfg.Generator = strings.ToLower(strings.TrimSpace(cfg.Generator))
	cfg.Policy = strings.ToLower(strings.TrimSpace(cfg.Policy))
	return cfg, nil
}

// Validate checks settings every entry point depends on.
func (c Config) Validate() error {
	if _, err := record.ParsePolicy(c.Policy); err != nil {
		return err
	}
	if c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy_threshold must be in (0,1], got %v", c.FuzzyThreshold)
	}
	if _, err := verify.NewMatcher(c.FuzzyStrategy); err != nil {
		return err
	}
	switch c.Generator {
	case GeneratorAnthropic, GeneratorOpenAI, GeneratorNone:
	default:
		return fmt.Errorf("unknown generator %q", c.Generator)
	}
	return nil
}

// ValidateServer adds the requirements of the HTTP service.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("CITECHECK_API_KEY is required")
	}
	return c.ValidateGenerator()
}

// ValidateGenerator checks the selected generator has credentials.
func (c Config) ValidateGenerator() error {
	switch c.Generator {
	case GeneratorAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic generator")
		}
	case GeneratorOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai generator")
		}
	}
	return nil
}
