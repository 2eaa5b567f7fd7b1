package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/dgallion1/citecheck/internal/cache"
	"github.com/dgallion1/citecheck/internal/chunker"
	"github.com/dgallion1/citecheck/internal/config"
	"github.com/dgallion1/citecheck/internal/extract"
	"github.com/dgallion1/citecheck/internal/pagetext"
	"github.com/dgallion1/citecheck/internal/record"
	"github.com/dgallion1/citecheck/internal/verify"
)

// FromConfig assembles the page map cache, indexer and verifier, plus the
// candidate generator when cfg selects one.
func FromConfig(cfg config.Config, log *slog.Logger) (*Pipeline, error) {
	policy, err := record.ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	matcher, err := verify.NewMatcher(cfg.FuzzyStrategy)
	if err != nil {
		return nil, err
	}

	ix := pagetext.NewIndexer(
		cache.New(cfg.CacheDir, cfg.CacheTTL),
		cfg.CacheTTL,
		cfg.PDFFallbackPdftotext,
		log.With("component", "indexer"),
	)
	v, err := verify.New(verify.Config{
		Threshold:      cfg.FuzzyThreshold,
		MinQuoteLength: cfg.MinQuoteLength,
		Matcher:        matcher,
	})
	if err != nil {
		return nil, err
	}
	p := New(ix, v, Options{
		Policy:          policy,
		RequireSection:  cfg.RequireSection,
		RejectInjection: cfg.RejectInjection,
		Concurrency:     cfg.VerifyWorkers,
	}, log)

	decoder, err := extract.NewDecoder()
	if err != nil {
		return nil, err
	}
	gen, err := extract.NewGenerator(generatorConfig(cfg), decoder)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	if gen != nil {
		chunks := chunker.DefaultConfig()
		chunks.ChunkSize = cfg.ChunkTokens
		p = p.WithGenerator(gen, chunks, cfg.MaxConcurrentGenerate)
	}
	return p, nil
}

func generatorConfig(cfg config.Config) extract.GeneratorConfig {
	gc := extract.GeneratorConfig{Provider: cfg.Generator, RPS: cfg.GenerateRPS}
	switch cfg.Generator {
	case config.GeneratorAnthropic:
		gc.APIKey, gc.Model = cfg.AnthropicAPIKey, cfg.AnthropicModel
	case config.GeneratorOpenAI:
		gc.APIKey, gc.Model, gc.BaseURL = cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL
	}
	return gc
}
