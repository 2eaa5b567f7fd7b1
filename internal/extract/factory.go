package extract

import (
	"fmt"
	"strings"
)

// GeneratorConfig selects and configures a hosted generator.
type GeneratorConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	// RPS caps calls per second across all callers; zero is unlimited.
	RPS float64
}

// NewGenerator builds the configured generator wrapped in a rate limiter.
// Provider "none" or "" returns a nil Generator and no error.
func NewGenerator(cfg GeneratorConfig, decoder *Decoder) (Generator, error) {
	var g Generator
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, nil
	case "anthropic", "claude":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic api key is required")
		}
		c := NewClaudeClient(cfg.APIKey, cfg.Model, decoder)
		if cfg.BaseURL != "" {
			c.WithEndpoint(cfg.BaseURL)
		}
		g = c
	case "openai":
		c, err := NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, decoder)
		if err != nil {
			return nil, err
		}
		g = c
	default:
		return nil, fmt.Errorf("unknown generator provider: %s (supported: anthropic, openai, none)", cfg.Provider)
	}
	return NewRateLimited(g, cfg.RPS, 1), nil
}

// StatsProvider is implemented by generators that record call statistics.
type StatsProvider interface {
	GenerationStats() *GenerationStats
}

// StatsOf returns g's statistics, or nil when g does not record any.
func StatsOf(g Generator) *GenerationStats {
	if sp, ok := g.(StatsProvider); ok {
		return sp.GenerationStats()
	}
	return nil
}

func (c *ClaudeClient) GenerationStats() *GenerationStats { return c.Stats }
func (c *OpenAIClient) GenerationStats() *GenerationStats { return c.Stats }
func (r *RateLimited) GenerationStats() *GenerationStats  { return StatsOf(r.Generator) }

// CloseGenerator releases connections held by g, if it holds any.
func CloseGenerator(g Generator) {
	if r, ok := g.(*RateLimited); ok {
		g = r.Generator
	}
	if c, ok := g.(interface{ Close() }); ok {
		c.Close()
	}
}
