package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.Port != def.Port || cfg.Policy != "strict" || cfg.FuzzyThreshold != 0.85 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MinQuoteLength != 10 || cfg.JobTTL != time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CITECHECK_POLICY", "Lenient")
	t.Setenv("CITECHECK_FUZZY_THRESHOLD", "0.9")
	t.Setenv("CITECHECK_JOB_TTL", "30m")
	t.Setenv("CITECHECK_WORKER_COUNT", "-1")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Policy != "lenient" {
		t.Errorf("expected lenient policy, got %q", cfg.Policy)
	}
	if cfg.FuzzyThreshold != 0.9 {
		t.Errorf("expected threshold 0.9, got %v", cfg.FuzzyThreshold)
	}
	if cfg.JobTTL != 30*time.Minute {
		t.Errorf("expected job ttl 30m, got %v", cfg.JobTTL)
	}
	if cfg.WorkerCount != Default().WorkerCount {
		t.Errorf("expected invalid worker count to fall back, got %d", cfg.WorkerCount)
	}
	if cfg.AnthropicAPIKey != "sk-ant-test" {
		t.Errorf("expected provider key fallback, got %q", cfg.AnthropicAPIKey)
	}
}

func TestFromViper_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "policy: audit\nfuzzy_strategy: token-overlap\nmin_quote_length: 20\ncache_ttl: 2h\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	Setup(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}
	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("FromViper: %v", err)
	}
	if cfg.Policy != "audit" || cfg.FuzzyStrategy != "token-overlap" || cfg.MinQuoteLength != 20 || cfg.CacheTTL != 2*time.Hour {
		t.Fatalf("config file not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"bad policy", func(c *Config) { c.Policy = "yolo" }, "policy"},
		{"zero threshold", func(c *Config) { c.FuzzyThreshold = 0 }, "fuzzy_threshold"},
		{"threshold above one", func(c *Config) { c.FuzzyThreshold = 1.2 }, "fuzzy_threshold"},
		{"bad strategy", func(c *Config) { c.FuzzyStrategy = "soundex" }, "strategy"},
		{"bad generator", func(c *Config) { c.Generator = "parrot" }, "generator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateServer(t *testing.T) {
	cfg := Default()
	if err := cfg.ValidateServer(); err == nil {
		t.Fatal("expected missing api key error")
	}
	cfg.APIKey = "token"
	if err := cfg.ValidateServer(); err == nil || !strings.Contains(err.Error(), "ANTHROPIC_API_KEY") {
		t.Fatalf("expected missing generator key error, got %v", err)
	}
	cfg.Generator = GeneratorOpenAI
	cfg.OpenAIAPIKey = "sk-test"
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("expected valid server config, got %v", err)
	}
	cfg.Generator = GeneratorNone
	cfg.OpenAIAPIKey = ""
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("generator none needs no key, got %v", err)
	}
}
