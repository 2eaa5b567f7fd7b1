package extract

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Generator proposes candidate records for a prompt. Implementations talk
// to a hosted model; the verification core never depends on one.
type Generator interface {
	Name() string
	Model() string
	ExtractCandidates(ctx context.Context, prompt string) ([]Decoded, error)
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// RateLimited spaces calls to an underlying Generator.
type RateLimited struct {
	Generator
	limiter *rate.Limiter
}

// NewRateLimited allows rps calls per second with the given burst. A
// non-positive rps disables limiting.
func NewRateLimited(g Generator, rps float64, burst int) *RateLimited {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimited{
		Generator: g,
		limiter:   rate.NewLimiter(limit, burst),
	}
}

func (r *RateLimited) ExtractCandidates(ctx context.Context, prompt string) ([]Decoded, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.Generator.ExtractCandidates(ctx, prompt)
}
