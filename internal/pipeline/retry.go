package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/citecheck/internal/extract"
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *extract.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

// backoff is swapped out by tests.
var backoff = Backoff

// extractWithRetry calls the generator, retrying transient failures up to
// MaxRetries attempts.
func extractWithRetry(ctx context.Context, g extract.Generator, prompt string, log *slog.Logger) ([]extract.Decoded, error) {
	var out []extract.Decoded
	var err error
	for attempt := range MaxRetries {
		out, err = g.ExtractCandidates(ctx, prompt)
		if err == nil || !IsRetryable(err) {
			return out, err
		}
		if attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable generation error", "attempt", attempt, "error", err)
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, err
}
