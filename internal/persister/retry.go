package persister

import (
	"context"
	"time"

	"github.com/telehealth/core/internal/config"
)

// withRetry runs op up to cfg.RetryBudget additional times with
// quadrupling backoff (100 ms, 400 ms, 1.6 s by default), the same
// context-aware capped-backoff loop shape as httpretry.Client.Do,
// applied to a document-store write instead of an HTTP round trip.
func withRetry(ctx context.Context, cfg config.PersistConfig, op func() error) error {
	var lastErr error
	backoff := cfg.RetryBaseDelay

	for attempt := 0; attempt <= cfg.RetryBudget; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 4
				if backoff > cfg.RetryMaxDelay {
					backoff = cfg.RetryMaxDelay
				}
			}
		}

		if err := op(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
