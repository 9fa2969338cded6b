package orders

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy bounds how often a transaction is re-run after a serialization
// failure or deadlock. The zero value runs it once.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff is multiplied by the attempt number before each re-run.
	Backoff time.Duration
}

// run re-runs fn from scratch while it fails with a retryable persistence
// error. Errors come back wrapped by asPersistence.
func (p RetryPolicy) run(ctx context.Context, logger *zap.Logger, op string, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	for attempt := 1; ; attempt++ {
		err := asPersistence(op, fn(ctx))
		if err == nil || !IsRetryable(err) || attempt >= maxAttempts {
			return err
		}
		logger.Warn("transaction conflict, retrying",
			zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return &PersistenceError{Op: op, Err: ctx.Err()}
		case <-time.After(p.Backoff * time.Duration(attempt)):
		}
	}
}
