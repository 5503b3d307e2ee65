package export

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// retryOperation runs op up to maxAttempts times with a doubling delay
// between attempts. The delay honors ctx cancellation; the last error is
// returned once the budget is spent.
func retryOperation[T any](ctx context.Context, logger *zap.Logger, name string, maxAttempts int, baseDelay time.Duration, op func() (T, error)) (T, error) {
	var zero T
	delay := baseDelay

	for attempt := 1; ; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}
		if attempt >= maxAttempts {
			logger.Error("operation failed, retry budget spent",
				zap.String("operation", name),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return zero, err
		}

		logger.Warn("operation failed, retrying",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
