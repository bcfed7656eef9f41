package processor

import (
	"context"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

// withRetry runs fn until it succeeds, fails with an error Classify does not
// consider retryable, or runs out of attempts. Each attempt runs under its
// own SubmitTimeout deadline and rebuilds its messages from scratch, so a
// retried step proves state at a fresh height.
func withRetry(ctx context.Context, log *zap.Logger, opts Options, step string, onRetry func(error), fn func(context.Context) error) error {
	return retry.Do(func() error {
		actx, cancel := context.WithTimeout(ctx, opts.SubmitTimeout)
		defer cancel()
		return fn(actx)
	},
		retry.Context(ctx),
		retry.Attempts(opts.MaxRetries),
		retry.Delay(opts.Backoff),
		retry.MaxDelay(opts.MaxBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			log.Info(
				"Retrying step",
				zap.String("step", step),
				zap.Uint("attempt", n+1),
				zap.Uint("max_attempts", opts.MaxRetries),
				zap.Stringer("class", Classify(err)),
				zap.Error(err),
			)
			if onRetry != nil {
				onRetry(err)
			}
		}),
	)
}
