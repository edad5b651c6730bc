package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

const (
	startupRetries = 5
	startupBackoff = 500 * time.Millisecond
)

// backoffFunc builds the policy used for startup connections.
type backoffFunc func() retry.Backoff

func defaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(startupRetries, retry.NewExponential(startupBackoff))
}

// withRetry keeps calling fn while a backing service comes up.
func withRetry(ctx context.Context, backoff backoffFunc, log zerolog.Logger, dependency string, fn func(context.Context) error) error {
	attempt := 0
	return retry.Do(ctx, backoff(), func(ctx context.Context) error {
		attempt++
		if err := fn(ctx); err != nil {
			log.Warn().Err(err).Str("dependency", dependency).Int("attempt", attempt).Msg("dependency unavailable")
			return retry.RetryableError(err)
		}
		return nil
	})
}
