package reasoner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// IsRetryableError reports whether a provider error is transient enough
// to retry: network resets, timeouts, rate limits, and 5xx responses.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryable := []string{
		"econnreset",
		"etimedout",
		"timeout",
		"connection reset",
		"429",
		"rate limit",
		"overloaded",
		"500",
		"502",
		"503",
		"504",
	}
	for _, pattern := range retryable {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// retryCall invokes call up to maxRetries times, backing off between
// attempts. Exponential backoff: 1s, 2s, 4s. Non-retryable errors abort
// immediately.
func retryCall(ctx context.Context, maxRetries int, call func(context.Context) error) error {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := call(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryableError(err) {
			return err
		}
		if attempt == maxRetries-1 {
			break
		}

		delay := time.Duration(1<<attempt) * time.Second
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Engine call failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)
}
