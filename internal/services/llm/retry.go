package llm

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ternarybob/arbor"
)

// Rate limit backoff defaults. Provider quota windows reset on the order of a minute.
const (
	DefaultInitialBackoff = 2 * time.Second
	DefaultMaxBackoff     = 45 * time.Second
	DefaultMaxElapsed     = 3 * time.Minute
)

// NewRateLimitBackOff returns the exponential schedule used between rate-limited attempts
func NewRateLimitBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = DefaultInitialBackoff
	b.MaxInterval = DefaultMaxBackoff
	b.Multiplier = 2
	return b
}

// IsRateLimitError checks if an error is a provider rate limit error.
// Matches 429 status codes, RESOURCE_EXHAUSTED and quota errors.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "rate_limit_error") ||
		strings.Contains(strings.ToLower(errStr), "quota")
}

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs" patterns
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses the API-suggested retry delay from a provider error.
// Returns 0 if no delay is found in the error message.
//
// Example error message:
// "Error 429, Message: ... Please retry in 45.387061394s., Status: RESOURCE_EXHAUSTED"
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}

	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}

	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

// retryRateLimited runs call until it succeeds, fails with a non rate limit error,
// or maxRetries rate-limited retries are exhausted. Any other error is returned as is.
func retryRateLimited[T any](
	ctx context.Context,
	logger arbor.ILogger,
	provider ProviderType,
	maxRetries int,
	newBackOff func() backoff.BackOff,
	call func(context.Context) (T, error),
) (T, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		result, err := call(ctx)
		if err == nil {
			return result, nil
		}
		if !IsRateLimitError(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(uint(maxRetries+1)),
		backoff.WithMaxElapsedTime(DefaultMaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn().
				Str("provider", string(provider)).
				Int("attempt", attempt).
				Dur("backoff", next).
				Dur("suggested_delay", ExtractRetryDelay(err)).
				Err(err).
				Msg("Provider rate limited, retrying")
		}),
	)
}
