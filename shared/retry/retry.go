// Package retry provides exponential backoff retry logic with jitter for Google API calls.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
)

// Config holds retry configuration.
type Config struct {
	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int
	// InitialBackoff is the initial delay before retrying.
	InitialBackoff time.Duration
	// MaxBackoff is the maximum delay between retries.
	MaxBackoff time.Duration
	// Multiplier is the exponential backoff multiplier.
	Multiplier float64
	// JitterFraction is the fraction of backoff used for jitter (0.0-1.0).
	JitterFraction float64
}

// DefaultConfig returns the policy used for YouTube and Sheets requests.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     60 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// ErrorClassifier determines if an error is retryable.
type ErrorClassifier func(error) bool

// rateLimitReasons are the googleapi error reasons that clear up after waiting.
// quotaExceeded is deliberately absent: the daily quota does not reset within a run.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"backendError":          true,
}

// IsRetryable reports whether a Google API error is a rate limit or a transient server failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return true
	case apiErr.Code >= http.StatusInternalServerError:
		return true
	case apiErr.Code == http.StatusForbidden:
		for _, item := range apiErr.Errors {
			if rateLimitReasons[item.Reason] {
				return true
			}
		}
	}
	return false
}

// Do executes fn with retry logic, using the provided classifier to determine
// if errors are retryable.
func Do(ctx context.Context, cfg Config, classifier ErrorClassifier, fn func(context.Context) error) error {
	if classifier == nil {
		classifier = IsRetryable
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !classifier(err) {
			return err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		sleep := backoff + jitter(backoff, cfg.JitterFraction)
		if sleep > cfg.MaxBackoff {
			sleep = cfg.MaxBackoff
		}
		log.WithField("attempt", attempt+1).Warnf("Retryable API error, backing off %v: %v", sleep, err)

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return pkgerrors.Wrapf(lastErr, "max retries (%d) exceeded", cfg.MaxRetries)
}

// jitter returns a random duration in range [-fraction*d, +fraction*d].
func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return 0
	}
	jitterRange := float64(d) * fraction
	return time.Duration((rand.Float64() - 0.5) * 2 * jitterRange)
}
