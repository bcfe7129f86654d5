package gmailapi

import (
	"context"
	"errors"
	"net"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/api/googleapi"
)

// IsTransient reports whether a provider error is worth retrying.
// Rate limiting and server-side failures are transient; everything
// else (bad requests, auth failures, missing resources) is permanent.
func IsTransient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 502, 503, 504:
			return true
		case 403:
			for _, e := range apiErr.Errors {
				if e.Reason == "rateLimitExceeded" || e.Reason == "userRateLimitExceeded" {
					return true
				}
			}
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// IsNotFound reports whether err is the provider's 404 response.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 404
}

// retryCall invokes fn with the service's retry policy. Transient
// errors are retried with exponential backoff; permanent errors and
// context cancellation abort immediately.
func retryCall[T any](ctx context.Context, s *Service, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInitial
	b.MaxInterval = s.retryCap
	b.Multiplier = 2
	b.RandomizationFactor = 0

	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && !IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxAttempts))
}
