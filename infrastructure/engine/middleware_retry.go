package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ahrav/go-thermofom/internal/domain"
)

// retryEngine retries transient provider failures with exponential backoff.
type retryEngine struct {
	next       CoreEngine
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware creates middleware that retries failed requests up to
// maxRetries times with jittered exponential backoff. Property lookup
// failures, an open circuit and caller cancellation are returned at once.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return func(next CoreEngine) CoreEngine {
		return &retryEngine{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

// Estimate executes the request with retry logic.
func (r *retryEngine) Estimate(ctx context.Context, req domain.PropertyRequest) (domain.PropertyVector, error) {
	var (
		lastErr  error
		attempts int
	)

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		attempts++
		props, err := r.next.Estimate(ctx, req)
		if err == nil {
			return props, nil
		}

		lastErr = err

		if !isRetryable(err) || ctx.Err() != nil {
			break
		}

		if attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return domain.PropertyVector{}, ctx.Err()
		case <-time.After(r.calculateDelay(attempt)):
		}
	}

	if attempts == 1 {
		return domain.PropertyVector{}, lastErr
	}
	return domain.PropertyVector{}, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

// isRetryable reports whether another attempt could succeed.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrCircuitOpen),
		errors.Is(err, domain.ErrPropertyLookup),
		errors.Is(err, context.Canceled):
		return false
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.IsRetryable()
	}
	return true
}

func (r *retryEngine) calculateDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	// #nosec G115 - attempt is bounded between 0 and 30
	multiplier := 1 << uint(attempt)
	delay := time.Duration(float64(r.baseDelay) * float64(multiplier))

	// Jitter of ±25%.
	// #nosec G404 - weak RNG is fine for jitter
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - (delay / 4)

	if r.maxDelay > 0 && delay > r.maxDelay {
		delay = r.maxDelay
	}

	return delay
}

// Name returns the wrapped provider's name.
func (r *retryEngine) Name() string { return r.next.Name() }
