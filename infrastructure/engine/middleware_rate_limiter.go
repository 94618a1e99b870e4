package engine

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-thermofom/internal/domain"
)

// rateLimitedEngine paces requests with a token bucket.
type rateLimitedEngine struct {
	next    CoreEngine
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware that allows limit requests per
// second with bursts of up to burst requests. The limiter is shared by every
// engine the middleware wraps.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next CoreEngine) CoreEngine {
		return &rateLimitedEngine{
			next:    next,
			limiter: limiter,
		}
	}
}

// Estimate waits for a token before forwarding the request.
func (r *rateLimitedEngine) Estimate(ctx context.Context, req domain.PropertyRequest) (domain.PropertyVector, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return domain.PropertyVector{}, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Estimate(ctx, req)
}

// Name returns the wrapped provider's name.
func (r *rateLimitedEngine) Name() string { return r.next.Name() }
