package engine

import (
	"context"
	"time"

	"github.com/ahrav/go-thermofom/internal/domain"
)

// timeoutEngine bounds each request with a deadline.
type timeoutEngine struct {
	next    CoreEngine
	timeout time.Duration
}

// TimeoutMiddleware creates middleware that cancels requests running longer
// than timeout. Place it inside RetryMiddleware to bound each attempt.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreEngine) CoreEngine {
		return &timeoutEngine{
			next:    next,
			timeout: timeout,
		}
	}
}

// Estimate executes the request with a timeout context.
func (t *timeoutEngine) Estimate(ctx context.Context, req domain.PropertyRequest) (domain.PropertyVector, error) {
	if t.timeout <= 0 {
		return t.next.Estimate(ctx, req)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Estimate(ctx, req)
}

// Name returns the wrapped provider's name.
func (t *timeoutEngine) Name() string { return t.next.Name() }
