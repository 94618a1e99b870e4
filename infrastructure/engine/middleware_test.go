package engine

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-thermofom/internal/domain"
)

// TestRetryMiddleware_SuccessOnFirstAttempt calls the provider once when it succeeds.
func TestRetryMiddleware_SuccessOnFirstAttempt(t *testing.T) {
	mock := NewMockCoreEngine()
	wrapped := RetryMiddleware(3, 10*time.Millisecond, time.Second)(mock)

	props, err := wrapped.Estimate(context.Background(), waterEthanolRequest())

	require.NoError(t, err)
	assert.Equal(t, mock.Properties, props)
	assert.Equal(t, 1, mock.GetCallCount())
}

// TestRetryMiddleware_RetriesOnTransientError retries until the provider recovers.
func TestRetryMiddleware_RetriesOnTransientError(t *testing.T) {
	mock := NewMockCoreEngine()
	mock.FailUntilAttempt = 2
	wrapped := RetryMiddleware(3, time.Millisecond, 10*time.Millisecond)(mock)

	props, err := wrapped.Estimate(context.Background(), waterEthanolRequest())

	require.NoError(t, err)
	assert.Equal(t, mock.Properties, props)
	assert.Equal(t, 3, mock.GetCallCount())
}

// TestRetryMiddleware_FailsAfterMaxRetries wraps the last error with the attempt count.
func TestRetryMiddleware_FailsAfterMaxRetries(t *testing.T) {
	mock := NewMockCoreEngine()
	mock.Error = errors.New("persistent error")
	wrapped := RetryMiddleware(2, time.Millisecond, 10*time.Millisecond)(mock)

	_, err := wrapped.Estimate(context.Background(), waterEthanolRequest())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed after 3 attempts")
	assert.Contains(t, err.Error(), "persistent error")
	assert.Equal(t, 3, mock.GetCallCount())
}

// TestRetryMiddleware_DoesNotRetryTerminalErrors returns lookup failures,
// an open circuit and non-retryable provider errors unchanged.
func TestRetryMiddleware_DoesNotRetryTerminalErrors(t *testing.T) {
	lookupErr := domain.NewPropertyLookupError([]string{"unobtainium"}, "", errors.New("unknown"))
	authErr := NewProviderError("http", ErrorTypeAuthentication, 401, "denied", nil)

	tests := []struct {
		name string
		err  error
	}{
		{"property lookup", lookupErr},
		{"circuit open", ErrCircuitOpen},
		{"authentication", authErr},
		{"canceled", context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockCoreEngine()
			mock.Error = tt.err
			wrapped := RetryMiddleware(3, time.Millisecond, 10*time.Millisecond)(mock)

			_, err := wrapped.Estimate(context.Background(), waterEthanolRequest())

			require.Error(t, err)
			assert.Same(t, tt.err, err)
			assert.Equal(t, 1, mock.GetCallCount())
		})
	}
}

// TestRetryMiddleware_RetriesRetryableProviderErrors retries rate limits and server errors.
func TestRetryMiddleware_RetriesRetryableProviderErrors(t *testing.T) {
	mock := NewMockCoreEngine()
	mock.Error = NewProviderError("http", ErrorTypeServerError, 503, "unavailable", nil)
	mock.FailUntilAttempt = 1
	wrapped := RetryMiddleware(2, time.Millisecond, 10*time.Millisecond)(mock)

	_, err := wrapped.Estimate(context.Background(), waterEthanolRequest())

	require.NoError(t, err)
	assert.Equal(t, 2, mock.GetCallCount())
}

// TestRetryMiddleware_StopsOnContextCancellation abandons the backoff wait.
func TestRetryMiddleware_StopsOnContextCancellation(t *testing.T) {
	mock := NewMockCoreEngine()
	mock.Error = errors.New("transient")
	wrapped := RetryMiddleware(5, time.Second, 5*time.Second)(mock)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := wrapped.Estimate(ctx, waterEthanolRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, 1, mock.GetCallCount())
}

// TestRetryMiddleware_CalculateDelay keeps the jittered delay within bounds.
func TestRetryMiddleware_CalculateDelay(t *testing.T) {
	r := &retryEngine{baseDelay: 100 * time.Millisecond, maxDelay: time.Second}

	for attempt := 0; attempt < 3; attempt++ {
		base := r.baseDelay * time.Duration(1<<attempt)
		for i := 0; i < 20; i++ {
			d := r.calculateDelay(attempt)
			assert.GreaterOrEqual(t, d, base*3/4)
			assert.LessOrEqual(t, d, base*5/4)
		}
	}
	assert.Equal(t, time.Second, r.calculateDelay(10))
}

// TestTimeoutMiddleware_CancelsSlowRequests sets a deadline on the provider context.
func TestTimeoutMiddleware_CancelsSlowRequests(t *testing.T) {
	mock := NewMockCoreEngine()
	mock.ResponseDelay = time.Second
	wrapped := TimeoutMiddleware(20 * time.Millisecond)(mock)

	_, err := wrapped.Estimate(context.Background(), waterEthanolRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestTimeoutMiddleware_ZeroDisables passes the caller context through.
func TestTimeoutMiddleware_ZeroDisables(t *testing.T) {
	mock := NewMockCoreEngine()
	wrapped := TimeoutMiddleware(0)(mock)

	ctx := context.Background()
	_, err := wrapped.Estimate(ctx, waterEthanolRequest())

	require.NoError(t, err)
	_, hasDeadline := mock.LastContext.Deadline()
	assert.False(t, hasDeadline)
}

// TestRateLimitMiddleware_PacesRequests delays requests beyond the burst.
func TestRateLimitMiddleware_PacesRequests(t *testing.T) {
	mock := NewMockCoreEngine()
	wrapped := RateLimitMiddleware(rate.Every(50*time.Millisecond), 1)(mock)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := wrapped.Estimate(context.Background(), waterEthanolRequest())
		require.NoError(t, err)
	}

	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, 3, mock.GetCallCount())
}

// TestRateLimitMiddleware_RespectsContext fails when the wait outlives the context.
func TestRateLimitMiddleware_RespectsContext(t *testing.T) {
	mock := NewMockCoreEngine()
	wrapped := RateLimitMiddleware(rate.Every(time.Hour), 1)(mock)

	_, err := wrapped.Estimate(context.Background(), waterEthanolRequest())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = wrapped.Estimate(ctx, waterEthanolRequest())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, 1, mock.GetCallCount())
}

// TestCircuitBreakerMiddleware_OpensAfterMaxFailures rejects calls once tripped.
func TestCircuitBreakerMiddleware_OpensAfterMaxFailures(t *testing.T) {
	mock := NewMockCoreEngine()
	mock.Error = errors.New("service error")
	wrapped := CircuitBreakerMiddleware(2, time.Hour)(mock)
	ctx := context.Background()

	_, err1 := wrapped.Estimate(ctx, waterEthanolRequest())
	_, err2 := wrapped.Estimate(ctx, waterEthanolRequest())
	_, err3 := wrapped.Estimate(ctx, waterEthanolRequest())

	assert.EqualError(t, err1, "service error")
	assert.EqualError(t, err2, "service error")
	assert.ErrorIs(t, err3, ErrCircuitOpen)
	assert.Equal(t, 2, mock.GetCallCount())
}

// TestCircuitBreakerMiddleware_IgnoresLookupErrors keeps the circuit closed
// for mixtures the provider cannot describe.
func TestCircuitBreakerMiddleware_IgnoresLookupErrors(t *testing.T) {
	mock := NewMockCoreEngine()
	mock.Error = domain.NewPropertyLookupError([]string{"x"}, "", errors.New("unknown"))
	wrapped := CircuitBreakerMiddleware(1, time.Hour)(mock)

	for i := 0; i < 5; i++ {
		_, err := wrapped.Estimate(context.Background(), waterEthanolRequest())
		assert.ErrorIs(t, err, domain.ErrPropertyLookup)
	}
	assert.Equal(t, 5, mock.GetCallCount())
}

// TestCircuitBreaker_HalfOpenRecovery closes again after a successful probe
// and reopens after a failed one.
func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(1, time.Minute)
	cb.now = func() time.Time { return now }

	failing := errors.New("down")
	require.ErrorIs(t, cb.Call(func() error { return failing }), failing)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Call(func() error { return nil }), ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	require.ErrorIs(t, cb.Call(func() error { return failing }), failing)
	assert.Equal(t, StateOpen, cb.GetState())

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

// TestCircuitBreaker_SingleProbe rejects concurrent calls while a probe runs.
func TestCircuitBreaker_SingleProbe(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(1, time.Minute)
	cb.now = func() time.Time { return now }
	_ = cb.Call(func() error { return errors.New("down") })
	now = now.Add(2 * time.Minute)

	probeStarted := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cb.Call(func() error {
			close(probeStarted)
			<-release
			return nil
		})
	}()

	<-probeStarted
	assert.Equal(t, StateHalfOpen, cb.GetState())
	assert.ErrorIs(t, cb.Call(func() error { return nil }), ErrCircuitOpen)

	close(release)
	wg.Wait()
	assert.Equal(t, StateClosed, cb.GetState())
}

// TestCircuitBreakerMiddleware_Metrics reports results, trips and state.
func TestCircuitBreakerMiddleware_Metrics(t *testing.T) {
	collector := &recordingCollector{}
	mock := NewMockCoreEngine()
	mock.Error = errors.New("down")
	wrapped := CircuitBreakerMiddlewareWithMetrics(1, time.Hour, NewCircuitBreakerMetrics(collector, "mock"))(mock)

	_, _ = wrapped.Estimate(context.Background(), waterEthanolRequest())
	_, _ = wrapped.Estimate(context.Background(), waterEthanolRequest())

	results := collector.countersNamed("engine_circuit_results_total")
	require.Len(t, results, 1)
	assert.Equal(t, "failure", results[0].labels["result"])
	assert.Len(t, collector.countersNamed("engine_circuit_trips_total"), 1)

	require.Len(t, collector.gauges, 2)
	assert.Equal(t, float64(StateOpen), collector.gauges[1].value)
	assert.Equal(t, "mock", collector.gauges[1].labels["engine"])
}

// TestMetricsMiddleware_StatusLabels labels each outcome.
func TestMetricsMiddleware_StatusLabels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"success", nil, "success"},
		{"lookup", domain.NewPropertyLookupError([]string{"x"}, "", errors.New("unknown")), "lookup_error"},
		{"circuit", ErrCircuitOpen, "circuit_open"},
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"provider timeout", NewProviderError("http", ErrorTypeTimeout, 408, "", nil), "timeout"},
		{"other", errors.New("boom"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := &recordingCollector{}
			mock := NewMockCoreEngine()
			mock.Error = tt.err
			wrapped := MetricsMiddleware(collector)(mock)

			_, _ = wrapped.Estimate(context.Background(), waterEthanolRequest())

			requests := collector.countersNamed("engine_requests_total")
			require.Len(t, requests, 1)
			assert.Equal(t, tt.want, requests[0].labels["status"])
			assert.Equal(t, "mock", requests[0].labels["engine"])
			require.Len(t, collector.histograms, 1)
			assert.Equal(t, "engine_latency_seconds", collector.histograms[0].name)
		})
	}
}

// TestTracingMiddleware_PassesThrough leaves results and errors untouched.
func TestTracingMiddleware_PassesThrough(t *testing.T) {
	mock := NewMockCoreEngine()
	wrapped := TracingMiddlewareWithProvider("fomcalc", noop.NewTracerProvider())(mock)

	props, err := wrapped.Estimate(context.Background(), waterEthanolRequest())
	require.NoError(t, err)
	assert.Equal(t, mock.Properties, props)

	lookupErr := domain.NewPropertyLookupError([]string{"water"}, domain.PropertyViscosity, errors.New("no data"))
	mock.SetError(lookupErr)
	_, err = wrapped.Estimate(context.Background(), waterEthanolRequest())
	assert.Same(t, lookupErr, err)

	assert.Equal(t, "mock", TracingMiddleware("fomcalc")(mock).Name())
}

// TestLoggingMiddleware_WritesEvents logs successes at debug and failures at warn.
func TestLoggingMiddleware_WritesEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	mock := NewMockCoreEngine()
	wrapped := LoggingMiddleware(logger)(mock)

	_, err := wrapped.Estimate(context.Background(), waterEthanolRequest())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.Contains(t, buf.String(), `"engine":"mock"`)
	assert.Contains(t, buf.String(), `"components":["water","ethanol"]`)

	buf.Reset()
	mock.SetError(errors.New("boom"))
	_, err = wrapped.Estimate(context.Background(), waterEthanolRequest())
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"error":"boom"`)
}

// TestWrap_Order applies the first middleware outermost.
func TestWrap_Order(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next CoreEngine) CoreEngine {
			return &orderEngine{next: next, tag: name, order: &order}
		}
	}

	wrapped := Wrap(NewMockCoreEngine(), tag("outer"), tag("inner"))
	_, err := wrapped.Estimate(context.Background(), waterEthanolRequest())

	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

type orderEngine struct {
	next  CoreEngine
	tag   string
	order *[]string
}

func (o *orderEngine) Estimate(ctx context.Context, req domain.PropertyRequest) (domain.PropertyVector, error) {
	*o.order = append(*o.order, o.tag)
	return o.next.Estimate(ctx, req)
}

func (o *orderEngine) Name() string { return o.next.Name() }
