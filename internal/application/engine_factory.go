package application

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-thermofom/infrastructure/componentdb"
	"github.com/ahrav/go-thermofom/infrastructure/engine"
	"github.com/ahrav/go-thermofom/internal/ports"
)

// EngineDeps are the shared collaborators an engine is built with. Zero
// values disable the corresponding middleware.
type EngineDeps struct {
	// Loader opens component databases; nil uses a fresh loader.
	Loader *componentdb.Loader
	// Metrics receives request and circuit breaker metrics.
	Metrics ports.MetricsCollector
	// Logger receives one event per engine request.
	Logger *zerolog.Logger
	// TracingService enables OpenTelemetry spans under this service name.
	TracingService string
}

// NewEngine builds the configured provider wrapped in its middleware chain.
// From the outside in: logging, metrics, tracing, retry, circuit breaker,
// rate limit, timeout. Retries therefore see each attempt's breaker and
// timeout outcome, and metrics see the final result.
func NewEngine(ctx context.Context, cfg EngineConfig, deps EngineDeps) (*engine.Client, error) {
	clientCfg := engine.ClientConfig{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout(),
	}

	if cfg.Provider == engine.IdealProviderName {
		loader := deps.Loader
		if loader == nil {
			loader = componentdb.NewLoader()
		}
		db, err := loader.Load(ctx, cfg.Database)
		if err != nil {
			return nil, ports.NewConfigError("engine.database", err)
		}
		clientCfg.Database = db
	}

	var chain []engine.Middleware
	if deps.Logger != nil {
		chain = append(chain, engine.LoggingMiddleware(*deps.Logger))
	}
	if deps.Metrics != nil {
		chain = append(chain, engine.MetricsMiddleware(deps.Metrics))
	}
	if deps.TracingService != "" {
		chain = append(chain, engine.TracingMiddleware(deps.TracingService))
	}
	if cfg.Retry.MaxRetries > 0 {
		chain = append(chain, engine.RetryMiddleware(cfg.Retry.MaxRetries, ms(cfg.Retry.InitialWaitMs), ms(cfg.Retry.MaxWaitMs)))
	}
	if cfg.CircuitBreaker.MaxFailures > 0 {
		var breakerMetrics engine.CircuitBreakerMetrics
		if deps.Metrics != nil {
			breakerMetrics = engine.NewCircuitBreakerMetrics(deps.Metrics, cfg.Provider)
		}
		chain = append(chain, engine.CircuitBreakerMiddlewareWithMetrics(
			cfg.CircuitBreaker.MaxFailures, ms(cfg.CircuitBreaker.CooldownMs), breakerMetrics))
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		burst := cfg.RateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		chain = append(chain, engine.RateLimitMiddleware(rate.Limit(cfg.RateLimit.RequestsPerSecond), burst))
	}
	if cfg.TimeoutMs > 0 {
		chain = append(chain, engine.TimeoutMiddleware(cfg.Timeout()))
	}
	clientCfg.Middleware = chain

	client, err := engine.NewClient(cfg.Provider, clientCfg)
	if err != nil {
		return nil, ports.NewConfigError("engine.provider", fmt.Errorf("%s: %w", cfg.Provider, err))
	}
	return client, nil
}
