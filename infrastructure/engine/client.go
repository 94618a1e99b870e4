// Package engine provides property engine clients with built-in support for
// rate limiting, retries, circuit breaking, metrics, tracing and logging.
//
// Providers (the local ideal-mixing estimator, a remote HTTP property
// service) implement the small CoreEngine interface. Cross-cutting concerns
// wrap a CoreEngine through Middleware, so callers can add resilience or
// observability without touching provider code.
//
// Basic usage:
//
//	client, err := engine.NewClient("ideal", engine.ClientConfig{})
//	props, err := client.EstimateProperties(ctx, req)
//
// Remote service with middleware:
//
//	client, err := engine.NewClient("http", engine.ClientConfig{
//	    BaseURL: "https://props.example.com",
//	    Middleware: []engine.Middleware{
//	        engine.MetricsMiddleware(collector),
//	        engine.RetryMiddleware(3, 200*time.Millisecond, 5*time.Second),
//	        engine.CircuitBreakerMiddleware(5, 30*time.Second),
//	        engine.TimeoutMiddleware(10 * time.Second),
//	    },
//	})
package engine

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/ahrav/go-thermofom/infrastructure/componentdb"
	"github.com/ahrav/go-thermofom/internal/domain"
	"github.com/ahrav/go-thermofom/internal/ports"
)

// CoreEngine is the minimal interface a property provider implements. The
// middleware system wraps any conforming implementation.
type CoreEngine interface {
	// Estimate returns the mixture properties for req. Unresolvable
	// components and failed estimates are reported as
	// *domain.PropertyLookupError.
	Estimate(ctx context.Context, req domain.PropertyRequest) (domain.PropertyVector, error)

	// Name identifies the provider in logs, metrics and traces.
	Name() string
}

// ClientConfig holds the options for creating an engine client.
type ClientConfig struct {
	// BaseURL is the root of a remote property service (http provider).
	BaseURL string

	// Timeout bounds each HTTP round trip of the http provider. Zero means
	// no client-level timeout.
	Timeout time.Duration

	// HTTPClient overrides the HTTP client of the http provider.
	HTTPClient *http.Client

	// Database supplies pure-component data to the ideal provider. Nil
	// selects the built-in database.
	Database *componentdb.Database

	// Middleware is applied in the order given; the first entry is the
	// outermost wrapper.
	Middleware []Middleware
}

// Middleware wraps a CoreEngine to add cross-cutting behavior.
type Middleware func(CoreEngine) CoreEngine

var _ ports.PropertyEngine = (*Client)(nil)

// Client implements ports.PropertyEngine on top of a middleware-wrapped
// provider.
type Client struct {
	core CoreEngine
}

// NewClient creates a client for the named provider and assembles the
// middleware chain around it.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	factoriesMu.RLock()
	factory, ok := providerFactories[providerType]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return &Client{core: Wrap(core, config.Middleware...)}, nil
}

// Wrap applies middleware to core so that the first middleware is the
// outermost.
func Wrap(core CoreEngine, middleware ...Middleware) CoreEngine {
	for i := len(middleware) - 1; i >= 0; i-- {
		core = middleware[i](core)
	}
	return core
}

// EstimateProperties implements ports.PropertyEngine.
func (c *Client) EstimateProperties(ctx context.Context, req domain.PropertyRequest) (domain.PropertyVector, error) {
	return c.core.Estimate(ctx, req)
}

// Name returns the provider name.
func (c *Client) Name() string { return c.core.Name() }

// ProviderFactory creates a CoreEngine from configuration.
type ProviderFactory func(ClientConfig) (CoreEngine, error)

var (
	factoriesMu       sync.RWMutex
	providerFactories = map[string]ProviderFactory{}
)

// RegisterProviderFactory registers a provider under name, replacing any
// previous registration.
func RegisterProviderFactory(name string, factory ProviderFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	providerFactories[name] = factory
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
