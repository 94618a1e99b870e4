package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-thermofom/internal/domain"
	"github.com/ahrav/go-thermofom/internal/ports"
)

// Outcome labels used for mixture_evaluations_total.
const (
	StatusSuccess            = "success"
	StatusInvalidComposition = "invalid_composition"
	StatusLookupError        = "lookup_error"
	StatusInvalidProperty    = "invalid_property"
	StatusError              = "error"
)

const defaultConcurrency = 4

// MixtureSpec is one candidate of a screening run.
type MixtureSpec struct {
	Name       string
	Components []string
	Masses     []float64
}

// BatchResult is the outcome of evaluating one MixtureSpec. Err is nil on
// success; otherwise Properties and FOM hold whatever was computed before
// the failure.
type BatchResult struct {
	Name          string
	Components    []string
	MassFractions []float64
	Properties    domain.PropertyVector
	FOM           float64
	Err           error
	Elapsed       time.Duration
}

// OK reports whether the mixture was evaluated successfully.
func (r BatchResult) OK() bool { return r.Err == nil }

// Status returns the outcome label of the result.
func (r BatchResult) Status() string { return outcome(r.Err) }

// BatchReport collects the results of one screening run in input order.
type BatchReport struct {
	RunID     uuid.UUID
	Engine    string
	State     domain.StateCondition
	StartedAt time.Time
	Elapsed   time.Duration
	Results   []BatchResult
}

// Ranked returns the results ordered by figure of merit, highest first.
// Failed mixtures follow in input order.
func (r *BatchReport) Ranked() []BatchResult {
	ranked := make([]BatchResult, len(r.Results))
	copy(ranked, r.Results)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.OK() != b.OK() {
			return a.OK()
		}
		if !a.OK() {
			return false
		}
		return a.FOM > b.FOM
	})
	return ranked
}

// Failed returns the number of mixtures that could not be evaluated.
func (r *BatchReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK() {
			n++
		}
	}
	return n
}

// BatchEvaluator screens many mixtures against one property engine on a
// bounded worker pool.
type BatchEvaluator struct {
	engine      ports.PropertyEngine
	state       domain.StateCondition
	concurrency int
	metrics     ports.MetricsCollector
	logger      zerolog.Logger
}

// BatchOption configures a BatchEvaluator.
type BatchOption func(*BatchEvaluator)

// WithBatchState sets the state condition for every mixture.
func WithBatchState(state domain.StateCondition) BatchOption {
	return func(b *BatchEvaluator) { b.state = state }
}

// WithConcurrency sets how many mixtures are evaluated at once.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchEvaluator) { b.concurrency = n }
}

// WithMetrics sets the collector for evaluation metrics.
func WithMetrics(collector ports.MetricsCollector) BatchOption {
	return func(b *BatchEvaluator) { b.metrics = collector }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) BatchOption {
	return func(b *BatchEvaluator) { b.logger = logger }
}

// NewBatchEvaluator creates an evaluator for engine.
func NewBatchEvaluator(engine ports.PropertyEngine, opts ...BatchOption) (*BatchEvaluator, error) {
	if engine == nil {
		return nil, fmt.Errorf("property engine is required")
	}

	b := &BatchEvaluator{
		engine:      engine,
		state:       domain.ReferenceState(),
		concurrency: defaultConcurrency,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", b.concurrency)
	}
	if err := b.state.Validate(); err != nil {
		return nil, fmt.Errorf("invalid state condition: %w", err)
	}
	return b, nil
}

// Evaluate computes properties and the figure of merit of every spec.
// A failing mixture is recorded in its result and never stops the others;
// only cancellation of ctx aborts the run, returning ctx's error.
func (b *BatchEvaluator) Evaluate(ctx context.Context, specs []MixtureSpec) (*BatchReport, error) {
	report := &BatchReport{
		RunID:     uuid.New(),
		Engine:    b.engine.Name(),
		State:     b.state,
		StartedAt: time.Now(),
		Results:   make([]BatchResult, len(specs)),
	}
	logger := b.logger.With().Str("run_id", report.RunID.String()).Str("engine", report.Engine).Logger()
	logger.Info().Int("mixtures", len(specs)).Int("concurrency", b.concurrency).Msg("screening started")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, spec := range specs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := b.evaluateOne(gctx, spec)
			report.Results[i] = res

			if res.Err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			b.record(res)
			if res.Err != nil {
				logger.Warn().Err(res.Err).Str("mixture", res.Name).Str("status", res.Status()).Msg("mixture evaluation failed")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn().Err(err).Msg("screening aborted")
		return nil, err
	}

	report.Elapsed = time.Since(report.StartedAt)
	if b.metrics != nil {
		b.metrics.RecordLatency("batch_evaluate", report.Elapsed, map[string]string{"engine": report.Engine})
	}
	logger.Info().
		Int("mixtures", len(specs)).
		Int("failed", report.Failed()).
		Dur("elapsed", report.Elapsed).
		Msg("screening finished")
	return report, nil
}

func (b *BatchEvaluator) evaluateOne(ctx context.Context, spec MixtureSpec) BatchResult {
	start := time.Now()
	res := BatchResult{
		Name:       spec.Name,
		Components: append([]string(nil), spec.Components...),
	}

	env, err := NewMixtureEnvironment(spec.Masses, spec.Components, b.engine, WithState(b.state))
	if err != nil {
		res.Err = err
		res.Elapsed = time.Since(start)
		return res
	}
	res.MassFractions = env.Composition().MassFractions()

	res.Properties, res.FOM, res.Err = env.Evaluate(ctx)
	res.Elapsed = time.Since(start)
	return res
}

func (b *BatchEvaluator) record(res BatchResult) {
	if b.metrics == nil {
		return
	}
	b.metrics.RecordCounter("mixture_evaluations_total", 1, map[string]string{"status": res.Status()})
	if res.OK() {
		b.metrics.RecordHistogram("fom_value", res.FOM, nil)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, domain.ErrInvalidComposition):
		return StatusInvalidComposition
	case errors.Is(err, domain.ErrPropertyLookup):
		return StatusLookupError
	case errors.Is(err, domain.ErrInvalidPropertyValue):
		return StatusInvalidProperty
	default:
		return StatusError
	}
}
