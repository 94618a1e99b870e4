package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-thermofom/infrastructure/componentdb"
	"github.com/ahrav/go-thermofom/infrastructure/engine"
	"github.com/ahrav/go-thermofom/infrastructure/middleware"
	"github.com/ahrav/go-thermofom/internal/application"
	"github.com/ahrav/go-thermofom/internal/logging"
)

const appName = "fomcalc"

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath  string
	logLevel    string
	metricsFile string
	engine      string
	engineURL   string
	database    string
	temperature float64
	pressure    float64
}

// cli carries the state built once per invocation.
type cli struct {
	opts     globalOptions
	stderr   io.Writer
	cfg      *application.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *middleware.PrometheusMetrics
	loader   *componentdb.Loader
}

// execute runs the command line and writes the metrics file, if requested,
// even when the command fails.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{stderr: stderr}
	root := c.newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	runErr := root.ExecuteContext(ctx)
	if c.registry != nil && c.opts.metricsFile != "" {
		if err := writeMetricsFile(c.opts.metricsFile, c.registry); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

func (c *cli) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Figure of merit calculator for heat-transfer fluid mixtures",
		Long: `fomcalc estimates density, viscosity, thermal conductivity and heat
capacity of liquid mixtures through a property engine and combines them into
the figure of merit rho^0.2 * mu^-0.4 * k^0.2 * cp^2.

Components are given as name=mass pairs; masses are normalized to mass
fractions, so any consistent unit works.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.opts.configPath, "config", "", "configuration file (.yaml, .yml or .toml)")
	flags.StringVar(&c.opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error, off (default info, or $"+logging.EnvLogLevel+")")
	flags.StringVar(&c.opts.metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file on exit")
	flags.StringVar(&c.opts.engine, "engine", "", "property engine: ideal or http")
	flags.StringVar(&c.opts.engineURL, "engine-url", "", "base URL of the http property engine")
	flags.StringVar(&c.opts.database, "database", "", "component database for the ideal engine (.yaml, .yml, .db, .sqlite)")
	flags.Float64Var(&c.opts.temperature, "temperature", 0, "temperature in kelvin (default 298.15)")
	flags.Float64Var(&c.opts.pressure, "pressure", 0, "pressure in pascal (default 101325)")

	root.AddCommand(
		c.newPropertiesCmd(),
		c.newFOMCmd(),
		c.newScreenCmd(),
		c.newComponentsCmd(),
	)
	return root
}

// setup loads configuration, applies flag overrides and builds the logger
// and metrics registry.
func (c *cli) setup(cmd *cobra.Command) error {
	c.logger = logging.New(appName, logging.Options{Level: c.opts.logLevel, Out: c.stderr})

	cfg := application.DefaultConfig()
	if c.opts.configPath != "" {
		loaded, err := application.LoadConfig(c.opts.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = *loaded
		c.logger.Debug().Str("file", c.opts.configPath).Msg("configuration loaded")
	}

	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Engine.Provider = c.opts.engine
	}
	if flags.Changed("engine-url") {
		cfg.Engine.BaseURL = c.opts.engineURL
	}
	if flags.Changed("database") {
		cfg.Engine.Database = c.opts.database
	}
	if flags.Changed("temperature") {
		cfg.State.TemperatureK = c.opts.temperature
	}
	if flags.Changed("pressure") {
		cfg.State.PressurePa = c.opts.pressure
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	c.cfg = &cfg

	c.registry = prometheus.NewRegistry()
	c.metrics = middleware.NewPrometheusMetrics(c.registry)
	c.loader = componentdb.NewLoader()
	return nil
}

// newEngine builds the configured engine with logging, metrics and tracing.
func (c *cli) newEngine(ctx context.Context) (*engine.Client, error) {
	logger := c.logger
	return application.NewEngine(ctx, c.cfg.Engine, application.EngineDeps{
		Loader:         c.loader,
		Metrics:        c.metrics,
		Logger:         &logger,
		TracingService: appName,
	})
}

func writeMetricsFile(path string, gatherer prometheus.Gatherer) (retErr error) {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create dirs: %w", err)
		}
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("close metrics file: %w", err)
		}
	}()

	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}
