package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-thermofom/internal/application"
	"github.com/ahrav/go-thermofom/internal/domain"
)

type screenResult struct {
	Rank          int                    `json:"rank"`
	Name          string                 `json:"name"`
	Components    []string               `json:"components"`
	MassFractions []float64              `json:"mass_fractions,omitempty"`
	Properties    *domain.PropertyVector `json:"properties,omitempty"`
	FOM           *float64               `json:"fom,omitempty"`
	Status        string                 `json:"status"`
	Error         string                 `json:"error,omitempty"`
}

type screenOutput struct {
	RunID     string                `json:"run_id"`
	Engine    string                `json:"engine"`
	State     domain.StateCondition `json:"state"`
	StartedAt time.Time             `json:"started_at"`
	ElapsedMs int64                 `json:"elapsed_ms"`
	Results   []screenResult        `json:"results"`
}

func (c *cli) newScreenCmd() *cobra.Command {
	var (
		concurrency int
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Rank the mixtures of a configuration file by figure of merit",
		Long: `screen evaluates every mixture listed under "mixtures" in the configuration
file and prints them ranked by figure of merit. Mixtures that cannot be
evaluated are listed last with their error; they do not stop the run.`,
		Example: `  fomcalc screen --config candidates.yaml
  fomcalc screen --config candidates.toml --concurrency 8 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			specs := c.cfg.MixtureSpecs()
			if len(specs) == 0 {
				return fmt.Errorf("no mixtures to screen: add a \"mixtures\" section to the configuration file")
			}
			if cmd.Flags().Changed("concurrency") {
				c.cfg.Batch.Concurrency = concurrency
			}

			client, err := c.newEngine(cmd.Context())
			if err != nil {
				return err
			}
			evaluator, err := application.NewBatchEvaluator(client,
				application.WithBatchState(c.cfg.StateCondition()),
				application.WithConcurrency(c.cfg.Batch.Concurrency),
				application.WithMetrics(c.metrics),
				application.WithLogger(c.logger),
			)
			if err != nil {
				return err
			}

			report, err := evaluator.Evaluate(cmd.Context(), specs)
			if err != nil {
				return err
			}

			out := newScreenOutput(report)
			if asJSON {
				err = writeJSON(cmd.OutOrStdout(), out)
			} else {
				err = writeScreenTable(cmd.OutOrStdout(), out)
			}
			if err != nil {
				return err
			}

			if report.Failed() == len(report.Results) {
				return fmt.Errorf("none of the %d mixtures could be evaluated", len(report.Results))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "mixtures evaluated at once (default from config, 4)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "write JSON instead of a table")
	return cmd
}

func newScreenOutput(report *application.BatchReport) screenOutput {
	out := screenOutput{
		RunID:     report.RunID.String(),
		Engine:    report.Engine,
		State:     report.State,
		StartedAt: report.StartedAt,
		ElapsedMs: report.Elapsed.Milliseconds(),
	}
	for i, r := range report.Ranked() {
		res := screenResult{
			Rank:          i + 1,
			Name:          r.Name,
			Components:    r.Components,
			MassFractions: r.MassFractions,
			Status:        r.Status(),
		}
		if r.OK() {
			props, fom := r.Properties, r.FOM
			res.Properties = &props
			res.FOM = &fom
		} else {
			res.Error = r.Err.Error()
		}
		out.Results = append(out.Results, res)
	}
	return out
}

func writeScreenTable(w io.Writer, out screenOutput) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "RANK\tMIXTURE\tFOM\tDENSITY\tVISCOSITY\tCONDUCTIVITY\tHEAT CAPACITY\tSTATUS")
	for _, r := range out.Results {
		if r.FOM == nil {
			fmt.Fprintf(tw, "%d\t%s\t-\t-\t-\t-\t-\t%s: %s\n", r.Rank, r.Name, r.Status, r.Error)
			continue
		}
		p := r.Properties
		fmt.Fprintf(tw, "%d\t%s\t%.6g\t%.6g\t%.6g\t%.6g\t%.6g\t%s\n",
			r.Rank, r.Name, *r.FOM, p.Density, p.Viscosity, p.ThermalConductivity, p.HeatCapacity, r.Status)
	}
	fmt.Fprintf(tw, "\nrun %s, engine %s, %s\n", out.RunID, out.Engine, summary(out.Results))
	return tw.Flush()
}

func summary(results []screenResult) string {
	failed := 0
	for _, r := range results {
		if r.FOM == nil {
			failed++
		}
	}
	parts := []string{fmt.Sprintf("%d evaluated", len(results)-failed)}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	return strings.Join(parts, ", ")
}
