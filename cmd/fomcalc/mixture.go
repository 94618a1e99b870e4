package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-thermofom/internal/application"
	"github.com/ahrav/go-thermofom/internal/domain"
)

// parseComponents turns name=mass pairs into aligned slices. The split is
// at the last '=', so names may contain '='.
func parseComponents(pairs []string) ([]float64, []string, error) {
	if len(pairs) == 0 {
		return nil, nil, fmt.Errorf("at least one --component name=mass is required")
	}

	masses := make([]float64, 0, len(pairs))
	names := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		i := strings.LastIndex(pair, "=")
		if i < 0 {
			return nil, nil, fmt.Errorf("component %q: expected name=mass", pair)
		}
		name := strings.TrimSpace(pair[:i])
		mass, err := strconv.ParseFloat(strings.TrimSpace(pair[i+1:]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("component %q: invalid mass: %w", pair, err)
		}
		names = append(names, name)
		masses = append(masses, mass)
	}
	return masses, names, nil
}

type mixtureFlags struct {
	components []string
	json       bool
}

func (f *mixtureFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.components, "component", "c", nil, "component as name=mass (repeatable)")
	cmd.Flags().BoolVar(&f.json, "json", false, "write JSON instead of a table")
}

// mixtureOutput is the JSON shape of a single-mixture result.
type mixtureOutput struct {
	Components    []string              `json:"components"`
	MassFractions []float64             `json:"mass_fractions"`
	State         domain.StateCondition `json:"state"`
	Engine        string                `json:"engine"`
	Properties    domain.PropertyVector `json:"properties"`
	FOM           *float64              `json:"fom,omitempty"`
}

func (c *cli) newEnvironment(ctx context.Context, flags *mixtureFlags) (*application.MixtureEnvironment, string, error) {
	masses, names, err := parseComponents(flags.components)
	if err != nil {
		return nil, "", err
	}
	client, err := c.newEngine(ctx)
	if err != nil {
		return nil, "", err
	}
	env, err := application.NewMixtureEnvironment(masses, names, client, application.WithState(c.cfg.StateCondition()))
	if err != nil {
		return nil, "", err
	}
	return env, client.Name(), nil
}

func (c *cli) newPropertiesCmd() *cobra.Command {
	flags := &mixtureFlags{}
	cmd := &cobra.Command{
		Use:   "properties",
		Short: "Estimate the thermophysical properties of a mixture",
		Example: `  fomcalc properties -c water=70 -c "ethylene glycol=30"
  fomcalc properties -c water=1 -c ethanol=1 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, engineName, err := c.newEnvironment(cmd.Context(), flags)
			if err != nil {
				return err
			}
			props, err := env.ThermophysicalProperties(cmd.Context())
			if err != nil {
				return err
			}
			out := newMixtureOutput(env, engineName, props)
			if flags.json {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			return writeMixtureTable(cmd.OutOrStdout(), out)
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *cli) newFOMCmd() *cobra.Command {
	flags := &mixtureFlags{}
	cmd := &cobra.Command{
		Use:   "fom",
		Short: "Compute the figure of merit of a mixture",
		Example: `  fomcalc fom -c water=70 -c "propylene glycol=30"
  fomcalc fom -c water=1 --engine http --engine-url https://props.example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, engineName, err := c.newEnvironment(cmd.Context(), flags)
			if err != nil {
				return err
			}
			props, fom, err := env.Evaluate(cmd.Context())
			if err != nil {
				return err
			}
			out := newMixtureOutput(env, engineName, props)
			out.FOM = &fom
			if flags.json {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			return writeMixtureTable(cmd.OutOrStdout(), out)
		},
	}
	flags.register(cmd)
	return cmd
}

func newMixtureOutput(env *application.MixtureEnvironment, engineName string, props domain.PropertyVector) mixtureOutput {
	return mixtureOutput{
		Components:    env.Composition().Components(),
		MassFractions: env.Composition().MassFractions(),
		State:         env.State(),
		Engine:        engineName,
		Properties:    props,
	}
}

var propertyUnits = [4]string{"kg/m3", "Pa.s", "W/(m.K)", "J/(kg.K)"}

func writeMixtureTable(w io.Writer, out mixtureOutput) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "COMPONENT\tMASS FRACTION")
	for i, name := range out.Components {
		fmt.Fprintf(tw, "%s\t%.6f\n", name, out.MassFractions[i])
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "PROPERTY\tVALUE\tUNIT\n")
	for i, v := range out.Properties.Values() {
		fmt.Fprintf(tw, "%s\t%.6g\t%s\n", domain.PropertyNames[i], v, propertyUnits[i])
	}
	if out.FOM != nil {
		fmt.Fprintf(tw, "fom\t%.6g\t\n", *out.FOM)
	}
	fmt.Fprintf(tw, "\nengine %s at T=%g K, p=%g Pa\n", out.Engine, out.State.TemperatureK, out.State.PressurePa)
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
