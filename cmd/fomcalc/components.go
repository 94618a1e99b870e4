package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-thermofom/infrastructure/componentdb"
)

func (c *cli) newComponentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "components",
		Short: "Inspect or export the component database of the ideal engine",
	}
	cmd.AddCommand(c.newComponentsListCmd(), c.newComponentsExportCmd())
	return cmd
}

func (c *cli) newComponentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known components and their reference-state data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := c.loader.Load(cmd.Context(), c.cfg.Engine.Database)
			if err != nil {
				return fmt.Errorf("load component database: %w", err)
			}
			return writeComponentsTable(cmd.OutOrStdout(), db)
		},
	}
}

func (c *cli) newComponentsExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the component database as YAML or SQLite",
		Example: `  fomcalc components export --out components.db
  fomcalc components export --database components.db --out components.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := c.loader.Load(cmd.Context(), c.cfg.Engine.Database)
			if err != nil {
				return fmt.Errorf("load component database: %w", err)
			}
			if err := exportDatabase(cmd, db, out); err != nil {
				return err
			}
			c.logger.Info().Str("file", out).Int("components", db.Len()).Msg("component database exported")
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (.yaml, .yml, .db, .sqlite, .sqlite3)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func exportDatabase(cmd *cobra.Command, db *componentdb.Database, path string) (retErr error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return componentdb.WriteSQLite(cmd.Context(), path, db)
	case ".yaml", ".yml":
		f, err := os.Create(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer func() {
			if err := f.Close(); err != nil && retErr == nil {
				retErr = fmt.Errorf("close %s: %w", path, err)
			}
		}()
		return componentdb.WriteYAML(f, db)
	default:
		return fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
}

func writeComponentsTable(w io.Writer, db *componentdb.Database) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "NAME\tCAS\tM [g/mol]\tRHO [kg/m3]\tMU [Pa.s]\tK [W/(m.K)]\tCP [J/(kg.K)]\tALIASES")
	for _, comp := range db.Components() {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t%g\t%g\t%g\t%s\n",
			comp.Name, comp.CAS, comp.MolarMass, comp.Density, comp.Viscosity,
			comp.ThermalConductivity, comp.HeatCapacity, strings.Join(comp.Aliases, ", "))
	}
	ref := db.ReferenceState()
	fmt.Fprintf(tw, "\n%d components at T=%g K, p=%g Pa\n", db.Len(), ref.TemperatureK, ref.PressurePa)
	return tw.Flush()
}
