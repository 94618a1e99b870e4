package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-thermofom/infrastructure/componentdb"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), append([]string{"--log-level", "off"}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

// TestParseComponents covers the name=mass flag syntax.
func TestParseComponents(t *testing.T) {
	tests := []struct {
		name       string
		pairs      []string
		wantMasses []float64
		wantNames  []string
		wantErr    string
	}{
		{
			name:       "two components",
			pairs:      []string{"water=70", " ethylene glycol = 30 "},
			wantMasses: []float64{70, 30},
			wantNames:  []string{"water", "ethylene glycol"},
		},
		{
			name:       "name containing equals",
			pairs:      []string{"a=b=1.5"},
			wantMasses: []float64{1.5},
			wantNames:  []string{"a=b"},
		},
		{name: "empty", pairs: nil, wantErr: "at least one"},
		{name: "missing mass", pairs: []string{"water"}, wantErr: "expected name=mass"},
		{name: "bad mass", pairs: []string{"water=lots"}, wantErr: "invalid mass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			masses, names, err := parseComponents(tt.pairs)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMasses, masses)
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

// TestFOMCommand_PureWater computes the figure of merit of water with the
// ideal engine.
func TestFOMCommand_PureWater(t *testing.T) {
	stdout, _, err := run(t, "fom", "-c", "water=1", "--json")
	require.NoError(t, err)

	var out mixtureOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, []string{"water"}, out.Components)
	assert.Equal(t, []float64{1}, out.MassFractions)
	assert.Equal(t, "ideal", out.Engine)
	assert.InDelta(t, 997.05, out.Properties.Density, 1e-9)
	require.NotNil(t, out.FOM)
	assert.Greater(t, *out.FOM, 0.0)
}

// TestPropertiesCommand_Table prints the mixture table with units.
func TestPropertiesCommand_Table(t *testing.T) {
	stdout, _, err := run(t, "properties", "-c", "water=50", "-c", "ethanol=50")
	require.NoError(t, err)

	assert.Contains(t, stdout, "water")
	assert.Contains(t, stdout, "0.500000")
	assert.Contains(t, stdout, "878.471")
	assert.Contains(t, stdout, "kg/m3")
	assert.NotContains(t, stdout, "fom")
}

// TestFOMCommand_Errors surfaces composition and lookup failures.
func TestFOMCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no components", []string{"fom"}, "at least one"},
		{"zero total mass", []string{"fom", "-c", "water=0"}, "composition"},
		{"negative mass", []string{"fom", "-c", "water=-1", "-c", "ethanol=2"}, "composition"},
		{"unknown component", []string{"fom", "-c", "unobtainium=1"}, "unobtainium"},
		{"unsupported state", []string{"fom", "-c", "water=1", "--temperature", "350"}, "unsupported state"},
		{"http without url", []string{"fom", "-c", "water=1", "--engine", "http"}, "invalid configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestScreenCommand ranks configured mixtures and keeps failed ones.
func TestScreenCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "screen.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
batch:
  concurrency: 2
mixtures:
  - name: water
    components:
      - {name: water, mass: 1}
  - name: ethanol
    components:
      - {name: ethanol, mass: 1}
  - name: typo
    components:
      - {name: ethanl, mass: 1}
`), 0o600))
	metricsPath := filepath.Join(dir, "metrics.prom")

	stdout, _, err := run(t, "--config", configPath, "--metrics-file", metricsPath, "screen", "--json")
	require.NoError(t, err)

	var out screenOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Len(t, out.Results, 3)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, "water", out.Results[0].Name)
	assert.Equal(t, 1, out.Results[0].Rank)
	assert.Equal(t, "ethanol", out.Results[1].Name)
	assert.Equal(t, "typo", out.Results[2].Name)
	assert.Equal(t, "lookup_error", out.Results[2].Status)
	assert.Contains(t, out.Results[2].Error, "did you mean")
	assert.Nil(t, out.Results[2].FOM)

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "mixture_evaluations_total")
	assert.Contains(t, string(metrics), "engine_requests_total")
}

// TestScreenCommand_Failures rejects empty batches and batches where every
// mixture failed.
func TestScreenCommand_Failures(t *testing.T) {
	dir := t.TempDir()

	_, _, err := run(t, "screen")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no mixtures")

	configPath := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
[[mixtures]]
name = "only"
[[mixtures.components]]
name = "unobtainium"
mass = 1.0
`), 0o600))

	stdout, _, err := run(t, "--config", configPath, "screen")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the 1 mixtures")
	assert.Contains(t, stdout, "lookup_error")
}

// TestComponentsCommands lists the built-in database and exports it.
func TestComponentsCommands(t *testing.T) {
	stdout, _, err := run(t, "components", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "water")
	assert.Contains(t, stdout, "7732-18-5")
	assert.Contains(t, stdout, "T=298.15 K")

	dir := t.TempDir()
	db, err := componentdb.Default()
	require.NoError(t, err)

	sqlitePath := filepath.Join(dir, "components.db")
	_, _, err = run(t, "components", "export", "--out", sqlitePath)
	require.NoError(t, err)
	back, err := componentdb.OpenSQLite(context.Background(), sqlitePath)
	require.NoError(t, err)
	assert.Equal(t, db.Len(), back.Len())

	yamlPath := filepath.Join(dir, "components.yaml")
	_, _, err = run(t, "--database", sqlitePath, "components", "export", "-o", yamlPath)
	require.NoError(t, err)
	data, err := os.ReadFile(yamlPath)
	require.NoError(t, err)
	fromYAML, err := componentdb.ParseYAML(data)
	require.NoError(t, err)
	assert.Equal(t, db.Components(), fromYAML.Components())

	// The exported database drives the ideal engine.
	_, _, err = run(t, "--database", yamlPath, "fom", "-c", "water=1")
	require.NoError(t, err)

	_, _, err = run(t, "components", "export", "--out", filepath.Join(dir, "components.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export format")
}
