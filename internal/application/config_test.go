package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-thermofom/infrastructure/componentdb"
	"github.com/ahrav/go-thermofom/internal/domain"
	"github.com/ahrav/go-thermofom/internal/ports"
)

const yamlConfig = `
engine:
  provider: ideal
  retry:
    max_retries: 1
state:
  temperature_k: 298.15
  pressure_pa: 101325
batch:
  concurrency: 2
mixtures:
  - name: coolant
    components:
      - {name: water, mass: 1}
      - {name: ethylene glycol, mass: 1}
  - name: water
    components:
      - {name: water, mass: 1}
`

const tomlConfig = `
[engine]
provider = "http"
base_url = "https://props.example.com"
timeout_ms = 2500

[engine.rate_limit]
requests_per_second = 5.0
burst = 2

[batch]
concurrency = 8

[[mixtures]]
name = "coolant"

  [[mixtures.components]]
  name = "water"
  mass = 3.0

  [[mixtures.components]]
  name = "glycerol"
  mass = 1.0
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// TestLoadConfig_YAML decodes YAML on top of the defaults.
func TestLoadConfig_YAML(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "fomcalc.yaml", yamlConfig))
	require.NoError(t, err)

	assert.Equal(t, "ideal", cfg.Engine.Provider)
	assert.Equal(t, 1, cfg.Engine.Retry.MaxRetries)
	assert.Equal(t, 200, cfg.Engine.Retry.InitialWaitMs, "unset keys keep defaults")
	assert.Equal(t, 2, cfg.Batch.Concurrency)
	assert.Equal(t, domain.ReferenceState(), cfg.StateCondition())

	specs := cfg.MixtureSpecs()
	require.Len(t, specs, 2)
	assert.Equal(t, MixtureSpec{
		Name:       "coolant",
		Components: []string{"water", "ethylene glycol"},
		Masses:     []float64{1, 1},
	}, specs[0])
}

// TestLoadConfig_TOML decodes the same structure from TOML.
func TestLoadConfig_TOML(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "fomcalc.toml", tomlConfig))
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Engine.Provider)
	assert.Equal(t, "https://props.example.com", cfg.Engine.BaseURL)
	assert.Equal(t, 2500*time.Millisecond, cfg.Engine.Timeout())
	assert.Equal(t, 5.0, cfg.Engine.RateLimit.RequestsPerSecond)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	assert.Equal(t, domain.ReferenceTemperatureK, cfg.State.TemperatureK)

	specs := cfg.MixtureSpecs()
	require.Len(t, specs, 1)
	assert.Equal(t, []float64{3, 1}, specs[0].Masses)
}

// TestLoadConfig_Errors rejects bad files with a useful message.
func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unknown yaml key", "c.yaml", "engine:\n  provder: ideal\n", "provder"},
		{"unknown toml key", "c.toml", "[engine]\nprovder = \"ideal\"\n", "engine.provder"},
		{"unknown provider", "c.yaml", "engine:\n  provider: magic\n", "Provider"},
		{"http without url", "c.yaml", "engine:\n  provider: http\n", "BaseURL"},
		{"negative mass", "c.yaml", "mixtures:\n  - name: a\n    components: [{name: water, mass: -1}]\n", "Mass"},
		{"duplicate mixtures", "c.yaml", "mixtures:\n  - name: a\n    components: [{name: water, mass: 1}]\n  - name: a\n    components: [{name: water, mass: 2}]\n", "duplicate mixture name"},
		{"zero concurrency", "c.toml", "[batch]\nconcurrency = 0\n", "Concurrency"},
		{"bad extension", "c.json", "{}", "unsupported config format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestLoadConfig_Missing wraps ErrConfigNotFound.
func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ports.ErrConfigNotFound)
}

// TestParseConfigYAML_Empty yields the defaults.
func TestParseConfigYAML_Empty(t *testing.T) {
	cfg, err := ParseConfigYAML(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

// TestNewEngine_Ideal builds a working ideal engine from configuration.
func TestNewEngine_Ideal(t *testing.T) {
	collector := newCountingCollector()
	cfg := DefaultConfig()

	client, err := NewEngine(context.Background(), cfg.Engine, EngineDeps{Metrics: collector, TracingService: "fomcalc-test"})
	require.NoError(t, err)
	assert.Equal(t, "ideal", client.Name())

	env, err := NewMixtureEnvironment([]float64{1, 1}, []string{"water", "ethanol"}, client)
	require.NoError(t, err)
	fom, err := env.FOM(context.Background())
	require.NoError(t, err)
	assert.Greater(t, fom, 0.0)
	assert.Equal(t, 1.0, collector.counters["engine_requests_total/success"])

	_, err = env.ThermophysicalProperties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, collector.counters["engine_requests_total/success"])
}

// TestNewEngine_Database loads a component database file through the loader.
func TestNewEngine_Database(t *testing.T) {
	db, err := componentdb.New(domain.ReferenceState(), []componentdb.Component{{
		Name: "coolant-x", MolarMass: 50, Density: 1000, Viscosity: 1e-3, ThermalConductivity: 0.5, HeatCapacity: 3000,
	}})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "custom.db")
	require.NoError(t, componentdb.WriteSQLite(context.Background(), path, db))

	cfg := DefaultConfig()
	cfg.Engine.Database = path
	client, err := NewEngine(context.Background(), cfg.Engine, EngineDeps{Loader: componentdb.NewLoader()})
	require.NoError(t, err)

	env, err := NewMixtureEnvironment([]float64{1}, []string{"Coolant-X"}, client)
	require.NoError(t, err)
	props, err := env.ThermophysicalProperties(context.Background())
	require.NoError(t, err)
	assert.InEpsilon(t, 1000.0, props.Density, 1e-12)

	env, err = NewMixtureEnvironment([]float64{1}, []string{"water"}, client)
	require.NoError(t, err)
	_, err = env.FOM(context.Background())
	assert.ErrorIs(t, err, domain.ErrPropertyLookup)
}

// TestNewEngine_Errors reports configuration problems as ConfigError.
func TestNewEngine_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Database = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewEngine(context.Background(), cfg.Engine, EngineDeps{})
	var cfgErr *ports.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "engine.database", cfgErr.ConfigKey)

	cfg = DefaultConfig()
	cfg.Engine.Provider = "http"
	cfg.Engine.BaseURL = "not a url"
	_, err = NewEngine(context.Background(), cfg.Engine, EngineDeps{})
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "engine.provider", cfgErr.ConfigKey)
}
