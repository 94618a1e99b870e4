package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-thermofom/internal/domain"
	"github.com/ahrav/go-thermofom/internal/ports"
)

// Config is the complete calculator configuration. It can be written as
// YAML or TOML; both use the same snake_case keys.
type Config struct {
	// Engine selects and tunes the property engine.
	Engine EngineConfig `yaml:"engine" toml:"engine"`
	// State is the temperature and pressure sent with every engine request.
	State StateConfig `yaml:"state" toml:"state"`
	// Batch tunes screening runs.
	Batch BatchConfig `yaml:"batch" toml:"batch"`
	// Mixtures lists the candidates screened by a batch run.
	Mixtures []MixtureConfig `yaml:"mixtures" toml:"mixtures" validate:"dive"`
}

// EngineConfig selects a provider and the resilience middleware around it.
type EngineConfig struct {
	// Provider is the registered engine name.
	Provider string `yaml:"provider" toml:"provider" validate:"required,oneof=ideal http"`
	// BaseURL is the property service root, required for the http provider.
	BaseURL string `yaml:"base_url" toml:"base_url" validate:"required_if=Provider http,omitempty,url"`
	// Database is a YAML or SQLite component database for the ideal
	// provider. Empty selects the built-in data.
	Database string `yaml:"database" toml:"database"`
	// TimeoutMs bounds each engine attempt; 0 disables the timeout.
	TimeoutMs int `yaml:"timeout_ms" toml:"timeout_ms" validate:"min=0,max=600000"`

	Retry          RetryConfig          `yaml:"retry" toml:"retry"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit" toml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" toml:"circuit_breaker"`
}

// RetryConfig controls retries of transient engine failures.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt; 0
	// disables retrying.
	MaxRetries    int `yaml:"max_retries" toml:"max_retries" validate:"min=0,max=10"`
	InitialWaitMs int `yaml:"initial_wait_ms" toml:"initial_wait_ms" validate:"min=0,max=60000"`
	MaxWaitMs     int `yaml:"max_wait_ms" toml:"max_wait_ms" validate:"min=0,max=300000"`
}

// RateLimitConfig paces engine requests. A zero rate disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second" validate:"min=0"`
	Burst             int     `yaml:"burst" toml:"burst" validate:"min=0"`
}

// CircuitBreakerConfig trips after consecutive engine failures. Zero
// MaxFailures disables the breaker.
type CircuitBreakerConfig struct {
	MaxFailures int `yaml:"max_failures" toml:"max_failures" validate:"min=0,max=1000"`
	CooldownMs  int `yaml:"cooldown_ms" toml:"cooldown_ms" validate:"min=0,max=3600000"`
}

// StateConfig is the state condition in configuration form.
type StateConfig struct {
	TemperatureK float64 `yaml:"temperature_k" toml:"temperature_k" validate:"gt=0"`
	PressurePa   float64 `yaml:"pressure_pa" toml:"pressure_pa" validate:"gt=0"`
}

// BatchConfig tunes batch screening.
type BatchConfig struct {
	// Concurrency is the number of mixtures evaluated at once.
	Concurrency int `yaml:"concurrency" toml:"concurrency" validate:"min=1,max=256"`
}

// MixtureConfig names a candidate mixture.
type MixtureConfig struct {
	Name       string            `yaml:"name" toml:"name" validate:"required,max=255"`
	Components []ComponentConfig `yaml:"components" toml:"components" validate:"required,min=1,dive"`
}

// ComponentConfig is one component of a candidate mixture.
type ComponentConfig struct {
	Name string  `yaml:"name" toml:"name" validate:"required"`
	Mass float64 `yaml:"mass" toml:"mass" validate:"gte=0"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	ref := domain.ReferenceState()
	return Config{
		Engine: EngineConfig{
			Provider:  "ideal",
			TimeoutMs: 10000,
			Retry: RetryConfig{
				MaxRetries:    2,
				InitialWaitMs: 200,
				MaxWaitMs:     5000,
			},
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures: 5,
				CooldownMs:  30000,
			},
		},
		State: StateConfig{
			TemperatureK: ref.TemperatureK,
			PressurePa:   ref.PressurePa,
		},
		Batch: BatchConfig{Concurrency: 4},
	}
}

var configValidator = validator.New()

// Validate checks struct tags and that mixture names are unique.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Mixtures))
	for _, m := range c.Mixtures {
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("duplicate mixture name %q", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

// StateCondition returns the configured state as a domain value.
func (c *Config) StateCondition() domain.StateCondition {
	return domain.StateCondition{TemperatureK: c.State.TemperatureK, PressurePa: c.State.PressurePa}
}

// MixtureSpecs converts the configured mixtures for a batch run.
func (c *Config) MixtureSpecs() []MixtureSpec {
	specs := make([]MixtureSpec, 0, len(c.Mixtures))
	for _, m := range c.Mixtures {
		spec := MixtureSpec{Name: m.Name}
		for _, comp := range m.Components {
			spec.Components = append(spec.Components, comp.Name)
			spec.Masses = append(spec.Masses, comp.Mass)
		}
		specs = append(specs, spec)
	}
	return specs
}

// Timeout returns the per-attempt engine timeout.
func (e EngineConfig) Timeout() time.Duration { return ms(e.TimeoutMs) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// LoadConfig reads a YAML (.yaml, .yml) or TOML (.toml) configuration
// file. Unset keys keep their DefaultConfig values and unknown keys are
// rejected. The result is validated.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ports.ErrConfigNotFound, cleanPath)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(cleanPath)); ext {
	case ".yaml", ".yml":
		return ParseConfigYAML(data)
	case ".toml":
		return ParseConfigTOML(data)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
}

// ParseConfigYAML decodes and validates a YAML configuration.
func ParseConfigYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseConfigTOML decodes and validates a TOML configuration.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("TOML decode failed: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("TOML decode failed: unknown keys %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
