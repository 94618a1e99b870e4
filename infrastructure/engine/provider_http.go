package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ahrav/go-thermofom/internal/domain"
	"github.com/ahrav/go-thermofom/internal/ports"
)

// HTTPProviderName is the registry name of the remote property service
// provider.
const HTTPProviderName = "http"

const (
	propertiesPath   = "/v1/mixtures/properties"
	maxResponseBytes = 1 << 20
)

func init() {
	RegisterProviderFactory(HTTPProviderName, func(config ClientConfig) (CoreEngine, error) {
		return NewHTTPEngine(config)
	})
}

var _ CoreEngine = (*HTTPEngine)(nil)

// HTTPEngine requests mixture properties from a remote property service.
type HTTPEngine struct {
	baseURL    string
	httpClient *http.Client
	classifier ErrorClassifier
}

// NewHTTPEngine creates an HTTPEngine for config.BaseURL. When
// config.HTTPClient is nil a client with config.Timeout is used.
func NewHTTPEngine(config ClientConfig) (*HTTPEngine, error) {
	baseURL, err := ValidateBaseURL(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: ValidateTimeout(config.Timeout)}
	}

	return &HTTPEngine{
		baseURL:    baseURL,
		httpClient: httpClient,
		classifier: ErrorClassifier{Provider: HTTPProviderName},
	}, nil
}

// Name returns "http".
func (e *HTTPEngine) Name() string { return HTTPProviderName }

type propertiesRequest struct {
	Components    []string  `json:"components"`
	MassFractions []float64 `json:"mass_fractions"`
	TemperatureK  float64   `json:"temperature_k"`
	PressurePa    float64   `json:"pressure_pa"`
}

type propertiesResponse struct {
	Density             *float64 `json:"density"`
	Viscosity           *float64 `json:"viscosity"`
	ThermalConductivity *float64 `json:"thermal_conductivity"`
	HeatCapacity        *float64 `json:"heat_capacity"`
}

type errorResponse struct {
	Error      string   `json:"error"`
	Unresolved []string `json:"unresolved"`
	Property   string   `json:"property"`
}

// Estimate implements CoreEngine.
func (e *HTTPEngine) Estimate(ctx context.Context, req domain.PropertyRequest) (domain.PropertyVector, error) {
	body, err := json.Marshal(propertiesRequest{
		Components:    req.Components,
		MassFractions: req.MassFractions,
		TemperatureK:  req.State.TemperatureK,
		PressurePa:    req.State.PressurePa,
	})
	if err != nil {
		return domain.PropertyVector{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+propertiesPath, bytes.NewReader(body))
	if err != nil {
		return domain.PropertyVector{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.PropertyVector{}, e.classifier.ClassifyContextError(ctxErr)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.PropertyVector{}, e.classifier.ClassifyContextError(err)
		}
		return domain.PropertyVector{}, NewProviderError(HTTPProviderName, ErrorTypeNetwork, 0, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.PropertyVector{}, NewProviderError(HTTPProviderName, ErrorTypeNetwork, resp.StatusCode, "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.PropertyVector{}, e.statusError(req, resp.StatusCode, raw)
	}

	var decoded propertiesResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.PropertyVector{}, NewProviderError(HTTPProviderName, ErrorTypeUnknown, resp.StatusCode,
			"decode response", fmt.Errorf("%w: %v", ports.ErrInvalidResponse, err))
	}

	fields := []struct {
		name  string
		value *float64
	}{
		{domain.PropertyDensity, decoded.Density},
		{domain.PropertyViscosity, decoded.Viscosity},
		{domain.PropertyThermalConductivity, decoded.ThermalConductivity},
		{domain.PropertyHeatCapacity, decoded.HeatCapacity},
	}
	for _, f := range fields {
		if f.value == nil {
			return domain.PropertyVector{}, NewProviderError(HTTPProviderName, ErrorTypeUnknown, resp.StatusCode,
				"decode response", fmt.Errorf("%w: missing %s", ports.ErrInvalidResponse, f.name))
		}
	}

	return domain.PropertyVector{
		Density:             *decoded.Density,
		Viscosity:           *decoded.Viscosity,
		ThermalConductivity: *decoded.ThermalConductivity,
		HeatCapacity:        *decoded.HeatCapacity,
	}, nil
}

// statusError converts a non-2xx response. 404 and 422 mean the service
// could not produce properties for this mixture.
func (e *HTTPEngine) statusError(req domain.PropertyRequest, status int, raw []byte) error {
	var body errorResponse
	message := ""
	if err := json.Unmarshal(raw, &body); err == nil {
		message = body.Error
	} else {
		message = string(bytes.TrimSpace(raw))
	}

	if status == http.StatusNotFound || status == http.StatusUnprocessableEntity {
		components := req.Components
		if len(body.Unresolved) > 0 {
			components = body.Unresolved
		}
		if message == "" {
			message = http.StatusText(status)
		}
		return domain.NewPropertyLookupError(components, body.Property,
			e.classifier.ClassifyHTTPError(status, message, nil))
	}

	return e.classifier.ClassifyHTTPError(status, message, nil)
}
