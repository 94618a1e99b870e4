// Package testutils holds test doubles shared across packages.
package testutils

import (
	"context"
	"strings"
	"sync"

	"github.com/ahrav/go-thermofom/internal/domain"
	"github.com/ahrav/go-thermofom/internal/ports"
)

var _ ports.PropertyEngine = (*StubEngine)(nil)

// StubResponse is a canned engine result.
type StubResponse struct {
	Properties domain.PropertyVector
	Err        error
}

// StubEngine is a deterministic ports.PropertyEngine. It answers from
// ByMixture when the request's components (joined with "+") have an entry
// and falls back to Default otherwise. Every request is recorded.
type StubEngine struct {
	mu sync.Mutex

	Default   StubResponse
	ByMixture map[string]StubResponse
	EngineID  string

	requests []domain.PropertyRequest
}

// NewStubEngine returns a stub that always answers with props.
func NewStubEngine(props domain.PropertyVector) *StubEngine {
	return &StubEngine{
		Default:   StubResponse{Properties: props},
		ByMixture: make(map[string]StubResponse),
		EngineID:  "stub",
	}
}

// NewFailingStubEngine returns a stub that always fails with err.
func NewFailingStubEngine(err error) *StubEngine {
	return &StubEngine{
		Default:   StubResponse{Err: err},
		ByMixture: make(map[string]StubResponse),
		EngineID:  "stub",
	}
}

// MixtureKey is the ByMixture key for components.
func MixtureKey(components ...string) string {
	return strings.Join(components, "+")
}

// Set registers a response for the mixture of components.
func (s *StubEngine) Set(resp StubResponse, components ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ByMixture == nil {
		s.ByMixture = make(map[string]StubResponse)
	}
	s.ByMixture[MixtureKey(components...)] = resp
}

// EstimateProperties implements ports.PropertyEngine.
func (s *StubEngine) EstimateProperties(ctx context.Context, req domain.PropertyRequest) (domain.PropertyVector, error) {
	s.mu.Lock()
	s.requests = append(s.requests, clone(req))
	resp, ok := s.ByMixture[MixtureKey(req.Components...)]
	if !ok {
		resp = s.Default
	}
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.PropertyVector{}, err
	}
	return resp.Properties, resp.Err
}

// Name implements ports.PropertyEngine.
func (s *StubEngine) Name() string {
	if s.EngineID == "" {
		return "stub"
	}
	return s.EngineID
}

// Calls returns the number of EstimateProperties calls.
func (s *StubEngine) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns copies of every recorded request in call order.
func (s *StubEngine) Requests() []domain.PropertyRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PropertyRequest, len(s.requests))
	for i, r := range s.requests {
		out[i] = clone(r)
	}
	return out
}

// LastRequest returns the most recent request, or the zero value.
func (s *StubEngine) LastRequest() domain.PropertyRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return domain.PropertyRequest{}
	}
	return clone(s.requests[len(s.requests)-1])
}

func clone(r domain.PropertyRequest) domain.PropertyRequest {
	return domain.PropertyRequest{
		Components:    append([]string(nil), r.Components...),
		MassFractions: append([]float64(nil), r.MassFractions...),
		State:         r.State,
	}
}
