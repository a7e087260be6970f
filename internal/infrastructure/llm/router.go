package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/robin-raq/collabboard/internal/domain/service"
)

// Router implements service.LLMClient by trying its registered
// providers in the order they were added, skipping any that don't support the
// requested model, are unreachable, or whose circuit breaker is open.
// A single Generate call per turn suffices since the orchestrator's
// model loop is request/response, not a token stream.
type Router struct {
	mu        sync.RWMutex
	providers []Provider
	stats     map[string]*callStats
	breakers  map[string]*CircuitBreaker
	logger    *zap.Logger
}

type callStats struct {
	totalCalls   int64
	failureCount int64
	lastLatency  time.Duration
}

// NewRouter builds an empty router; call AddProvider to populate it.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		stats:    make(map[string]*callStats),
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger.With(zap.String("component", "llm-router")),
	}
}

var _ service.LLMClient = (*Router)(nil)

// AddProvider registers p, tried after providers already added.
func (r *Router) AddProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
	r.stats[p.Name()] = &callStats{}
	r.breakers[p.Name()] = NewCircuitBreaker(5, 30*time.Second)
	r.logger.Info("llm provider registered", zap.String("name", p.Name()), zap.Strings("models", p.Models()))
}

// Generate routes req to the first provider that supports the model,
// is reachable, and has a closed (or half-open probing) circuit.
func (r *Router) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	r.mu.RLock()
	providers := make([]Provider, len(r.providers))
	copy(providers, r.providers)
	r.mu.RUnlock()

	var lastErr error
	for _, p := range providers {
		if !p.SupportsModel(req.Model) {
			continue
		}
		if !p.IsAvailable(ctx) {
			continue
		}
		breaker := r.breakerFor(p.Name())
		if breaker != nil && !breaker.Allow() {
			r.logger.Debug("provider circuit open, skipping", zap.String("provider", p.Name()))
			continue
		}

		start := time.Now()
		resp, err := p.Generate(ctx, req)
		latency := time.Since(start)
		r.recordCall(p.Name(), latency, err)

		if err != nil {
			if breaker != nil {
				breaker.RecordFailure()
			}
			lastErr = err
			r.logger.Warn("provider failed, trying next", zap.String("provider", p.Name()), zap.Error(err))
			continue
		}
		if breaker != nil {
			breaker.RecordSuccess()
		}
		return resp, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("llm: all providers failed, last error: %w", lastErr)
	}
	return nil, fmt.Errorf("llm: no provider available for model %q", req.Model)
}

func (r *Router) breakerFor(name string) *CircuitBreaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[name]
}

func (r *Router) recordCall(name string, latency time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[name]
	if !ok {
		return
	}
	s.totalCalls++
	s.lastLatency = latency
	if err != nil {
		s.failureCount++
	}
}

// ProviderStatus is boardctl's view of one registered provider.
type ProviderStatus struct {
	Name          string
	Models        []string
	Available     bool
	TotalCalls    int64
	FailureCount  int64
	LastLatencyMs float64
	CircuitState  string
}

// ListProviders reports every registered provider's current status,
// used by boardctl's operator surface.
func (r *Router) ListProviders(ctx context.Context) []ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderStatus, 0, len(r.providers))
	for _, p := range r.providers {
		status := ProviderStatus{
			Name:      p.Name(),
			Models:    p.Models(),
			Available: p.IsAvailable(ctx),
		}
		if s, ok := r.stats[p.Name()]; ok {
			status.TotalCalls = s.totalCalls
			status.FailureCount = s.failureCount
			status.LastLatencyMs = float64(s.lastLatency) / float64(time.Millisecond)
		}
		if cb, ok := r.breakers[p.Name()]; ok {
			status.CircuitState = cb.State().String()
		}
		out = append(out, status)
	}
	return out
}
