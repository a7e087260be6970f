// Package llm holds LLMClient implementations and the provider
// plumbing around them: a factory registry keyed by provider type, a
// multi-provider router with per-provider circuit breakers, and the
// concrete anthropic/openai providers under their own sub-packages.
package llm

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/robin-raq/collabboard/internal/domain/service"
)

// Provider is the infrastructure-layer shape every concrete model
// client implements: service.LLMClient plus the bookkeeping the Router
// needs to pick one.
type Provider interface {
	service.LLMClient

	Name() string
	Models() []string
	SupportsModel(model string) bool
	IsAvailable(ctx context.Context) bool
}

// ProviderConfig is the config-file shape for one configured provider.
type ProviderConfig struct {
	Name     string   `mapstructure:"name"`
	Type     string   `mapstructure:"type"` // "anthropic" | "openai"
	BaseURL  string   `mapstructure:"base_url"`
	APIKey   string   `mapstructure:"api_key"`
	Models   []string `mapstructure:"models"`
	Priority int      `mapstructure:"priority"`
}

// ProviderFactory builds a Provider from its config. Concrete provider
// packages register one via RegisterFactory in their own init().
type ProviderFactory func(cfg ProviderConfig, logger *zap.Logger) Provider

var (
	factoryMu sync.RWMutex
	factories = map[string]ProviderFactory{}
)

// RegisterFactory registers a provider factory under typeName, called
// from internal/infrastructure/llm/anthropic and .../openai's init().
func RegisterFactory(typeName string, factory ProviderFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[typeName] = factory
}

// CreateProvider builds a Provider using the factory registered for
// cfg.Type.
func CreateProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("llm: provider %q has no type", cfg.Name)
	}

	factoryMu.RLock()
	factory, ok := factories[cfg.Type]
	factoryMu.RUnlock()
	if !ok {
		factoryMu.RLock()
		available := make([]string, 0, len(factories))
		for t := range factories {
			available = append(available, t)
		}
		factoryMu.RUnlock()
		return nil, fmt.Errorf("llm: unknown provider type %q (registered: %v)", cfg.Type, available)
	}
	return factory(cfg, logger), nil
}
