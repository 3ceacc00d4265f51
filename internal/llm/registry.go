package llm

import (
	"fmt"
	"sync"

	"github.com/averba/model-relay/internal/directory"
)

// Factory constructs a provider from its config.
type Factory func(config ProviderConfig) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[directory.Provider]Factory)
)

// Register adds a provider factory. Called from adapter init() functions.
func Register(providerType directory.Provider, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[providerType] = factory
}

// New looks up the factory for config.Type and builds the provider.
func New(config ProviderConfig) (Provider, error) {
	registryMu.RLock()
	factory, ok := registry[config.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no provider registered for type %q", config.Type)
	}

	return factory(config)
}
