// Package registry holds the configured provider adapters and hands out
// agents bound to concrete models. The engine never constructs providers
// itself; it asks the registry through its AgentFactory.
package registry

import (
	"fmt"
	"sync"

	"github.com/moonhollow/moonhollow/pkg/agent"
	"github.com/moonhollow/moonhollow/pkg/domain"
)

// Registry manages the available providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]agent.Provider
	opts      []agent.Option
}

// New creates a new empty registry. The options are applied to every agent
// the registry builds, which is where pricing and logging come in.
func New(opts ...agent.Option) *Registry {
	return &Registry{
		providers: make(map[string]agent.Provider),
		opts:      opts,
	}
}

// Register adds a provider under its own name.
// If a provider with the same name exists, it is overwritten.
func (r *Registry) Register(p agent.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Agent binds a registered provider to the selector's model.
// Returns an error if the provider is not configured.
func (r *Registry) Agent(sel domain.ModelSelector) (agent.Agent, error) {
	r.mu.RLock()
	p, ok := r.providers[sel.Provider]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("provider not configured: %s", sel.Provider)
	}
	return agent.New(p, sel.Model, r.opts...), nil
}
