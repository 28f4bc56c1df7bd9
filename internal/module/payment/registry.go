package payment

import (
	"fmt"
	"sync"

	"github.com/payrouter/server/internal/module/payment/provider"
)

// Registry manages the configured payment providers. Registration order is
// preserved because it is the default routing preference order.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]provider.Provider
	order       []string
	defaultName string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]provider.Provider),
	}
}

// Register adds a provider. The first registered provider becomes the default
// until SetDefault overrides it. Re-registering a name replaces the provider
// but keeps its original position.
func (r *Registry) Register(p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
	if r.defaultName == "" {
		r.defaultName = name
	}
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (provider.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return p, nil
}

// Default returns the default provider.
func (r *Registry) Default() (provider.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultName == "" {
		return nil, ErrProviderNotFound
	}
	return r.providers[r.defaultName], nil
}

// SetDefault marks a registered provider as the default.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	r.defaultName = name
	return nil
}

// List returns all registered provider names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Refunder returns the provider by name if it supports refunds.
func (r *Registry) Refunder(name string) (provider.RefundProvider, error) {
	p, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	rp, ok := p.(provider.RefundProvider)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support refunds: %w", name, provider.ErrUnsupportedOperation)
	}
	return rp, nil
}
