package gateway

import (
	"fmt"

	"github.com/winmicro/wallet-engine/internal/domain"
)

// Registry resolves adapters by provider name and holds the per-currency
// default provider used when a deposit request does not name one.
type Registry struct {
	byName   map[string]Adapter
	defaults map[domain.Currency]string
}

func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]Adapter),
		defaults: make(map[domain.Currency]string),
	}
}

// Register adds an adapter under its own name.
func (r *Registry) Register(a Adapter) *Registry {
	r.byName[a.Name()] = a
	return r
}

// SetDefault maps a currency to its default provider.
func (r *Registry) SetDefault(c domain.Currency, provider string) *Registry {
	r.defaults[c] = provider
	return r
}

// Get resolves an adapter by name.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return a, nil
}

// ForCurrency resolves the adapter for a deposit: the named provider when
// given, otherwise the currency's default.
func (r *Registry) ForCurrency(c domain.Currency, provider string) (Adapter, error) {
	if provider != "" {
		return r.Get(provider)
	}
	name, ok := r.defaults[c]
	if !ok {
		return nil, fmt.Errorf("%w: no default provider for %s", ErrUnknownProvider, c)
	}
	return r.Get(name)
}
