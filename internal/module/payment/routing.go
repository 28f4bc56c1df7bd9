package payment

import (
	"fmt"
	"strings"
)

// RoutingConfig tunes the smart routing rules.
type RoutingConfig struct {
	// HighAmountThreshold is in minor units. Requests strictly above it
	// prefer a high-trust provider.
	HighAmountThreshold int64
	HighTrustProviders  []string

	// EUCurrencies lists currencies routed to EUPreferredProvider when it is
	// in the candidate set.
	EUCurrencies        []string
	EUPreferredProvider string
}

// DefaultRoutingConfig returns the default routing configuration.
func DefaultRoutingConfig() *RoutingConfig {
	return &RoutingConfig{
		HighAmountThreshold: 100000,
		EUCurrencies:        []string{"EUR"},
	}
}

// RouteRequest carries the routing inputs for one payment.
type RouteRequest struct {
	Amount             int64
	Currency           string
	PreferredProviders []string
	ExcludeProviders   []string
}

// Router implements rule-based provider selection for payments that do not
// pin a provider. Selection is deterministic: same registry, same request,
// same answer.
type Router struct {
	registry *Registry
	config   *RoutingConfig
}

// NewRouter creates a router over the registry.
func NewRouter(registry *Registry, config *RoutingConfig) *Router {
	if config == nil {
		config = DefaultRoutingConfig()
	}
	return &Router{registry: registry, config: config}
}

// Route returns the candidate providers in attempt order. The first entry is
// the selected provider; the second, when present, is the single fallback.
// An empty candidate set after filtering fails fast with
// ErrNoEligibleProvider.
func (r *Router) Route(req RouteRequest) ([]string, error) {
	candidates := r.registry.List()

	// Intersect with the caller's preference, keeping the caller's order.
	if len(req.PreferredProviders) > 0 {
		registered := toSet(candidates)
		filtered := make([]string, 0, len(req.PreferredProviders))
		for _, name := range req.PreferredProviders {
			if registered[name] {
				filtered = append(filtered, name)
			}
		}
		candidates = filtered
	}

	if len(req.ExcludeProviders) > 0 {
		excluded := toSet(req.ExcludeProviders)
		filtered := candidates[:0:0]
		for _, name := range candidates {
			if !excluded[name] {
				filtered = append(filtered, name)
			}
		}
		candidates = filtered
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: filters removed every registered provider", ErrNoEligibleProvider)
	}

	// Amount rule wins over the currency rule.
	if req.Amount > r.config.HighAmountThreshold {
		for _, trusted := range r.config.HighTrustProviders {
			if idx := indexOf(candidates, trusted); idx >= 0 {
				candidates = moveToFront(candidates, idx)
				return candidates, nil
			}
		}
	}

	if r.isEUCurrency(req.Currency) && r.config.EUPreferredProvider != "" {
		if idx := indexOf(candidates, r.config.EUPreferredProvider); idx >= 0 {
			candidates = moveToFront(candidates, idx)
		}
	}

	return candidates, nil
}

func (r *Router) isEUCurrency(currency string) bool {
	currency = strings.ToUpper(currency)
	for _, c := range r.config.EUCurrencies {
		if strings.ToUpper(c) == currency {
			return true
		}
	}
	return false
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}

func indexOf(names []string, target string) int {
	for i, name := range names {
		if name == target {
			return i
		}
	}
	return -1
}

// moveToFront promotes names[idx] while preserving the relative order of the
// rest, so the fallback order stays deterministic.
func moveToFront(names []string, idx int) []string {
	if idx == 0 {
		return names
	}
	out := make([]string, 0, len(names))
	out = append(out, names[idx])
	out = append(out, names[:idx]...)
	out = append(out, names[idx+1:]...)
	return out
}
