// Package metering converts token counts into cost.
//
// Pricing is a fixed per-provider price per 1000 tokens. The computation is
// pure: no side effects and no failure mode other than an unknown provider,
// which indicates a misvalidated agent configuration.
package metering

import (
	"fmt"
	"sync"
)

// Default price per 1000 tokens (input + output combined), in USD.
var defaultPricing = map[string]float64{
	"vendora": 0.002,
	"vendorb": 0.003,
	"openai":  0.002,
	"gemini":  0.001,
	"bedrock": 0.003,
}

// Meter computes turn cost from a per-provider pricing table.
type Meter struct {
	pricing map[string]float64
	mu      sync.RWMutex
}

// NewMeter creates a meter with default pricing.
func NewMeter() *Meter {
	m := &Meter{pricing: make(map[string]float64, len(defaultPricing))}
	for p, price := range defaultPricing {
		m.pricing[p] = price
	}
	return m
}

// SetPrice adds or overrides the per-1K price for a provider.
func (m *Meter) SetPrice(provider string, perThousand float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pricing[provider] = perThousand
}

// Price returns the per-1K price for a provider.
func (m *Meter) Price(provider string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	price, ok := m.pricing[provider]
	return price, ok
}

// Cost computes the cost of a turn:
//
//	(tokensIn + tokensOut) / 1000 * pricePerThousand[provider]
//
// An unknown provider is an error; it should never occur for a validated
// agent configuration.
func (m *Meter) Cost(provider string, tokensIn, tokensOut int) (float64, error) {
	price, ok := m.Price(provider)
	if !ok {
		return 0, fmt.Errorf("no pricing for provider %q", provider)
	}
	total := tokensIn + tokensOut
	return float64(total) / 1000.0 * price, nil
}

// Providers returns all providers with pricing entries.
func (m *Meter) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.pricing))
	for p := range m.pricing {
		names = append(names, p)
	}
	return names
}
