package metering

import (
	"testing"
)

func TestCost_ExactComputation(t *testing.T) {
	m := NewMeter()

	tests := []struct {
		provider  string
		tokensIn  int
		tokensOut int
	}{
		{"vendora", 500, 500},
		{"vendorb", 500, 500},
		{"vendora", 0, 0},
		{"vendora", 100, 50},
		{"vendorb", 2000, 1000},
	}

	for _, tt := range tests {
		got, err := m.Cost(tt.provider, tt.tokensIn, tt.tokensOut)
		if err != nil {
			t.Errorf("Cost(%s, %d, %d) failed: %v", tt.provider, tt.tokensIn, tt.tokensOut, err)
			continue
		}
		// The billing contract: (in + out) / 1000 * price, bit for bit.
		want := float64(tt.tokensIn+tt.tokensOut) / 1000.0 * mustPrice(t, m, tt.provider)
		if got != want {
			t.Errorf("Cost(%s, %d, %d) = %v, want %v", tt.provider, tt.tokensIn, tt.tokensOut, got, want)
		}
	}

	// 1000 tokens bills exactly one unit of the per-1K price.
	got, err := m.Cost("vendora", 400, 600)
	if err != nil {
		t.Fatalf("Cost failed: %v", err)
	}
	if got != mustPrice(t, m, "vendora") {
		t.Errorf("cost of 1000 tokens = %v, want the per-1K price", got)
	}
}

func mustPrice(t *testing.T, m *Meter, provider string) float64 {
	t.Helper()
	price, ok := m.Price(provider)
	if !ok {
		t.Fatalf("no price for %s", provider)
	}
	return price
}

func TestCost_UnknownProvider(t *testing.T) {
	m := NewMeter()
	if _, err := m.Cost("nonexistent", 10, 10); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestSetPrice_Override(t *testing.T) {
	m := NewMeter()
	m.SetPrice("vendora", 0.01)

	got, err := m.Cost("vendora", 1000, 0)
	if err != nil {
		t.Fatalf("Cost failed: %v", err)
	}
	if got != 0.01 {
		t.Errorf("cost after override = %v, want 0.01", got)
	}
}

func TestSetPrice_NewProvider(t *testing.T) {
	m := NewMeter()
	m.SetPrice("custom", 0.005)

	got, err := m.Cost("custom", 500, 1500)
	if err != nil {
		t.Fatalf("Cost failed: %v", err)
	}
	if got != 0.01 {
		t.Errorf("cost = %v, want 0.01", got)
	}
}
