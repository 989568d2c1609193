// Package analytics aggregates usage events into the tenant-facing usage
// report.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/turnpike-ai/turnpike/internal/store"
)

// ProviderUsage is the per-provider slice of a usage report.
type ProviderUsage struct {
	Provider  string  `json:"provider"`
	Turns     int     `json:"turns"`
	TokensIn  int     `json:"tokensIn"`
	TokensOut int     `json:"tokensOut"`
	Cost      float64 `json:"cost"`
}

// AgentUsage is the per-agent slice of a usage report.
type AgentUsage struct {
	AgentID   string  `json:"agentId"`
	AgentName string  `json:"agentName"`
	Turns     int     `json:"turns"`
	Cost      float64 `json:"cost"`
}

// Report is the usage rollup for one tenant over [From, To).
type Report struct {
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	Turns      int             `json:"turns"`
	TokensIn   int             `json:"tokensIn"`
	TokensOut  int             `json:"tokensOut"`
	TotalCost  float64         `json:"totalCost"`
	ByProvider []ProviderUsage `json:"byProvider"`
	TopAgents  []AgentUsage    `json:"topAgents"`
}

// topAgentLimit caps the topAgents section of a report.
const topAgentLimit = 5

// Reporter builds usage reports from the store.
type Reporter struct {
	store store.Store
}

// NewReporter creates a reporter.
func NewReporter(st store.Store) *Reporter {
	return &Reporter{store: st}
}

// Usage aggregates the tenant's usage events within [from, to). Every
// usage event corresponds to exactly one successful turn, so turn counts
// are event counts.
func (r *Reporter) Usage(ctx context.Context, tenantID string, from, to time.Time) (*Report, error) {
	events, err := r.store.ListUsageEvents(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}

	report := &Report{From: from, To: to}
	byProvider := make(map[string]*ProviderUsage)
	byAgent := make(map[string]*AgentUsage)

	for _, ev := range events {
		report.Turns++
		report.TokensIn += ev.TokensIn
		report.TokensOut += ev.TokensOut
		report.TotalCost += ev.Cost

		pu, ok := byProvider[ev.Provider]
		if !ok {
			pu = &ProviderUsage{Provider: ev.Provider}
			byProvider[ev.Provider] = pu
		}
		pu.Turns++
		pu.TokensIn += ev.TokensIn
		pu.TokensOut += ev.TokensOut
		pu.Cost += ev.Cost

		au, ok := byAgent[ev.AgentID]
		if !ok {
			au = &AgentUsage{AgentID: ev.AgentID}
			byAgent[ev.AgentID] = au
		}
		au.Turns++
		au.Cost += ev.Cost
	}

	report.ByProvider = make([]ProviderUsage, 0, len(byProvider))
	for _, pu := range byProvider {
		report.ByProvider = append(report.ByProvider, *pu)
	}
	sort.Slice(report.ByProvider, func(i, j int) bool {
		return report.ByProvider[i].Provider < report.ByProvider[j].Provider
	})

	agents := make([]AgentUsage, 0, len(byAgent))
	for _, au := range byAgent {
		agents = append(agents, *au)
	}
	sort.Slice(agents, func(i, j int) bool {
		if agents[i].Cost != agents[j].Cost {
			return agents[i].Cost > agents[j].Cost
		}
		return agents[i].AgentID < agents[j].AgentID
	})
	if len(agents) > topAgentLimit {
		agents = agents[:topAgentLimit]
	}
	for i := range agents {
		if a, err := r.store.AgentByID(ctx, tenantID, agents[i].AgentID); err == nil {
			agents[i].AgentName = a.Name
		}
	}
	report.TopAgents = agents

	return report, nil
}
