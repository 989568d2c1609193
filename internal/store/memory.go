package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. The single mutex makes
// AppendTurn atomic: either all three records of a turn land or none do.
type MemoryStore struct {
	mu sync.RWMutex

	tenants  map[string]*Tenant
	agents   map[string]*Agent
	sessions map[string]*Session

	// Append-ordered; listing preserves completion order.
	messages       []*Message
	usageEvents    []*UsageEvent
	providerEvents []*ProviderEvent
	voiceEvents    []*VoiceEvent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:  make(map[string]*Tenant),
		agents:   make(map[string]*Agent),
		sessions: make(map[string]*Session),
	}
}

// CreateTenant stores a tenant.
func (s *MemoryStore) CreateTenant(ctx context.Context, t *Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

// TenantByAPIKeyHash resolves a tenant from its hashed API key.
func (s *MemoryStore) TenantByAPIKeyHash(ctx context.Context, hash string) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if t.APIKeyHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// CreateAgent stores an agent.
func (s *MemoryStore) CreateAgent(ctx context.Context, a *Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.agents[a.ID] = &cp
	return nil
}

// UpdateAgent replaces an existing agent within its tenant scope.
func (s *MemoryStore) UpdateAgent(ctx context.Context, a *Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.agents[a.ID]
	if !ok || existing.TenantID != a.TenantID {
		return ErrNotFound
	}
	cp := *a
	s.agents[a.ID] = &cp
	return nil
}

// AgentByID loads an agent within its tenant scope.
func (s *MemoryStore) AgentByID(ctx context.Context, tenantID, agentID string) (*Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[agentID]
	if !ok || a.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// ListAgents lists a tenant's agents ordered by creation time.
func (s *MemoryStore) ListAgents(ctx context.Context, tenantID string) ([]*Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Agent
	for _, a := range s.agents {
		if a.TenantID == tenantID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CreateSession stores a session.
func (s *MemoryStore) CreateSession(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

// SessionByID loads a session within its tenant scope.
func (s *MemoryStore) SessionByID(ctx context.Context, tenantID, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

// SessionSummaries lists a tenant's sessions with message counts and
// usage totals, newest first.
func (s *MemoryStore) SessionSummaries(ctx context.Context, tenantID string) ([]*SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*SessionSummary
	for _, sess := range s.sessions {
		if sess.TenantID != tenantID {
			continue
		}
		summary := &SessionSummary{Session: *sess}
		if a, ok := s.agents[sess.AgentID]; ok {
			summary.AgentName = a.Name
		}
		for _, m := range s.messages {
			if m.SessionID == sess.ID {
				summary.MessageCount++
			}
		}
		for _, u := range s.usageEvents {
			if u.SessionID == sess.ID {
				summary.TotalTokens += u.TokensIn + u.TokensOut
				summary.TotalCost += u.Cost
			}
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Session.CreatedAt.After(out[j].Session.CreatedAt)
	})
	return out, nil
}

// ListMessages lists a session's messages in persistence order.
func (s *MemoryStore) ListMessages(ctx context.Context, tenantID, sessionID string) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Message
	for _, m := range s.messages {
		if m.TenantID == tenantID && m.SessionID == sessionID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// AppendTurn applies the turn's writes under one lock acquisition.
func (s *MemoryStore) AppendTurn(ctx context.Context, rec TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := rec.UserMessage
	assistant := rec.AssistantMessage
	usage := rec.Usage
	s.messages = append(s.messages, &user, &assistant)
	s.usageEvents = append(s.usageEvents, &usage)
	return nil
}

// RecordProviderEvent appends one audit record.
func (s *MemoryStore) RecordProviderEvent(ctx context.Context, ev *ProviderEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ev
	s.providerEvents = append(s.providerEvents, &cp)
	return nil
}

// ProviderEvents returns the audit records for a tenant. Used by tests and
// diagnostics.
func (s *MemoryStore) ProviderEvents(tenantID string) []*ProviderEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ProviderEvent
	for _, ev := range s.providerEvents {
		if ev.TenantID == tenantID {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out
}

// ListUsageEvents lists a tenant's usage events within [from, to).
func (s *MemoryStore) ListUsageEvents(ctx context.Context, tenantID string, from, to time.Time) ([]*UsageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*UsageEvent
	for _, u := range s.usageEvents {
		if u.TenantID != tenantID {
			continue
		}
		if u.CreatedAt.Before(from) || !u.CreatedAt.Before(to) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

// RecordVoiceEvent appends best-effort voice metadata. MemoryStore doubles
// as a VoiceEventSink.
func (s *MemoryStore) RecordVoiceEvent(ctx context.Context, ev *VoiceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ev
	s.voiceEvents = append(s.voiceEvents, &cp)
	return nil
}

// VoiceEvents returns recorded voice metadata for a tenant.
func (s *MemoryStore) VoiceEvents(tenantID string) []*VoiceEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*VoiceEvent
	for _, ev := range s.voiceEvents {
		if ev.TenantID == tenantID {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
