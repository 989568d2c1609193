package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist in the
// caller's tenant scope.
var ErrNotFound = errors.New("store: not found")

// ErrUnavailable is returned when the backing store cannot be reached.
// The turn fails fatally; no partial state is committed.
var ErrUnavailable = errors.New("store: unavailable")

// Store is the persistence contract of the turn-dispatch core. All reads
// and writes are tenant-scoped.
type Store interface {
	// Tenants
	CreateTenant(ctx context.Context, t *Tenant) error
	TenantByAPIKeyHash(ctx context.Context, hash string) (*Tenant, error)

	// Agents
	CreateAgent(ctx context.Context, a *Agent) error
	UpdateAgent(ctx context.Context, a *Agent) error
	AgentByID(ctx context.Context, tenantID, agentID string) (*Agent, error)
	ListAgents(ctx context.Context, tenantID string) ([]*Agent, error)

	// Sessions
	CreateSession(ctx context.Context, s *Session) error
	SessionByID(ctx context.Context, tenantID, sessionID string) (*Session, error)
	SessionSummaries(ctx context.Context, tenantID string) ([]*SessionSummary, error)

	// Messages
	ListMessages(ctx context.Context, tenantID, sessionID string) ([]*Message, error)

	// AppendTurn persists the user message, assistant message, and usage
	// event of one successful turn as a single atomic unit.
	AppendTurn(ctx context.Context, rec TurnRecord) error

	// Audit
	RecordProviderEvent(ctx context.Context, ev *ProviderEvent) error

	// Usage
	ListUsageEvents(ctx context.Context, tenantID string, from, to time.Time) ([]*UsageEvent, error)

	Ping(ctx context.Context) error
	Close() error
}

// VoiceEventSink receives best-effort voice-turn metadata. Isolated behind
// its own narrow interface so the voice pipeline can swallow sink failures
// without touching the primary flow.
type VoiceEventSink interface {
	RecordVoiceEvent(ctx context.Context, ev *VoiceEvent) error
}

// NoopVoiceEvents discards voice metadata. Selectable at configuration
// time when no side store is provisioned.
type NoopVoiceEvents struct{}

// RecordVoiceEvent discards the event.
func (NoopVoiceEvents) RecordVoiceEvent(ctx context.Context, ev *VoiceEvent) error { return nil }
