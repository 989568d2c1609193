// Package store holds the gateway's persisted entities and the Store
// contract the turn-dispatch core writes through.
package store

import "time"

// Role values for Message records.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Tenant is an isolated customer account. Only the peppered hash of its
// API key is stored.
type Tenant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	APIKeyHash string    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Agent is a configured persona owned by a tenant. Read-only from the
// turn-dispatch core's perspective.
type Agent struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenantId"`
	Name             string    `json:"name"`
	PrimaryProvider  string    `json:"primaryProvider"`
	FallbackProvider string    `json:"fallbackProvider,omitempty"`
	SystemPrompt     string    `json:"systemPrompt"`
	EnabledTools     []string  `json:"enabledTools"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Session is one conversation thread between a customer and an agent.
// Immutable once created; never deleted by the core.
type Session struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	AgentID    string    `json:"agentId"`
	CustomerID string    `json:"customerId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Message is one persisted turn half. Created exactly once per accepted
// turn (the user and assistant messages form a pair); immutable after
// creation.
type Message struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// UsageEvent accounts for exactly one successful assistant reply, 1:1 with
// the Message it bills for. A failed turn produces none.
type UsageEvent struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	AgentID   string    `json:"agentId"`
	SessionID string    `json:"sessionId"`
	Provider  string    `json:"provider"`
	TokensIn  int       `json:"tokensIn"`
	TokensOut int       `json:"tokensOut"`
	Cost      float64   `json:"cost"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProviderEvent is the audit record of one terminal per-provider dispatch
// outcome (success or exhaustion).
type ProviderEvent struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	AgentID    string    `json:"agentId"`
	SessionID  string    `json:"sessionId"`
	Provider   string    `json:"provider"`
	Attempts   int       `json:"attempts"`
	Success    bool      `json:"success"`
	StatusCode int       `json:"statusCode,omitempty"`
	LatencyMs  int64     `json:"latencyMs,omitempty"`
	ErrorKind  string    `json:"errorKind,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// VoiceEvent is best-effort voice-turn metadata. Its absence must never
// fail a turn.
type VoiceEvent struct {
	CorrelationID    string    `json:"correlationId"`
	TenantID         string    `json:"tenantId"`
	SessionID        string    `json:"sessionId"`
	AudioDurationSec float64   `json:"audioDurationSec,omitempty"`
	UserTranscript   string    `json:"userTranscript"`
	AssistantText    string    `json:"assistantText"`
	STTProvider      string    `json:"sttProvider"`
	TTSProvider      string    `json:"ttsProvider"`
	ChatProvider     string    `json:"chatProvider"`
	LatencyMs        int64     `json:"latencyMs"`
	CreatedAt        time.Time `json:"createdAt"`
}

// SessionSummary is the aggregate view returned by session listings.
type SessionSummary struct {
	Session      Session `json:"session"`
	AgentName    string  `json:"agentName"`
	MessageCount int     `json:"messageCount"`
	TotalTokens  int     `json:"totalTokens"`
	TotalCost    float64 `json:"totalCost"`
}

// TurnRecord bundles the writes of one successful turn. Store
// implementations apply it as one atomic unit: partial application
// (message persisted but usage lost) is a correctness bug.
type TurnRecord struct {
	UserMessage      Message
	AssistantMessage Message
	Usage            UsageEvent
}
