package store

import (
	"context"
	"testing"
	"time"
)

func seedTenant(t *testing.T, st *MemoryStore, id string) *Tenant {
	t.Helper()
	tenant := &Tenant{ID: id, Name: "acme", APIKeyHash: "hash-" + id, CreatedAt: time.Now().UTC()}
	if err := st.CreateTenant(context.Background(), tenant); err != nil {
		t.Fatalf("CreateTenant failed: %v", err)
	}
	return tenant
}

func seedAgent(t *testing.T, st *MemoryStore, tenantID, id string) *Agent {
	t.Helper()
	agent := &Agent{
		ID:              id,
		TenantID:        tenantID,
		Name:            "support-bot",
		PrimaryProvider: "vendora",
		SystemPrompt:    "Be helpful.",
		CreatedAt:       time.Now().UTC(),
	}
	if err := st.CreateAgent(context.Background(), agent); err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}
	return agent
}

func seedSession(t *testing.T, st *MemoryStore, tenantID, agentID, id string) *Session {
	t.Helper()
	sess := &Session{ID: id, TenantID: tenantID, AgentID: agentID, CustomerID: "cust", CreatedAt: time.Now().UTC()}
	if err := st.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return sess
}

func TestMemoryStore_TenantByAPIKeyHash(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seedTenant(t, st, "t1")

	tenant, err := st.TenantByAPIKeyHash(ctx, "hash-t1")
	if err != nil {
		t.Fatalf("TenantByAPIKeyHash failed: %v", err)
	}
	if tenant.ID != "t1" {
		t.Errorf("tenant = %s, want t1", tenant.ID)
	}

	if _, err := st.TenantByAPIKeyHash(ctx, "nope"); err != ErrNotFound {
		t.Errorf("unknown hash error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_AgentTenantScoping(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seedTenant(t, st, "t1")
	seedTenant(t, st, "t2")
	seedAgent(t, st, "t1", "a1")

	if _, err := st.AgentByID(ctx, "t1", "a1"); err != nil {
		t.Errorf("owner lookup failed: %v", err)
	}
	// Another tenant must not see the agent, even with a valid id.
	if _, err := st.AgentByID(ctx, "t2", "a1"); err != ErrNotFound {
		t.Errorf("cross-tenant lookup error = %v, want ErrNotFound", err)
	}

	other := &Agent{ID: "a1", TenantID: "t2", Name: "stolen"}
	if err := st.UpdateAgent(ctx, other); err != ErrNotFound {
		t.Errorf("cross-tenant update error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_AppendTurn(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seedTenant(t, st, "t1")
	seedAgent(t, st, "t1", "a1")
	seedSession(t, st, "t1", "a1", "s1")

	now := time.Now().UTC()
	rec := TurnRecord{
		UserMessage:      Message{ID: "m1", TenantID: "t1", SessionID: "s1", Role: RoleUser, Content: "hi", CreatedAt: now},
		AssistantMessage: Message{ID: "m2", TenantID: "t1", SessionID: "s1", Role: RoleAssistant, Content: "hello", CreatedAt: now},
		Usage:            UsageEvent{ID: "u1", TenantID: "t1", AgentID: "a1", SessionID: "s1", Provider: "vendora", TokensIn: 10, TokensOut: 20, Cost: 0.00006, CreatedAt: now},
	}
	if err := st.AppendTurn(ctx, rec); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}

	messages, err := st.ListMessages(ctx, "t1", "s1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(messages))
	}
	if messages[0].Role != RoleUser || messages[1].Role != RoleAssistant {
		t.Errorf("message order = [%s, %s], want [user, assistant]", messages[0].Role, messages[1].Role)
	}

	events, err := st.ListUsageEvents(ctx, "t1", now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("ListUsageEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("usage events = %d, want exactly 1 per turn", len(events))
	}
	if events[0].TokensIn != 10 || events[0].TokensOut != 20 {
		t.Errorf("usage = %d+%d tokens, want 10+20", events[0].TokensIn, events[0].TokensOut)
	}
}

func TestMemoryStore_SessionSummaries(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seedTenant(t, st, "t1")
	seedAgent(t, st, "t1", "a1")
	seedSession(t, st, "t1", "a1", "s1")
	seedSession(t, st, "t1", "a1", "s2")

	now := time.Now().UTC()
	for i := 0; i < 2; i++ {
		err := st.AppendTurn(ctx, TurnRecord{
			UserMessage:      Message{ID: "u", TenantID: "t1", SessionID: "s1", Role: RoleUser, CreatedAt: now},
			AssistantMessage: Message{ID: "a", TenantID: "t1", SessionID: "s1", Role: RoleAssistant, CreatedAt: now},
			Usage:            UsageEvent{TenantID: "t1", AgentID: "a1", SessionID: "s1", Provider: "vendora", TokensIn: 5, TokensOut: 10, Cost: 0.001, CreatedAt: now},
		})
		if err != nil {
			t.Fatalf("AppendTurn failed: %v", err)
		}
	}

	summaries, err := st.SessionSummaries(ctx, "t1")
	if err != nil {
		t.Fatalf("SessionSummaries failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(summaries))
	}

	var s1 *SessionSummary
	for _, s := range summaries {
		if s.Session.ID == "s1" {
			s1 = s
		}
	}
	if s1 == nil {
		t.Fatal("missing summary for s1")
	}
	if s1.MessageCount != 4 {
		t.Errorf("message count = %d, want 4", s1.MessageCount)
	}
	if s1.TotalTokens != 30 {
		t.Errorf("total tokens = %d, want 30", s1.TotalTokens)
	}
	if s1.AgentName != "support-bot" {
		t.Errorf("agent name = %q, want support-bot", s1.AgentName)
	}
}

func TestMemoryStore_ListUsageEventsWindow(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seedTenant(t, st, "t1")
	seedAgent(t, st, "t1", "a1")
	seedSession(t, st, "t1", "a1", "s1")

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, created := range []time.Time{base, base.Add(time.Hour), base.Add(48 * time.Hour)} {
		err := st.AppendTurn(ctx, TurnRecord{
			UserMessage:      Message{TenantID: "t1", SessionID: "s1", Role: RoleUser, CreatedAt: created},
			AssistantMessage: Message{TenantID: "t1", SessionID: "s1", Role: RoleAssistant, CreatedAt: created},
			Usage:            UsageEvent{TenantID: "t1", AgentID: "a1", SessionID: "s1", Provider: "vendora", TokensIn: i, CreatedAt: created},
		})
		if err != nil {
			t.Fatalf("AppendTurn failed: %v", err)
		}
	}

	events, err := st.ListUsageEvents(ctx, "t1", base, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ListUsageEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("events in window = %d, want 2", len(events))
	}
}

func TestMemoryStore_VoiceEvents(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	ev := &VoiceEvent{CorrelationID: "c1", TenantID: "t1", SessionID: "s1", UserTranscript: "hi"}
	if err := st.RecordVoiceEvent(ctx, ev); err != nil {
		t.Fatalf("RecordVoiceEvent failed: %v", err)
	}

	events := st.VoiceEvents("t1")
	if len(events) != 1 || events[0].CorrelationID != "c1" {
		t.Errorf("voice events = %+v, want one with correlation c1", events)
	}
	if len(st.VoiceEvents("t2")) != 0 {
		t.Error("voice events must be tenant scoped")
	}
}
