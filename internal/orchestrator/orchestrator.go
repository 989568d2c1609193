// Package orchestrator executes the turn-dispatch state machine: resolve
// the session and agent, claim the idempotency key, dispatch through the
// reliability controller, meter the reply, and persist the turn atomically.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/turnpike-ai/turnpike/internal/idempotency"
	"github.com/turnpike-ai/turnpike/internal/log"
	"github.com/turnpike-ai/turnpike/internal/metering"
	"github.com/turnpike-ai/turnpike/internal/provider"
	"github.com/turnpike-ai/turnpike/internal/reliability"
	"github.com/turnpike-ai/turnpike/internal/store"
	"github.com/turnpike-ai/turnpike/pkg/observability"
)

// ErrInFlight means another request holding the same idempotency key is
// still executing. The caller should retry shortly.
var ErrInFlight = errors.New("orchestrator: turn already in flight")

// Dispatcher is the reliability surface the orchestrator depends on.
// Satisfied by *reliability.Controller; narrowed for tests.
type Dispatcher interface {
	Dispatch(ctx context.Context, primary, fallback string, req provider.Request) (*provider.Result, []reliability.Outcome, error)
}

// TurnInput is one message-turn request after authentication.
type TurnInput struct {
	TenantID  string
	SessionID string
	ClientKey string
	Text      string
}

// TurnResponse is the client-visible result of a completed turn. Its JSON
// encoding is the stored idempotency payload, so a replay is byte-identical
// to the original response.
type TurnResponse struct {
	SessionID    string  `json:"sessionId"`
	ReplyText    string  `json:"replyText"`
	ProviderUsed string  `json:"providerUsed"`
	TokensIn     int     `json:"tokensIn"`
	TokensOut    int     `json:"tokensOut"`
	Cost         float64 `json:"cost"`
	LatencyMs    int64   `json:"latencyMs"`
}

// TurnResult wraps the response payload with its provenance.
type TurnResult struct {
	// Payload is the canonical JSON encoding of TurnResponse.
	Payload []byte

	// Replayed is true when the payload came from the idempotency store
	// rather than a fresh dispatch.
	Replayed bool
}

// Orchestrator coordinates one turn end to end.
type Orchestrator struct {
	store      store.Store
	idem       idempotency.Store
	dispatcher Dispatcher
	meter      *metering.Meter

	// newID and now are injectable for deterministic tests.
	newID func() string
	now   func() time.Time
}

// New creates an orchestrator.
func New(st store.Store, idem idempotency.Store, d Dispatcher, meter *metering.Meter) *Orchestrator {
	return &Orchestrator{
		store:      st,
		idem:       idem,
		dispatcher: d,
		meter:      meter,
		newID:      uuid.NewString,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// HandleTurn runs the turn state machine.
//
// Exactly one of three terminal states is reached: a replayed payload, a
// freshly dispatched and persisted turn, or an error with the reservation
// released so the client can retry with the same key.
func (o *Orchestrator) HandleTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	ctx, span := observability.StartSpan(ctx, "orchestrator.turn",
		trace.WithAttributes(
			attribute.String("tenant.id", in.TenantID),
			attribute.String("session.id", in.SessionID),
		),
	)
	defer span.End()

	sess, err := o.store.SessionByID(ctx, in.TenantID, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", in.SessionID, err)
	}
	agent, err := o.store.AgentByID(ctx, in.TenantID, sess.AgentID)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", sess.AgentID, err)
	}

	key := idempotency.Key{Tenant: in.TenantID, Session: in.SessionID, Client: in.ClientKey}
	res, stored, err := o.idem.CheckOrReserve(ctx, key)
	if err != nil {
		return nil, err
	}
	switch res {
	case idempotency.Found:
		observability.RecordTurn("replayed")
		span.SetAttributes(attribute.Bool("turn.replayed", true))
		return &TurnResult{Payload: stored, Replayed: true}, nil
	case idempotency.AlreadyReserved:
		return nil, ErrInFlight
	}

	// We own the reservation from here on. Every failure path releases it
	// so the client's retry is not locked out for the full grace period.
	result, err := o.dispatch(ctx, agent, in)
	if err != nil {
		o.release(ctx, key)
		observability.RecordTurn("failed")
		return nil, err
	}

	payload, err := o.persist(ctx, sess, agent, in, result)
	if err != nil {
		o.release(ctx, key)
		observability.RecordTurn("failed")
		return nil, err
	}

	if err := o.idem.Complete(ctx, key, payload); err != nil {
		// The turn is committed; losing the replay record only costs a
		// potential duplicate dispatch if the client retries.
		log.Warn("idempotency complete failed", "error", err,
			"tenant", in.TenantID, "session", in.SessionID)
	}

	observability.RecordTurn("completed")
	return &TurnResult{Payload: payload}, nil
}

// dispatch runs the reliability-controlled provider calls and records one
// audit event per provider tried.
func (o *Orchestrator) dispatch(ctx context.Context, agent *store.Agent, in TurnInput) (*provider.Result, error) {
	req := provider.Request{Prompt: provider.ComposePrompt(agent.SystemPrompt, in.Text)}

	result, outcomes, err := o.dispatcher.Dispatch(ctx, agent.PrimaryProvider, agent.FallbackProvider, req)
	o.recordOutcomes(ctx, agent, in, outcomes)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// recordOutcomes writes the per-provider audit trail. Audit failures are
// logged, never fatal.
func (o *Orchestrator) recordOutcomes(ctx context.Context, agent *store.Agent, in TurnInput, outcomes []reliability.Outcome) {
	for _, oc := range outcomes {
		ev := &store.ProviderEvent{
			ID:         o.newID(),
			TenantID:   in.TenantID,
			AgentID:    agent.ID,
			SessionID:  in.SessionID,
			Provider:   oc.Provider,
			Attempts:   oc.Attempts,
			Success:    oc.Success,
			StatusCode: oc.Status,
			LatencyMs:  oc.Latency.Milliseconds(),
			ErrorKind:  oc.ErrKind,
			CreatedAt:  o.now(),
		}
		if err := o.store.RecordProviderEvent(ctx, ev); err != nil {
			log.Warn("provider event not recorded", "error", err, "provider", oc.Provider)
		}
	}
}

// persist meters the reply and commits the turn's message pair and usage
// event as one unit, then returns the canonical response payload.
func (o *Orchestrator) persist(ctx context.Context, sess *store.Session, agent *store.Agent, in TurnInput, result *provider.Result) ([]byte, error) {
	cost, err := o.meter.Cost(result.Provider, result.TokensIn, result.TokensOut)
	if err != nil {
		return nil, err
	}

	now := o.now()
	rec := store.TurnRecord{
		UserMessage: store.Message{
			ID:        o.newID(),
			TenantID:  in.TenantID,
			SessionID: sess.ID,
			Role:      store.RoleUser,
			Content:   in.Text,
			CreatedAt: now,
		},
		AssistantMessage: store.Message{
			ID:        o.newID(),
			TenantID:  in.TenantID,
			SessionID: sess.ID,
			Role:      store.RoleAssistant,
			Content:   result.Text,
			CreatedAt: now,
		},
		Usage: store.UsageEvent{
			ID:        o.newID(),
			TenantID:  in.TenantID,
			AgentID:   agent.ID,
			SessionID: sess.ID,
			Provider:  result.Provider,
			TokensIn:  result.TokensIn,
			TokensOut: result.TokensOut,
			Cost:      cost,
			CreatedAt: now,
		},
	}
	if err := o.store.AppendTurn(ctx, rec); err != nil {
		return nil, err
	}
	observability.RecordUsageCost(result.Provider, cost)

	resp := TurnResponse{
		SessionID:    sess.ID,
		ReplyText:    result.Text,
		ProviderUsed: result.Provider,
		TokensIn:     result.TokensIn,
		TokensOut:    result.TokensOut,
		Cost:         cost,
		LatencyMs:    result.Latency.Milliseconds(),
	}
	return json.Marshal(resp)
}

// release abandons the reservation on a best-effort basis. Release uses a
// fresh context so a cancelled request still unblocks its key.
func (o *Orchestrator) release(ctx context.Context, key idempotency.Key) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := o.idem.Release(releaseCtx, key); err != nil {
		log.Warn("reservation release failed", "error", err,
			"tenant", key.Tenant, "session", key.Session)
	}
}
