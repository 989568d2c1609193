package voice

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/turnpike-ai/turnpike/internal/log"
	"github.com/turnpike-ai/turnpike/internal/orchestrator"
	"github.com/turnpike-ai/turnpike/internal/store"
	"github.com/turnpike-ai/turnpike/pkg/observability"
)

// ShortCircuitReply is spoken back when the audio is too short to contain
// speech. Such turns never reach the orchestrator and are never billed.
const ShortCircuitReply = "Please speak again."

// TurnHandler is the orchestrator surface the pipeline depends on.
type TurnHandler interface {
	HandleTurn(ctx context.Context, in orchestrator.TurnInput) (*orchestrator.TurnResult, error)
}

// Input is one voice turn request after authentication.
type Input struct {
	TenantID  string
	SessionID string
	Audio     []byte
}

// Output is the result of a voice turn.
type Output struct {
	CorrelationID string
	Transcript    string
	AssistantText string
	Provider      string
	Audio         []byte
	MediaType     string
}

// Pipeline runs transcribe → dispatch → synthesize for one voice turn.
type Pipeline struct {
	turns  TurnHandler
	stt    Transcriber
	tts    Synthesizer
	events store.VoiceEventSink

	newID func() string
	now   func() time.Time
}

// NewPipeline creates a voice pipeline. A nil events sink disables voice
// metadata without affecting turns.
func NewPipeline(turns TurnHandler, stt Transcriber, tts Synthesizer, events store.VoiceEventSink) *Pipeline {
	if events == nil {
		events = store.NoopVoiceEvents{}
	}
	return &Pipeline{
		turns:  turns,
		stt:    stt,
		tts:    tts,
		events: events,
		newID:  uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Handle runs one voice turn. The correlation id in the output ties the
// transcription, dispatch, and synthesis stages together in logs and traces.
func (p *Pipeline) Handle(ctx context.Context, in Input) (*Output, error) {
	correlationID := p.newID()
	start := p.now()

	ctx, span := observability.StartSpan(ctx, "voice.turn",
		trace.WithAttributes(
			attribute.String("voice.correlation_id", correlationID),
			attribute.String("session.id", in.SessionID),
		),
	)
	defer span.End()

	log.Info("voice turn start",
		"correlationId", correlationID,
		"session", in.SessionID,
		"audioBytes", len(in.Audio),
	)

	transcript, err := p.stt.Transcribe(ctx, in.Audio)
	if err != nil {
		observability.RecordVoiceTurn("failed")
		return nil, err
	}

	out := &Output{CorrelationID: correlationID, Transcript: transcript}

	if transcript == "" {
		// Too short to contain speech: answer without dispatching a turn.
		out.AssistantText = ShortCircuitReply
		observability.RecordVoiceTurn("short_circuit")
	} else {
		result, err := p.turns.HandleTurn(ctx, orchestrator.TurnInput{
			TenantID:  in.TenantID,
			SessionID: in.SessionID,
			ClientKey: "voice-" + correlationID,
			Text:      transcript,
		})
		if err != nil {
			observability.RecordVoiceTurn("failed")
			return nil, err
		}
		var resp orchestrator.TurnResponse
		if err := json.Unmarshal(result.Payload, &resp); err != nil {
			observability.RecordVoiceTurn("failed")
			return nil, err
		}
		out.AssistantText = resp.ReplyText
		out.Provider = resp.ProviderUsed
		observability.RecordVoiceTurn("completed")
	}

	audio, err := p.tts.Synthesize(ctx, out.AssistantText)
	if err != nil {
		observability.RecordVoiceTurn("failed")
		return nil, err
	}
	out.Audio = audio.Audio
	out.MediaType = audio.MediaType

	latency := p.now().Sub(start)
	p.recordEvent(ctx, correlationID, in, out, latency)

	log.Info("voice turn done",
		"correlationId", correlationID,
		"latencyMs", latency.Milliseconds(),
		"transcriptLen", len(transcript),
	)
	return out, nil
}

// recordEvent persists voice metadata on a best-effort basis: a sink
// failure is logged and the turn still succeeds.
func (p *Pipeline) recordEvent(ctx context.Context, correlationID string, in Input, out *Output, latency time.Duration) {
	ev := &store.VoiceEvent{
		CorrelationID:  correlationID,
		TenantID:       in.TenantID,
		SessionID:      in.SessionID,
		UserTranscript: out.Transcript,
		AssistantText:  out.AssistantText,
		STTProvider:    p.stt.Name(),
		TTSProvider:    p.tts.Name(),
		ChatProvider:   out.Provider,
		LatencyMs:      latency.Milliseconds(),
		CreatedAt:      p.now(),
	}
	// Rough duration assuming 16kHz 16-bit mono input.
	if len(in.Audio) > 1000 {
		ev.AudioDurationSec = float64(len(in.Audio)) / (16000 * 2)
	}
	if err := p.events.RecordVoiceEvent(ctx, ev); err != nil {
		log.Warn("voice event not recorded", "error", err, "correlationId", correlationID)
	}
}
