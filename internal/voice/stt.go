// Package voice wraps the turn orchestrator with a transcription step
// before dispatch and a synthesis step after, correlated per voice turn.
package voice

import "context"

// Transcriber converts recorded audio into text.
type Transcriber interface {
	// Transcribe returns the transcript for the audio, or the empty string
	// when the audio is too short to contain speech.
	Transcribe(ctx context.Context, audio []byte) (string, error)

	// Name returns the transcriber identifier.
	Name() string
}

// DefaultMinAudioBytes is the threshold below which audio is considered
// empty of speech.
const DefaultMinAudioBytes = 100

// SimTranscriber is a deterministic transcriber for development and tests.
// A real backend (e.g. Whisper) would decode the audio.
type SimTranscriber struct {
	// MinBytes overrides DefaultMinAudioBytes when positive.
	MinBytes int

	// Transcript overrides the fixed transcript when non-empty.
	Transcript string
}

// Transcribe returns a fixed transcript, or "" for audio below the minimum.
func (t *SimTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	min := t.MinBytes
	if min <= 0 {
		min = DefaultMinAudioBytes
	}
	if len(audio) < min {
		return "", nil
	}
	if t.Transcript != "" {
		return t.Transcript, nil
	}
	return "User said something via voice.", nil
}

// Name returns the transcriber identifier.
func (t *SimTranscriber) Name() string { return "sim" }
