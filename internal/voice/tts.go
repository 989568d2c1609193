package voice

import (
	"context"
	"encoding/binary"
	"math"
	"time"
)

// AudioResult is a complete synthesis output.
type AudioResult struct {
	// Audio contains the encoded audio bytes.
	Audio []byte

	// MediaType is the MIME type of the audio (e.g. "audio/wav").
	MediaType string

	// Duration is the playback duration.
	Duration time.Duration
}

// Synthesizer converts reply text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Name returns the synthesizer identifier.
	Name() string
}

const (
	simSampleRate = 16000
	simBeepHz     = 440
	simBeepAmp    = 8000
)

// SimSynthesizer produces a 440Hz beep followed by silence, sized to the
// text length so the caller hears something proportional to the reply.
// 16kHz mono PCM16 in a WAV container.
type SimSynthesizer struct{}

// Synthesize renders the placeholder audio.
func (s *SimSynthesizer) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	durationSec := float64(len(text)) * 0.06
	if durationSec < 2.0 {
		durationSec = 2.0
	}
	if durationSec > 30.0 {
		durationSec = 30.0
	}

	numSamples := int(simSampleRate * durationSec)
	beepSamples := int(simSampleRate * 0.3)

	raw := make([]byte, numSamples*2)
	for i := 0; i < numSamples && i < beepSamples; i++ {
		t := float64(i) / simSampleRate
		sample := int16(simBeepAmp * math.Sin(2*math.Pi*simBeepHz*t))
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(sample))
	}

	return &AudioResult{
		Audio:     wavContainer(raw, simSampleRate),
		MediaType: "audio/wav",
		Duration:  time.Duration(durationSec * float64(time.Second)),
	}, nil
}

// Name returns the synthesizer identifier.
func (s *SimSynthesizer) Name() string { return "sim" }

// wavContainer wraps raw PCM16 mono samples in a RIFF/WAVE header.
func wavContainer(raw []byte, sampleRate int) []byte {
	dataSize := len(raw)
	out := make([]byte, 0, 44+dataSize)

	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(36+dataSize))
	out = append(out, "WAVE"...)

	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, 16) // PCM chunk size
	out = binary.LittleEndian.AppendUint16(out, 1)  // PCM format
	out = binary.LittleEndian.AppendUint16(out, 1)  // mono
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate*2)) // byte rate
	out = binary.LittleEndian.AppendUint16(out, 2)                    // block align
	out = binary.LittleEndian.AppendUint16(out, 16)                   // bits per sample

	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataSize))
	return append(out, raw...)
}
