package voice

import (
	"context"
	"encoding/binary"
	"strings"
	"testing"
	"time"
)

func TestSimSynthesizer_WAVContainer(t *testing.T) {
	s := &SimSynthesizer{}

	result, err := s.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if result.MediaType != "audio/wav" {
		t.Errorf("media type = %q, want audio/wav", result.MediaType)
	}

	audio := result.Audio
	if len(audio) < 44 {
		t.Fatalf("audio = %d bytes, want at least a 44-byte header", len(audio))
	}
	if string(audio[0:4]) != "RIFF" || string(audio[8:12]) != "WAVE" {
		t.Errorf("container magic = %q %q", audio[0:4], audio[8:12])
	}
	if string(audio[12:16]) != "fmt " || string(audio[36:40]) != "data" {
		t.Errorf("chunk ids = %q %q", audio[12:16], audio[36:40])
	}

	if rate := binary.LittleEndian.Uint32(audio[24:28]); rate != simSampleRate {
		t.Errorf("sample rate = %d, want %d", rate, simSampleRate)
	}
	if ch := binary.LittleEndian.Uint16(audio[22:24]); ch != 1 {
		t.Errorf("channels = %d, want mono", ch)
	}
	if bits := binary.LittleEndian.Uint16(audio[34:36]); bits != 16 {
		t.Errorf("bits per sample = %d, want 16", bits)
	}

	dataSize := binary.LittleEndian.Uint32(audio[40:44])
	if int(dataSize) != len(audio)-44 {
		t.Errorf("data chunk size = %d, want %d", dataSize, len(audio)-44)
	}
	riffSize := binary.LittleEndian.Uint32(audio[4:8])
	if int(riffSize) != len(audio)-8 {
		t.Errorf("riff size = %d, want %d", riffSize, len(audio)-8)
	}
}

func TestSimSynthesizer_DurationScalesWithText(t *testing.T) {
	s := &SimSynthesizer{}
	ctx := context.Background()

	tests := []struct {
		name string
		text string
		want time.Duration
	}{
		{"floor", "hi", 2 * time.Second},
		{"scaled", strings.Repeat("a", 100), 6 * time.Second},
		{"ceiling", strings.Repeat("a", 1000), 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.Synthesize(ctx, tt.text)
			if err != nil {
				t.Fatalf("Synthesize failed: %v", err)
			}
			if result.Duration != tt.want {
				t.Errorf("duration = %v, want %v", result.Duration, tt.want)
			}
			// PCM16 mono: duration seconds * rate * 2 bytes, plus header.
			wantBytes := int(tt.want.Seconds())*simSampleRate*2 + 44
			if len(result.Audio) != wantBytes {
				t.Errorf("audio = %d bytes, want %d", len(result.Audio), wantBytes)
			}
		})
	}
}

func TestSimSynthesizer_BeepThenSilence(t *testing.T) {
	s := &SimSynthesizer{}

	result, err := s.Synthesize(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	pcm := result.Audio[44:]

	var beepEnergy bool
	beepBytes := int(simSampleRate*0.3) * 2
	for i := 0; i < beepBytes; i += 2 {
		if int16(binary.LittleEndian.Uint16(pcm[i:])) != 0 {
			beepEnergy = true
			break
		}
	}
	if !beepEnergy {
		t.Error("beep region is all silence")
	}

	for i := beepBytes; i < len(pcm); i += 2 {
		if int16(binary.LittleEndian.Uint16(pcm[i:])) != 0 {
			t.Fatalf("non-zero sample at byte %d, tail should be silence", i)
		}
	}
}

func TestSimSynthesizer_CancelledContext(t *testing.T) {
	s := &SimSynthesizer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Synthesize(ctx, "hi"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestSimTranscriber_Threshold(t *testing.T) {
	tr := &SimTranscriber{}
	ctx := context.Background()

	got, err := tr.Transcribe(ctx, make([]byte, DefaultMinAudioBytes-1))
	if err != nil || got != "" {
		t.Errorf("below threshold = (%q, %v), want empty transcript", got, err)
	}

	got, err = tr.Transcribe(ctx, make([]byte, DefaultMinAudioBytes))
	if err != nil || got == "" {
		t.Errorf("at threshold = (%q, %v), want fixed transcript", got, err)
	}

	custom := &SimTranscriber{MinBytes: 10, Transcript: "override"}
	got, _ = custom.Transcribe(ctx, make([]byte, 10))
	if got != "override" {
		t.Errorf("transcript = %q, want override", got)
	}
}
