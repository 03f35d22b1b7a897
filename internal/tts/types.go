// Package tts provides text-to-speech synthesis backends for
// CortexVoice. Providers write audio artifacts to disk and hand back
// the path; the artifact store owns naming and cleanup.
package tts

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrProviderUnavailable = errors.New("TTS provider unavailable")
	ErrEmptyText           = errors.New("nothing to synthesize")
	ErrNoAudio             = errors.New("synthesis produced no audio")
	ErrTimeout             = errors.New("synthesis timeout")
)

// Provider is the interface all TTS backends must implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "edge", "system")
	Name() string

	// Synthesize renders text to an audio file and returns its path
	Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResult, error)

	// Health checks if the provider is available
	Health(ctx context.Context) error
}

// SynthesizeRequest asks for one utterance. An empty Language makes the
// provider detect it from the text; an empty Voice picks the language's
// default voice.
type SynthesizeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Voice    string `json:"voice,omitempty"`
	Rate     string `json:"rate,omitempty"` // e.g. "+0%", "-20%"
}

// SynthesizeResult points at the rendered artifact.
type SynthesizeResult struct {
	AudioPath      string        `json:"audio_path"`
	Voice          string        `json:"voice"`
	Language       string        `json:"language"`
	Format         string        `json:"format"` // mp3, wav, aiff
	ProcessingTime time.Duration `json:"processing_time"`
}
