// Package audio provides microphone capture and voice activity
// detection for CortexVoice. Capture shells out to an external
// recorder; detection and segmentation run in-process on raw frames.
package audio

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrNoSpeech       = errors.New("no speech detected")
	ErrCaptureStopped = errors.New("capture stopped")
	ErrNoCaptureTool  = errors.New("no capture tool found")
	ErrAlreadyStarted = errors.New("capture already started")
)

// Fixed capture format. Frames are 512 samples of 16 kHz mono, the
// granularity the detector scores at.
const (
	SampleRate = 16000
	Channels   = 1
	BitDepth   = 16
	FrameSize  = 512
)

// RecorderConfig holds the gating parameters for VAD-driven capture.
type RecorderConfig struct {
	Threshold      float64       `json:"threshold"`       // Speech probability threshold (0-1)
	Consecutive    int           `json:"consecutive"`     // Frames above threshold before speech starts
	PreBuffer      time.Duration `json:"pre_buffer"`      // Audio kept before onset to avoid clipping
	MinSpeech      time.Duration `json:"min_speech"`      // Segments shorter than this are discarded
	SilenceAfter   time.Duration `json:"silence_after"`   // Silence that ends a segment
	MaxDuration    time.Duration `json:"max_duration"`    // Hard cap on one segment
	InitialTimeout time.Duration `json:"initial_timeout"` // Give up waiting for onset after this
}

// DefaultRecorderConfig returns the standard gating parameters.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Threshold:      0.5,
		Consecutive:    3,
		PreBuffer:      300 * time.Millisecond,
		MinSpeech:      400 * time.Millisecond,
		SilenceAfter:   800 * time.Millisecond,
		MaxDuration:    30 * time.Second,
		InitialTimeout: 60 * time.Second,
	}
}

// SpeechSegment is one captured utterance as raw 16-bit PCM.
type SpeechSegment struct {
	Audio      []byte        `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
}

// pcm16FromFrames flattens float32 frames into little-endian 16-bit
// PCM, clamping out-of-range samples.
func pcm16FromFrames(frames [][]float32) []byte {
	total := 0
	for _, f := range frames {
		total += len(f)
	}
	out := make([]byte, 0, total*2)
	for _, frame := range frames {
		for _, sample := range frame {
			if sample > 1 {
				sample = 1
			} else if sample < -1 {
				sample = -1
			}
			v := int16(sample * 32767)
			out = append(out, byte(v), byte(v>>8))
		}
	}
	return out
}
