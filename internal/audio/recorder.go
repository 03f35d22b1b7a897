package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Recorder turns a capture source and a detector into complete speech
// segments. One Record call owns the source for its duration.
type Recorder struct {
	source   CaptureSource
	detector Detector
	config   RecorderConfig
	logger   zerolog.Logger
}

// NewRecorder creates a recorder.
func NewRecorder(source CaptureSource, detector Detector, config RecorderConfig, logger zerolog.Logger) *Recorder {
	return &Recorder{
		source:   source,
		detector: detector,
		config:   config,
		logger:   logger.With().Str("component", "recorder").Logger(),
	}
}

// SetThreshold updates the gating threshold. Callers serialize this
// with Record.
func (r *Recorder) SetThreshold(threshold float64) {
	if threshold > 0 {
		r.config.Threshold = threshold
	}
}

// frameRing keeps the most recent frames up to a fixed count. It holds
// the audio just before speech onset so the segment does not clip the
// first syllable.
type frameRing struct {
	frames [][]float32
	max    int
}

func (r *frameRing) push(frame []float32) {
	if r.max == 0 {
		return
	}
	if len(r.frames) == r.max {
		r.frames = r.frames[1:]
	}
	r.frames = append(r.frames, frame)
}

func (r *frameRing) drain() [][]float32 {
	frames := r.frames
	r.frames = nil
	return frames
}

// framesFor converts a duration to a frame count at the capture format.
func framesFor(d time.Duration) int {
	return int(d.Seconds() * SampleRate / FrameSize)
}

// Record captures one VAD-gated utterance. Speech starts after
// Consecutive frames above Threshold; onSpeech fires once at that
// point. Recording ends after SilenceAfter of silence, at MaxDuration,
// or when the source ends. Segments shorter than MinSpeech and onsets
// that never arrive within InitialTimeout return ErrNoSpeech.
func (r *Recorder) Record(ctx context.Context, onSpeech func()) (*SpeechSegment, error) {
	maxSilence := framesFor(r.config.SilenceAfter)
	minSpeech := framesFor(r.config.MinSpeech)
	maxFrames := framesFor(r.config.MaxDuration)

	if err := r.source.Start(ctx); err != nil {
		return nil, err
	}
	defer r.source.Stop()
	r.detector.Reset()

	var (
		frames      [][]float32
		pre         = frameRing{max: framesFor(r.config.PreBuffer)}
		speaking    bool
		consecutive int
		silence     int
		speech      int
	)
	startTime := time.Now()
	buf := make([]float32, FrameSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, readErr := r.source.ReadFrame(buf)
		if n > 0 {
			frame := make([]float32, n)
			copy(frame, buf[:n])

			if r.detector.Detect(frame) > r.config.Threshold {
				consecutive++
				if !speaking && consecutive >= r.config.Consecutive {
					speaking = true
					frames = append(frames, pre.drain()...)
					r.logger.Info().Msg("Speech detected")
					if onSpeech != nil {
						onSpeech()
					}
				}
				if speaking {
					// Isolated loud frames do not reset the silence count.
					if consecutive >= r.config.Consecutive {
						silence = 0
					}
					speech++
					frames = append(frames, frame)
				} else {
					pre.push(frame)
				}
			} else {
				consecutive = 0
				if speaking {
					frames = append(frames, frame)
					silence++
					if silence >= maxSilence && speech >= minSpeech {
						r.logger.Info().Msg("Speech ended")
						break
					}
				} else {
					pre.push(frame)
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read frame: %w", readErr)
		}
		if len(frames) >= maxFrames {
			r.logger.Warn().Msg("Max recording duration reached")
			break
		}
		if !speaking && time.Since(startTime) > r.config.InitialTimeout {
			r.logger.Info().Dur("elapsed", time.Since(startTime)).Msg("Gave up waiting for speech")
			return nil, ErrNoSpeech
		}
	}

	if len(frames) == 0 || speech < minSpeech {
		return nil, ErrNoSpeech
	}
	return r.segment(frames, startTime), nil
}

// RecordFixed captures exactly duration of audio with no gating.
func (r *Recorder) RecordFixed(ctx context.Context, duration time.Duration) (*SpeechSegment, error) {
	total := framesFor(duration)
	if total <= 0 {
		return nil, fmt.Errorf("duration too short: %s", duration)
	}

	if err := r.source.Start(ctx); err != nil {
		return nil, err
	}
	defer r.source.Stop()

	var frames [][]float32
	startTime := time.Now()
	buf := make([]float32, FrameSize)

	for len(frames) < total {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, readErr := r.source.ReadFrame(buf)
		if n > 0 {
			frame := make([]float32, n)
			copy(frame, buf[:n])
			frames = append(frames, frame)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read frame: %w", readErr)
		}
	}

	if len(frames) == 0 {
		return nil, ErrNoSpeech
	}
	return r.segment(frames, startTime), nil
}

func (r *Recorder) segment(frames [][]float32, startTime time.Time) *SpeechSegment {
	pcm := pcm16FromFrames(frames)
	duration := time.Duration(len(pcm)/2) * time.Second / SampleRate
	endTime := time.Now()

	r.logger.Info().Dur("duration", duration).Msg("Recording complete")
	return &SpeechSegment{
		Audio:      pcm,
		SampleRate: SampleRate,
		Channels:   Channels,
		Duration:   duration,
		StartTime:  startTime,
		EndTime:    endTime,
	}
}
