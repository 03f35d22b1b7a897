// Package stt provides speech-to-text transcription backends for
// CortexVoice.
package stt

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrProviderUnavailable = errors.New("STT provider unavailable")
	ErrNoSpeech            = errors.New("no speech detected")
	ErrAudioTooShort       = errors.New("audio too short for transcription")
)

// Provider is the interface all STT backends must implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "sensevoice")
	Name() string

	// Transcribe converts one captured utterance to text
	Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResponse, error)

	// Health checks if the provider is available
	Health(ctx context.Context) error
}

// TranscribeRequest carries one utterance of raw PCM audio.
type TranscribeRequest struct {
	Audio      []byte // 16-bit little-endian PCM
	SampleRate int    // Sample rate in Hz
	Channels   int    // Number of channels
	Language   string // Optional language hint (e.g., "zh")
}

// TranscribeResponse is a finished transcription.
type TranscribeResponse struct {
	Text           string        // Cleaned transcript
	Language       string        // Detected or hinted language code
	ProcessingTime time.Duration // How long transcription took
}

// wavFromPCM wraps raw 16-bit PCM in a RIFF/WAVE container for upload.
func wavFromPCM(pcm []byte, sampleRate, channels int) []byte {
	if sampleRate == 0 {
		sampleRate = 16000
	}
	if channels == 0 {
		channels = 1
	}

	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)
	fileSize := 36 + dataSize

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	putUint32LE(header[4:8], uint32(fileSize))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	putUint32LE(header[16:20], 16) // PCM subchunk size
	header[20] = 1                 // AudioFormat: PCM
	header[22] = byte(channels)
	putUint32LE(header[24:28], uint32(sampleRate))
	putUint32LE(header[28:32], uint32(byteRate))
	header[32] = byte(blockAlign)
	header[34] = bitsPerSample

	copy(header[36:40], "data")
	putUint32LE(header[40:44], uint32(dataSize))

	return append(header, pcm...)
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
