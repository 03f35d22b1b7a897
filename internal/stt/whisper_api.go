package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Whisper API defaults.
const (
	DefaultWhisperBaseURL = "https://api.openai.com/v1"
	DefaultWhisperModel   = "whisper-1"
)

// WhisperAPIConfig holds Whisper API configuration.
type WhisperAPIConfig struct {
	BaseURL  string        `json:"base_url"`
	APIKey   string        `json:"api_key"`
	Model    string        `json:"model"`
	Language string        `json:"language"` // Optional hint; empty auto-detects
	Timeout  time.Duration `json:"timeout"`
}

// DefaultWhisperAPIConfig returns sensible defaults.
func DefaultWhisperAPIConfig() *WhisperAPIConfig {
	return &WhisperAPIConfig{
		BaseURL: DefaultWhisperBaseURL,
		Model:   DefaultWhisperModel,
		Timeout: 30 * time.Second,
	}
}

// WhisperAPIProvider implements STT using the OpenAI Whisper API.
type WhisperAPIProvider struct {
	apiKey string
	client *http.Client
	logger zerolog.Logger
	config *WhisperAPIConfig
}

// NewWhisperAPIProvider creates a Whisper API provider. The key falls
// back to OPENAI_API_KEY.
func NewWhisperAPIProvider(logger zerolog.Logger, config *WhisperAPIConfig) *WhisperAPIProvider {
	if config == nil {
		config = DefaultWhisperAPIConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultWhisperBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultWhisperModel
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	return &WhisperAPIProvider{
		apiKey: apiKey,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("provider", "whisper-api").Logger(),
		config: config,
	}
}

// Name returns the provider identifier.
func (p *WhisperAPIProvider) Name() string {
	return "whisper-api"
}

// Transcribe sends one utterance to the Whisper API.
func (p *WhisperAPIProvider) Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResponse, error) {
	startTime := time.Now()

	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: API key not configured", ErrProviderUnavailable)
	}
	if len(req.Audio) == 0 {
		return nil, ErrAudioTooShort
	}

	wavData := wavFromPCM(req.Audio, req.SampleRate, req.Channels)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	if err := writer.WriteField("model", p.config.Model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	language := req.Language
	if language == "" {
		language = p.config.Language
	}
	if language != "" {
		if err := writer.WriteField("language", language); err != nil {
			return nil, fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		p.logger.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("Whisper API error")
		return nil, fmt.Errorf("whisper: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	text := CleanTranscript(result.Text)
	if text == "" {
		return nil, ErrNoSpeech
	}

	processingTime := time.Since(startTime)
	p.logger.Info().Str("text", text).Dur("time", processingTime).Msg("Transcription complete")

	return &TranscribeResponse{
		Text:           text,
		Language:       language,
		ProcessingTime: processingTime,
	}, nil
}

// Health checks if the API is usable.
func (p *WhisperAPIProvider) Health(_ context.Context) error {
	if p.apiKey == "" {
		return fmt.Errorf("%w: API key not configured", ErrProviderUnavailable)
	}
	return nil
}
