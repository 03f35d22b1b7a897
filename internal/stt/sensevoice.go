package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SenseVoice defaults. The provider expects a SenseVoice model served
// behind an OpenAI-compatible transcription endpoint.
const (
	DefaultSenseVoiceBaseURL = "http://localhost:8000"
	DefaultSenseVoiceModel   = "iic/SenseVoiceSmall"

	// DefaultLanguage is assumed when the model emits no language tag.
	DefaultLanguage = "zh"
)

// SenseVoice transcripts are decorated with rich tags like
// <|zh|><|NEUTRAL|><|Speech|>. The first pattern picks out the spoken
// language, the second strips every tag from the text.
var (
	langTagPattern = regexp.MustCompile(`<\|(zh|en|ja|ko|yue)\|>`)
	richTagPattern = regexp.MustCompile(`<\|[^|]+\|>`)
)

// SenseVoiceConfig holds SenseVoice endpoint configuration.
type SenseVoiceConfig struct {
	BaseURL  string        `json:"base_url"`
	APIKey   string        `json:"api_key"`
	Model    string        `json:"model"`
	Language string        `json:"language"` // Hint; empty or "auto" lets the model decide
	Timeout  time.Duration `json:"timeout"`
}

// DefaultSenseVoiceConfig returns sensible defaults.
func DefaultSenseVoiceConfig() *SenseVoiceConfig {
	return &SenseVoiceConfig{
		BaseURL: DefaultSenseVoiceBaseURL,
		Model:   DefaultSenseVoiceModel,
		Timeout: 30 * time.Second,
	}
}

// SenseVoiceProvider implements STT against a SenseVoice server.
type SenseVoiceProvider struct {
	client *http.Client
	logger zerolog.Logger
	config *SenseVoiceConfig
}

// NewSenseVoiceProvider creates a SenseVoice provider.
func NewSenseVoiceProvider(logger zerolog.Logger, config *SenseVoiceConfig) *SenseVoiceProvider {
	if config == nil {
		config = DefaultSenseVoiceConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultSenseVoiceBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultSenseVoiceModel
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &SenseVoiceProvider{
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("provider", "sensevoice").Logger(),
		config: config,
	}
}

// Name returns the provider identifier.
func (p *SenseVoiceProvider) Name() string {
	return "sensevoice"
}

// Transcribe uploads one utterance as WAV and parses the tagged
// transcript.
func (p *SenseVoiceProvider) Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResponse, error) {
	startTime := time.Now()

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
	if hint := p.languageHint(req); hint != "" {
		if err := writer.WriteField("language", hint); err != nil {
			return nil, fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	if p.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

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
		p.logger.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("SenseVoice API error")
		return nil, fmt.Errorf("sensevoice: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	language := ExtractLanguage(result.Text)
	if language == "" {
		if language = req.Language; language == "" {
			language = DefaultLanguage
		}
	}
	text := CleanTranscript(result.Text)
	if text == "" {
		return nil, ErrNoSpeech
	}

	processingTime := time.Since(startTime)
	p.logger.Info().
		Str("text", text).
		Str("language", language).
		Dur("time", processingTime).
		Msg("Transcription complete")

	return &TranscribeResponse{
		Text:           text,
		Language:       language,
		ProcessingTime: processingTime,
	}, nil
}

func (p *SenseVoiceProvider) languageHint(req *TranscribeRequest) string {
	hint := req.Language
	if hint == "" {
		hint = p.config.Language
	}
	if hint == "auto" {
		return ""
	}
	return hint
}

// Health checks the server is reachable. Any HTTP answer counts; only
// transport failures mark the provider unavailable.
func (p *SenseVoiceProvider) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	resp.Body.Close()
	return nil
}

// ExtractLanguage returns the language code from the first SenseVoice
// language tag, or "" when none is present.
func ExtractLanguage(raw string) string {
	m := langTagPattern.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return m[1]
}

// CleanTranscript strips every rich tag and surrounding whitespace from
// a SenseVoice transcript.
func CleanTranscript(raw string) string {
	return strings.TrimSpace(richTagPattern.ReplaceAllString(raw, ""))
}
