package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAI-compatible defaults. Pointing BaseURL elsewhere covers
// OpenRouter, Zhipu and other compatible gateways.
const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAIConfig configures an OpenAI-compatible backend.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Terminators string
}

// OpenAIProvider speaks the chat completions API with SSE streaming.
type OpenAIProvider struct {
	config OpenAIConfig
	client *http.Client
}

// NewOpenAIProvider creates an OpenAI-compatible backend with defaults
// applied.
func NewOpenAIProvider(config OpenAIConfig) *OpenAIProvider {
	if config.BaseURL == "" {
		config.BaseURL = DefaultOpenAIBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = DefaultOpenAIModel
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultChatTimeout
	}
	return &OpenAIProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

type openAIChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) send(ctx context.Context, msgs []Message, stream bool) (*http.Response, error) {
	body, err := json.Marshal(openAIChatRequest{
		Model:    p.config.Model,
		Messages: msgs,
		Stream:   stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("chat completions: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return resp, nil
}

// Chat runs a non-streaming turn.
func (p *OpenAIProvider) Chat(ctx context.Context, msgs []Message) (string, error) {
	resp, err := p.send(ctx, msgs, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("chat completions: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat completions: empty choices")
	}
	return out.Choices[0].Message.Content, nil
}

// ChatStream runs a streaming turn, yielding complete sentences parsed
// from the SSE delta stream.
func (p *OpenAIProvider) ChatStream(ctx context.Context, msgs []Message) (<-chan Chunk, error) {
	resp, err := p.send(ctx, msgs, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan Chunk, streamBufferSize)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		seg := NewSegmenter(p.config.Terminators)
		reader := newSSEReader(resp.Body)
		for {
			evt, err := reader.readEvent()
			if err != nil {
				if err != io.EOF {
					ch <- Chunk{Err: fmt.Errorf("read chat stream: %w", err)}
					return
				}
				break
			}
			if evt.Data == "[DONE]" {
				break
			}
			var part openAIChatResponse
			if err := json.Unmarshal([]byte(evt.Data), &part); err != nil {
				continue
			}
			if part.Error != nil {
				ch <- Chunk{Err: fmt.Errorf("chat stream: %s", part.Error.Message)}
				return
			}
			if len(part.Choices) == 0 {
				continue
			}
			for _, sentence := range seg.Push(part.Choices[0].Delta.Content) {
				ch <- Chunk{Text: sentence}
			}
		}
		if rest := seg.Flush(); rest != "" {
			ch <- Chunk{Text: rest}
		}
	}()
	return ch, nil
}

// Health checks the endpoint is reachable with the configured key.
func (p *OpenAIProvider) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	return nil
}
