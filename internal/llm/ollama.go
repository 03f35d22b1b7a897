package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Ollama defaults.
const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "qwen2.5:7b"

	defaultChatTimeout = 120 * time.Second
)

// OllamaConfig configures the Ollama backend.
type OllamaConfig struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Terminators string
}

// OllamaProvider talks to a local Ollama server via its native chat
// API. Streaming responses arrive as newline-delimited JSON objects.
type OllamaProvider struct {
	config OllamaConfig
	client *http.Client
}

// NewOllamaProvider creates an Ollama backend with defaults applied.
func NewOllamaProvider(config OllamaConfig) *OllamaProvider {
	if config.BaseURL == "" {
		config.BaseURL = DefaultOllamaBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultOllamaModel
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultChatTimeout
	}
	return &OllamaProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Name returns the provider identifier.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaChatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

func (p *OllamaProvider) send(ctx context.Context, msgs []Message, stream bool) (*http.Response, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    p.config.Model,
		Messages: msgs,
		Stream:   stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama chat: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return resp, nil
}

// Chat runs a non-streaming turn.
func (p *OllamaProvider) Chat(ctx context.Context, msgs []Message) (string, error) {
	resp, err := p.send(ctx, msgs, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama chat: %s", out.Error)
	}
	return out.Message.Content, nil
}

// ChatStream runs a streaming turn, yielding complete sentences.
func (p *OllamaProvider) ChatStream(ctx context.Context, msgs []Message) (<-chan Chunk, error) {
	resp, err := p.send(ctx, msgs, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan Chunk, streamBufferSize)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		seg := NewSegmenter(p.config.Terminators)
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			var part ollamaChatResponse
			if err := json.Unmarshal(line, &part); err != nil {
				// Partial or garbled line; the next one usually parses.
				continue
			}
			if part.Error != "" {
				ch <- Chunk{Err: fmt.Errorf("ollama stream: %s", part.Error)}
				return
			}
			for _, sentence := range seg.Push(part.Message.Content) {
				ch <- Chunk{Text: sentence}
			}
			if part.Done {
				break
			}
		}
		if err := sc.Err(); err != nil {
			ch <- Chunk{Err: fmt.Errorf("read ollama stream: %w", err)}
			return
		}
		if rest := seg.Flush(); rest != "" {
			ch <- Chunk{Text: rest}
		}
	}()
	return ch, nil
}

// Health checks the server is reachable.
func (p *OllamaProvider) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
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
