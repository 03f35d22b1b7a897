// Package llm provides chat language-model backends for CortexVoice.
package llm

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrProviderUnavailable = errors.New("LLM provider unavailable")
	ErrEmptyInput          = errors.New("input cannot be empty")
	ErrInputTooLong        = errors.New("input too long")
	ErrBlockedPattern      = errors.New("input contains blocked pattern")
	ErrTimeout             = errors.New("chat timeout")
)

// Roles used in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message in provider wire order.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chunk is one streamed sentence increment. A non-nil Err is the last
// element on the channel and marks the stream as failed; text delivered
// before it remains valid.
type Chunk struct {
	Text string
	Err  error
}

// Provider is the interface all chat backends must implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "ollama", "claude")
	Name() string

	// Chat runs one full turn and returns the complete reply
	Chat(ctx context.Context, msgs []Message) (string, error)

	// ChatStream runs one turn and yields complete sentences as they
	// form. The channel closes when the reply is exhausted.
	ChatStream(ctx context.Context, msgs []Message) (<-chan Chunk, error)

	// Health checks if the provider is available
	Health(ctx context.Context) error
}

// BuildMessages assembles the provider message list: system prompt,
// then bounded history, then the new user message.
func BuildMessages(systemPrompt string, history []Message, userText string) []Message {
	msgs := make([]Message, 0, len(history)+2)
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, Message{Role: RoleUser, Content: userText})
	return msgs
}

// streamBufferSize is the chunk channel depth shared by providers. The
// consumer synthesizes speech per chunk, so the buffer absorbs bursts
// without stalling the reader goroutine.
const streamBufferSize = 32
