// Package voice tracks the in-memory conversation state shared by the
// chat handlers.
package voice

import (
	"strings"
	"sync"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one utterance in the conversation, user or assistant.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DefaultMaxHistory is the number of user/assistant exchanges kept when
// no limit is configured.
const DefaultMaxHistory = 10

// Conversation is a bounded, mutex-guarded turn list. The bound counts
// exchanges, so up to maxHistory*2 turns are retained and the oldest
// turn is evicted first.
type Conversation struct {
	mu         sync.RWMutex
	turns      []Turn
	maxHistory int
}

// NewConversation creates a conversation retaining maxHistory exchanges.
func NewConversation(maxHistory int) *Conversation {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Conversation{
		turns:      make([]Turn, 0, maxHistory*2),
		maxHistory: maxHistory,
	}
}

// Append records one turn, evicting the oldest turns beyond the bound.
func (c *Conversation) Append(role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, Turn{Role: role, Content: content})
	for len(c.turns) > c.maxHistory*2 {
		c.turns = c.turns[1:]
	}
}

// Turns returns a copy of the retained turns, oldest first.
func (c *Conversation) Turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of retained turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// Clear drops all history.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = c.turns[:0]
}

// SetMaxHistory changes the exchange bound and trims immediately.
func (c *Conversation) SetMaxHistory(maxHistory int) {
	if maxHistory <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxHistory = maxHistory
	for len(c.turns) > c.maxHistory*2 {
		c.turns = c.turns[1:]
	}
}

// clearKeywords trigger a history reset instead of an LLM turn.
var clearKeywords = []string{
	"clear history",
	"start over",
	"forget everything",
	"清空对话",
	"重新开始",
}

// ShouldClear reports whether the utterance asks to reset the
// conversation. Matching is by substring, case-insensitive.
func ShouldClear(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range clearKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// clearConfirmations are the spoken acknowledgements for a history
// reset, keyed by language.
var clearConfirmations = map[string]string{
	"zh":  "好的，已清空对话记录，重新开始。",
	"en":  "OK, conversation cleared. Let's start fresh.",
	"ja":  "会話履歴をクリアしました。",
	"ko":  "대화 기록을 지웠습니다.",
	"yue": "好，已清空對話記錄。",
}

// ClearConfirmation returns the reset acknowledgement for a language,
// falling back to English.
func ClearConfirmation(language string) string {
	if msg, ok := clearConfirmations[language]; ok {
		return msg
	}
	return clearConfirmations["en"]
}
