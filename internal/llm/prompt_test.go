package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuildMessages pins the provider wire order: system, history, new
// user message.
func TestBuildMessages(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "你好"},
		{Role: RoleAssistant, Content: "你好！"},
	}
	msgs := BuildMessages("be brief", history, "今天天气怎么样")

	require.Len(t, msgs, 4)
	assert.Equal(t, Message{Role: RoleSystem, Content: "be brief"}, msgs[0])
	assert.Equal(t, history[0], msgs[1])
	assert.Equal(t, history[1], msgs[2])
	assert.Equal(t, Message{Role: RoleUser, Content: "今天天气怎么样"}, msgs[3])

	// Empty system prompt is omitted entirely.
	msgs = BuildMessages("", nil, "hi")
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleUser, msgs[0].Role)
}

// TestSplitMessages recovers the parts BuildMessages assembled.
func TestSplitMessages(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
	}
	system, hist, user := splitMessages(BuildMessages("sp", history, "q2"))
	assert.Equal(t, "sp", system)
	assert.Equal(t, history, hist)
	assert.Equal(t, "q2", user)

	system, hist, user = splitMessages([]Message{{Role: RoleUser, Content: "only"}})
	assert.Empty(t, system)
	assert.Empty(t, hist)
	assert.Equal(t, "only", user)
}

// TestFlattenPrompt checks the guarded history framing for prompt-only
// backends.
func TestFlattenPrompt(t *testing.T) {
	assert.Equal(t, "hi", flattenPrompt(nil, "hi"))

	history := []Message{
		{Role: RoleUser, Content: "什么是量子计算"},
		{Role: RoleAssistant, Content: "量子计算是一种计算方式。"},
	}
	prompt := flattenPrompt(history, "再简单一点")

	assert.True(t, strings.HasPrefix(prompt, "[Conversation history for context - DO NOT re-answer these:]"))
	assert.Contains(t, prompt, "User: 什么是量子计算")
	assert.Contains(t, prompt, "Assistant: 量子计算是一种计算方式。")
	assert.Contains(t, prompt, "[End of history. ONLY answer the NEW message below, not old ones:]")
	assert.True(t, strings.HasSuffix(prompt, "User: 再简单一点"))
}
