package llm

import "strings"

// DefaultSystemPrompt keeps replies short and speakable. Backends that
// cannot take a system role receive it via their own mechanism.
const DefaultSystemPrompt = `You are CortexVoice, an intelligent voice assistant. Follow these rules:
1. Detect the user's language and respond in the same language
2. ONLY answer the current question - do not repeat or re-answer previous topics
3. Keep responses concise - 1-2 sentences unless more detail is requested
4. Use natural conversational style suitable for speech output
5. Never use markdown formatting, code blocks, or list symbols
6. Avoid special symbols like *, #, ` + "`" + `, - etc.
7. Express numbers naturally (e.g., "three point five" instead of "3.5")
8. Be friendly, like chatting with a friend`

// splitMessages separates a BuildMessages list back into its parts for
// backends that take a single prompt string instead of a message list.
func splitMessages(msgs []Message) (system string, history []Message, user string) {
	rest := msgs
	if len(rest) > 0 && rest[0].Role == RoleSystem {
		system = rest[0].Content
		rest = rest[1:]
	}
	if len(rest) > 0 && rest[len(rest)-1].Role == RoleUser {
		user = rest[len(rest)-1].Content
		rest = rest[:len(rest)-1]
	}
	return system, rest, user
}

// historyPrompt formats prior turns as guarded context for prompt-only
// backends, so the model answers the new message instead of replaying
// old ones.
func historyPrompt(history []Message) string {
	if len(history) == 0 {
		return ""
	}

	lines := []string{"[Conversation history for context - DO NOT re-answer these:]", ""}
	for _, msg := range history {
		role := "Assistant"
		if msg.Role == RoleUser {
			role = "User"
		}
		lines = append(lines, role+": "+msg.Content)
	}
	lines = append(lines, "", "[End of history. ONLY answer the NEW message below, not old ones:]")
	return strings.Join(lines, "\n")
}

// flattenPrompt builds the single prompt string for prompt-only
// backends: framed history, then the new user message.
func flattenPrompt(history []Message, user string) string {
	ctx := historyPrompt(history)
	if ctx == "" {
		return user
	}
	return ctx + "\n\nUser: " + user
}
