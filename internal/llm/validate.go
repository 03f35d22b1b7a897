package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Input validation limits.
const (
	MaxInputLength        = 10000
	MaxSystemPromptLength = 5000
)

// blockedPatterns are rejected anywhere in the input, case-insensitive.
var blockedPatterns = []string{
	"<script",
	"javascript:",
	"\x00",
}

// ValidateInput checks and sanitizes one user utterance before it
// reaches a backend. It returns the input with control characters
// stripped (newline, carriage return and tab survive).
func ValidateInput(text string) (string, error) {
	return validate(text, MaxInputLength)
}

// ValidateSystemPrompt applies the same rules with the system prompt
// length bound.
func ValidateSystemPrompt(text string) (string, error) {
	return validate(text, MaxSystemPromptLength)
}

func validate(text string, maxLength int) (string, error) {
	if n := utf8.RuneCountInString(text); n > maxLength {
		return "", fmt.Errorf("%w: %d > %d characters", ErrInputTooLong, n, maxLength)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}

	lower := strings.ToLower(text)
	for _, pattern := range blockedPatterns {
		if strings.Contains(lower, pattern) {
			return "", fmt.Errorf("%w: %q", ErrBlockedPattern, printable(pattern))
		}
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r >= 32 || r == '\n' || r == '\r' || r == '\t' {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// printable keeps error messages readable when the pattern itself is a
// control character.
func printable(pattern string) string {
	if pattern == "\x00" {
		return "null byte"
	}
	return pattern
}
