package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidateInput covers the acceptance and rejection rules applied
// to every utterance before a backend sees it.
func TestValidateInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{
			name:  "plain text passes",
			input: "介绍一下量子计算",
			want:  "介绍一下量子计算",
		},
		{
			name:  "length is counted in runes",
			input: strings.Repeat("好", MaxInputLength),
			want:  strings.Repeat("好", MaxInputLength),
		},
		{
			name:    "too long",
			input:   strings.Repeat("a", MaxInputLength+1),
			wantErr: ErrInputTooLong,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: ErrEmptyInput,
		},
		{
			name:    "whitespace only",
			input:   "   \n\t ",
			wantErr: ErrEmptyInput,
		},
		{
			name:    "script tag blocked",
			input:   "hello <SCRIPT>alert(1)</script>",
			wantErr: ErrBlockedPattern,
		},
		{
			name:    "javascript url blocked",
			input:   "open JavaScript:void(0)",
			wantErr: ErrBlockedPattern,
		},
		{
			name:    "null byte blocked",
			input:   "abc\x00def",
			wantErr: ErrBlockedPattern,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateInput(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestValidateInputStripsControlChars keeps newline, carriage return
// and tab but drops other control characters.
func TestValidateInputStripsControlChars(t *testing.T) {
	got, err := ValidateInput("a\x07b\tc\nd\re")
	require.NoError(t, err)
	assert.Equal(t, "ab\tc\nd\re", got)
}

// TestValidateSystemPrompt applies the shorter bound.
func TestValidateSystemPrompt(t *testing.T) {
	_, err := ValidateSystemPrompt(strings.Repeat("x", MaxSystemPromptLength+1))
	assert.ErrorIs(t, err, ErrInputTooLong)

	got, err := ValidateSystemPrompt("be brief")
	require.NoError(t, err)
	assert.Equal(t, "be brief", got)
}
