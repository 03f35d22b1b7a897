package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSegmenterPush covers sentence cutting at CJK terminators and
// newlines, with terminators kept attached.
func TestSegmenterPush(t *testing.T) {
	tests := []struct {
		name   string
		deltas []string
		want   []string
		rest   string
	}{
		{
			name:   "single sentence with trailing text",
			deltas: []string{"你好！今天天气"},
			want:   []string{"你好！"},
			rest:   "今天天气",
		},
		{
			name:   "sentence completed across deltas",
			deltas: []string{"你", "好！有什么", "可以帮你的？"},
			want:   []string{"你好！", "有什么可以帮你的？"},
			rest:   "",
		},
		{
			name:   "multiple sentences in one delta",
			deltas: []string{"一。二！三？"},
			want:   []string{"一。", "二！", "三？"},
			rest:   "",
		},
		{
			name:   "newline is a terminator",
			deltas: []string{"line one\nline two"},
			want:   []string{"line one"},
			rest:   "line two",
		},
		{
			name:   "whitespace-only increment dropped",
			deltas: []string{"  \n\n你好。"},
			want:   []string{"你好。"},
			rest:   "",
		},
		{
			name:   "no terminator buffers everything",
			deltas: []string{"还没", "说完"},
			want:   nil,
			rest:   "还没说完",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg := NewSegmenter("")
			var got []string
			for _, d := range tt.deltas {
				got = append(got, seg.Push(d)...)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.rest, seg.Flush())
		})
	}
}

// TestSegmenterCustomTerminators checks the boundary set is
// configurable.
func TestSegmenterCustomTerminators(t *testing.T) {
	seg := NewSegmenter("。！？.\n")
	got := seg.Push("Hello. 你好！More")
	require.Equal(t, []string{"Hello.", "你好！"}, got)
	assert.Equal(t, "More", seg.Flush())
}

// TestSegmenterFlushResets verifies Flush drains the buffer.
func TestSegmenterFlushResets(t *testing.T) {
	seg := NewSegmenter("")
	seg.Push("一半")
	assert.Equal(t, "一半", seg.Flush())
	assert.Empty(t, seg.Flush())
	assert.Equal(t, []string{"新句子。"}, seg.Push("新句子。"))
}
