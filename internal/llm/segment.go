package llm

import (
	"strings"
	"unicode/utf8"
)

// DefaultTerminators are the sentence boundaries used when streaming a
// reply for speech: CJK full stops plus newline. Every terminator stays
// attached to its sentence.
const DefaultTerminators = "。！？\n"

// Segmenter accumulates streamed text deltas and cuts them into
// complete sentences at terminator runes. Not safe for concurrent use;
// each stream owns its own Segmenter.
type Segmenter struct {
	buf         string
	terminators string
}

// NewSegmenter creates a Segmenter. Empty terminators select
// DefaultTerminators.
func NewSegmenter(terminators string) *Segmenter {
	if terminators == "" {
		terminators = DefaultTerminators
	}
	return &Segmenter{terminators: terminators}
}

// Push appends a delta and returns any sentences completed by it,
// trimmed of surrounding whitespace. Increments that trim to nothing
// are dropped.
func (s *Segmenter) Push(delta string) []string {
	s.buf += delta

	var out []string
	for {
		idx := strings.IndexAny(s.buf, s.terminators)
		if idx < 0 {
			break
		}
		_, width := utf8.DecodeRuneInString(s.buf[idx:])
		sentence := strings.TrimSpace(s.buf[:idx+width])
		s.buf = s.buf[idx+width:]
		if sentence != "" {
			out = append(out, sentence)
		}
	}
	return out
}

// Flush returns the trimmed remainder after the stream ends and resets
// the buffer. An empty string means nothing was pending.
func (s *Segmenter) Flush() string {
	rest := strings.TrimSpace(s.buf)
	s.buf = ""
	return rest
}
