package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// maxLineBytes bounds a single wire line. Commands are small; the margin
// covers config payloads and pathological inputs without unbounded growth.
const maxLineBytes = 1 << 20

// Writer serializes events onto the wire, one JSON object per line,
// flushing after every event so the host never waits on a buffer.
// Safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	bw  *bufio.Writer
	enc *json.Encoder
}

// NewWriter wraps w as the daemon's event channel.
func NewWriter(w io.Writer) *Writer {
	bw := bufio.NewWriter(w)
	return &Writer{bw: bw, enc: json.NewEncoder(bw)}
}

// Write emits one event and flushes it.
func (w *Writer) Write(evt Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(evt); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("flush event: %w", err)
	}
	return nil
}

// Reader yields raw wire lines from the command channel.
type Reader struct {
	sc *bufio.Scanner
}

// NewReader wraps r as the daemon's command channel.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{sc: sc}
}

// Next returns the next non-blank line, or io.EOF when the channel
// closed. Blank lines are skipped silently.
func (r *Reader) Next() (string, error) {
	for r.sc.Scan() {
		line := strings.TrimSpace(r.sc.Text())
		if line == "" {
			continue
		}
		return line, nil
	}
	if err := r.sc.Err(); err != nil {
		return "", fmt.Errorf("read command line: %w", err)
	}
	return "", io.EOF
}

// ParseCommand decodes one wire line into a Command. The caller maps a
// failure to an error event; a bad line is never fatal to the channel.
func ParseCommand(line string) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal([]byte(line), &cmd); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return &cmd, nil
}
