package llm

import (
	"bufio"
	"io"
	"strings"
)

// sseEvent is one server-sent event. Multi-line data arrives joined
// with newlines per the SSE framing rules.
type sseEvent struct {
	Event string
	Data  string
	ID    string
}

// sseReader parses a text/event-stream body.
type sseReader struct {
	r *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{r: bufio.NewReader(r)}
}

// readEvent returns the next event, or io.EOF at end of stream. A
// partial event cut off by EOF is returned before the EOF.
func (s *sseReader) readEvent() (*sseEvent, error) {
	evt := &sseEvent{Event: "message"}
	var dataLines []string

	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				evt.Data = strings.Join(dataLines, "\n")
				return evt, nil
			}
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")

		// Blank line ends the event.
		if line == "" {
			if len(dataLines) > 0 || evt.ID != "" || evt.Event != "message" {
				evt.Data = strings.Join(dataLines, "\n")
				return evt, nil
			}
			continue
		}

		// Comment line.
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}
		switch field {
		case "event":
			evt.Event = value
		case "data":
			dataLines = append(dataLines, value)
		case "id":
			evt.ID = value
		}
	}
}
