package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultClaudeBinary is the CLI looked up on PATH.
const DefaultClaudeBinary = "claude"

// ClaudeCLIConfig configures the Claude CLI backend.
type ClaudeCLIConfig struct {
	Binary      string
	Timeout     time.Duration
	Terminators string
}

// ClaudeCLIProvider shells out to the claude CLI. The CLI takes a
// single prompt, so history is flattened into guarded context text.
type ClaudeCLIProvider struct {
	config ClaudeCLIConfig
}

// NewClaudeCLIProvider creates a Claude CLI backend with defaults
// applied.
func NewClaudeCLIProvider(config ClaudeCLIConfig) *ClaudeCLIProvider {
	if config.Binary == "" {
		config.Binary = DefaultClaudeBinary
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultChatTimeout
	}
	return &ClaudeCLIProvider{config: config}
}

// Name returns the provider identifier.
func (p *ClaudeCLIProvider) Name() string {
	return "claude"
}

// Chat runs one blocking CLI invocation and returns the trimmed reply.
func (p *ClaudeCLIProvider) Chat(ctx context.Context, msgs []Message) (string, error) {
	system, history, user := splitMessages(msgs)
	prompt := flattenPrompt(history, user)

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.config.Binary,
		"-p", prompt,
		"--no-session-persistence",
		"--system-prompt", system,
	)
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: claude CLI after %s", ErrTimeout, p.config.Timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("claude CLI: %v: %s", err, bytes.TrimSpace(exitErr.Stderr))
		}
		return "", fmt.Errorf("claude CLI: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// claudeStreamLine is one stream-json output line. Only text deltas
// inside stream events carry reply content; everything else is CLI
// bookkeeping and is skipped.
type claudeStreamLine struct {
	Type  string `json:"type"`
	Event struct {
		Type  string `json:"type"`
		Delta struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"delta"`
	} `json:"event"`
}

// ChatStream runs the CLI in stream-json mode and yields complete
// sentences as deltas arrive.
func (p *ClaudeCLIProvider) ChatStream(ctx context.Context, msgs []Message) (<-chan Chunk, error) {
	system, history, user := splitMessages(msgs)
	prompt := flattenPrompt(history, user)

	cmd := exec.CommandContext(ctx, p.config.Binary,
		"-p", prompt,
		"--dangerously-skip-permissions",
		"--no-session-persistence",
		"--system-prompt", system,
		"--output-format", "stream-json",
		"--include-partial-messages",
		"--verbose",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("claude CLI stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	ch := make(chan Chunk, streamBufferSize)
	go func() {
		defer close(ch)

		seg := NewSegmenter(p.config.Terminators)
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

		for sc.Scan() {
			var line claudeStreamLine
			if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
				continue
			}
			if line.Type != "stream_event" ||
				line.Event.Type != "content_block_delta" ||
				line.Event.Delta.Type != "text_delta" {
				continue
			}
			for _, sentence := range seg.Push(line.Event.Delta.Text) {
				ch <- Chunk{Text: sentence}
			}
		}
		if rest := seg.Flush(); rest != "" {
			ch <- Chunk{Text: rest}
		}
		if err := cmd.Wait(); err != nil {
			ch <- Chunk{Err: fmt.Errorf("claude CLI: %w", err)}
		}
	}()
	return ch, nil
}

// Health checks the CLI is installed.
func (p *ClaudeCLIProvider) Health(_ context.Context) error {
	if _, err := exec.LookPath(p.config.Binary); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return nil
}
