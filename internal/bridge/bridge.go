// Package bridge runs the host side of the daemon wire protocol: it
// owns the daemon process, serializes commands onto its stdin, and
// fans decoded events out to the bus and to the caller.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/cortexvoice/internal/bus"
	"github.com/normanking/cortexvoice/internal/protocol"
)

// Common errors
var (
	ErrNotRunning   = errors.New("daemon not running")
	ErrDaemonExited = errors.New("daemon exited mid-command")
)

// exitGrace bounds how long Close waits for a clean daemon shutdown
// before killing the process.
const exitGrace = 3 * time.Second

// eventBuffer absorbs event bursts between the read loop and Do.
const eventBuffer = 64

// Options configures a Bridge.
type Options struct {
	// Command is the daemon argv. Required for Start, ignored by Attach.
	Command []string
	Logger  zerolog.Logger
	// Bus receives every decoded event. Optional.
	Bus *bus.EventBus
}

// Bridge is the host endpoint of the wire protocol. Commands are
// single-in-flight; Do serializes callers.
type Bridge struct {
	logger zerolog.Logger
	bus    *bus.EventBus

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	enc      *json.Encoder
	events   chan protocol.Event
	running  bool
	desynced bool
}

// Start spawns the daemon process and begins reading its events.
func Start(opts Options) (*Bridge, error) {
	if len(opts.Command) == 0 {
		return nil, errors.New("no daemon command given")
	}

	cmd := exec.Command(opts.Command[0], opts.Command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("daemon stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("daemon stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("daemon stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start daemon: %w", err)
	}

	b := newBridge(opts, stdin, stdout)
	b.cmd = cmd
	go b.relayStderr(stderr)
	b.logger.Info().Str("binary", opts.Command[0]).Int("pid", cmd.Process.Pid).Msg("Daemon started")
	b.publishBus(bus.EventTypeDaemonStarted, map[string]any{"pid": cmd.Process.Pid})
	return b, nil
}

// Attach wires a bridge over existing pipes instead of spawning a
// process. The caller keeps ownership of the daemon's lifetime.
func Attach(stdin io.WriteCloser, stdout io.Reader, opts Options) *Bridge {
	return newBridge(opts, stdin, stdout)
}

func newBridge(opts Options, stdin io.WriteCloser, stdout io.Reader) *Bridge {
	b := &Bridge{
		logger:  opts.Logger.With().Str("component", "bridge").Logger(),
		bus:     opts.Bus,
		stdin:   stdin,
		enc:     json.NewEncoder(stdin),
		events:  make(chan protocol.Event, eventBuffer),
		running: true,
	}
	go b.readLoop(stdout)
	return b
}

// Do sends one command and collects its events through the terminal.
// On context cancellation it returns the events seen so far along with
// the context error; the next Do drains the abandoned command first.
func (b *Bridge) Do(ctx context.Context, cmd protocol.Command) ([]protocol.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return nil, ErrNotRunning
	}
	if b.desynced {
		if err := b.drainStale(ctx); err != nil {
			return nil, err
		}
	}

	if err := b.enc.Encode(cmd); err != nil {
		return nil, fmt.Errorf("send %s: %w", cmd.Name, err)
	}

	var events []protocol.Event
	for {
		select {
		case <-ctx.Done():
			b.desynced = true
			return events, ctx.Err()
		case evt, ok := <-b.events:
			if !ok {
				b.running = false
				return events, ErrDaemonExited
			}
			events = append(events, evt)
			if evt.Terminal() {
				return events, nil
			}
		}
	}
}

// drainStale discards events left behind by an abandoned command, up
// to and including its terminal.
func (b *Bridge) drainStale(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-b.events:
			if !ok {
				b.running = false
				return ErrDaemonExited
			}
			if evt.Terminal() {
				b.desynced = false
				return nil
			}
		}
	}
}

// Close asks the daemon to exit and waits briefly before killing it.
// Safe to call more than once.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.running {
		b.running = false
		// Best effort; the daemon also exits on stdin EOF.
		_ = b.enc.Encode(protocol.Command{Name: protocol.CmdExit})
	}
	stdin := b.stdin
	cmd := b.cmd
	b.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}
	// Drain so the read loop can finish and close the channel.
	go func() {
		for range b.events {
		}
	}()
	if cmd == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		b.logger.Info().Msg("Daemon exited")
		return err
	case <-time.After(exitGrace):
		b.logger.Warn().Msg("Daemon did not exit, killing")
		_ = cmd.Process.Kill()
		return <-done
	}
}

// readLoop decodes event lines until the daemon's stdout closes.
// Publishing synchronously keeps audio chunks in queue order.
func (b *Bridge) readLoop(stdout io.Reader) {
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var evt protocol.Event
		if err := json.Unmarshal(line, &evt); err != nil {
			b.logger.Warn().Err(err).Str("line", string(line)).Msg("Undecodable event line")
			continue
		}
		b.publish(evt)
		b.events <- evt
	}
	if err := sc.Err(); err != nil {
		b.logger.Warn().Err(err).Msg("Event stream read failed")
	}
	close(b.events)
	b.publishBus(bus.EventTypeDaemonStopped, nil)
}

// relayStderr forwards daemon log lines into the host logger.
func (b *Bridge) relayStderr(stderr io.Reader) {
	sc := bufio.NewScanner(stderr)
	for sc.Scan() {
		line := sc.Text()
		b.logger.Debug().Str("stream", "daemon").Msg(line)
		b.publishBus(bus.EventTypeDaemonStderr, map[string]any{"line": line})
	}
}

// publish maps a wire event onto the host bus.
func (b *Bridge) publish(evt protocol.Event) {
	if b.bus == nil {
		return
	}
	switch evt.Type {
	case protocol.EventState:
		b.publishBus(bus.EventTypeVoiceState, map[string]any{"state": evt.State})
	case protocol.EventTextChunk:
		b.publishBus(bus.EventTypeVoiceTextChunk, map[string]any{"content": evt.Content})
	case protocol.EventAudioChunk:
		b.publishBus(bus.EventTypeVoiceAudioChunk, map[string]any{
			"audio_path": evt.AudioPath,
			"text":       evt.Text,
		})
	case protocol.EventChunk:
		b.publishBus(bus.EventTypeVoiceChunk, map[string]any{"content": evt.Content})
	case protocol.EventError:
		b.publishBus(bus.EventTypeVoiceError, map[string]any{"error": evt.Error})
	case protocol.EventDone:
		switch {
		case evt.Text != "":
			b.publishBus(bus.EventTypeVoiceTranscript, map[string]any{
				"text":     evt.Text,
				"language": evt.Language,
			})
		case evt.Content != "":
			b.publishBus(bus.EventTypeVoiceReply, map[string]any{"content": evt.Content})
		}
	}
}

func (b *Bridge) publishBus(eventType bus.EventType, data map[string]any) {
	if b.bus == nil {
		return
	}
	b.bus.PublishSync(bus.Event{Type: eventType, Data: data})
}
