package main

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/normanking/cortexvoice/internal/bridge"
	"github.com/normanking/cortexvoice/internal/bus"
	"github.com/normanking/cortexvoice/internal/protocol"
)

// commandContext shares one daemon bridge and event bus across
// subcommands. The bridge spawns lazily on first use.
type commandContext struct {
	daemonFlag  *string
	verboseFlag *bool
	eventBus    *bus.EventBus

	mu     sync.Mutex
	bridge *bridge.Bridge
}

func newCommandContext(daemonFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		daemonFlag:  daemonFlag,
		verboseFlag: verboseFlag,
		eventBus:    bus.NewEventBus(),
	}
}

// newLogger builds the CLI's stderr logger. Quiet by default so command
// output stays pipeable.
func (c *commandContext) newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if c.verboseFlag != nil && *c.verboseFlag {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).With().Timestamp().Logger()
}

func (c *commandContext) ensureBridge() (*bridge.Bridge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bridge != nil {
		return c.bridge, nil
	}

	argv := strings.Fields(*c.daemonFlag)
	if len(argv) == 0 {
		return nil, errors.New("empty --daemon command")
	}
	b, err := bridge.Start(bridge.Options{
		Command: argv,
		Logger:  c.newLogger(),
		Bus:     c.eventBus,
	})
	if err != nil {
		return nil, err
	}
	c.bridge = b
	return b, nil
}

func (c *commandContext) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bridge != nil {
		_ = c.bridge.Close()
		c.bridge = nil
	}
}

// terminalError converts a wire error terminal into a CLI error.
func terminalError(events []protocol.Event) error {
	if len(events) == 0 {
		return errors.New("no response from daemon")
	}
	if last := events[len(events)-1]; last.Type == protocol.EventError {
		return errors.New(last.Error)
	}
	return nil
}

// lastDone returns the done terminal, or the wire error as an error.
func lastDone(events []protocol.Event) (protocol.Event, error) {
	if err := terminalError(events); err != nil {
		return protocol.Event{}, err
	}
	return events[len(events)-1], nil
}
