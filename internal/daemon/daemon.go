// Package daemon implements the CortexVoice worker process: a
// line-delimited JSON command loop on stdin with typed events on
// stdout. Commands run one at a time; every command produces exactly
// one terminal event.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/cortexvoice/internal/audio"
	"github.com/normanking/cortexvoice/internal/config"
	"github.com/normanking/cortexvoice/internal/history"
	"github.com/normanking/cortexvoice/internal/llm"
	"github.com/normanking/cortexvoice/internal/logging"
	"github.com/normanking/cortexvoice/internal/protocol"
	"github.com/normanking/cortexvoice/internal/stt"
	"github.com/normanking/cortexvoice/internal/tts"
	"github.com/normanking/cortexvoice/internal/voice"
)

// Recorder captures speech segments from the microphone.
type Recorder interface {
	Record(ctx context.Context, onSpeech func()) (*audio.SpeechSegment, error)
	RecordFixed(ctx context.Context, duration time.Duration) (*audio.SpeechSegment, error)
	SetThreshold(threshold float64)
}

// Options wires a Daemon. Config and Logger are required; nil backends
// degrade the commands that need them into error events.
type Options struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Recorder    Recorder
	Recognizer  stt.Provider
	Chat        llm.Provider
	Synthesizer tts.Provider
	Store       history.Store
	SaveConfig  func(*config.Config) error
}

// Daemon owns the command loop state. No package globals; everything
// arrives through Options.
type Daemon struct {
	cfg     *config.Config
	pending atomic.Pointer[config.Config]

	logger       zerolog.Logger
	recorder     Recorder
	recognizer   stt.Provider
	chat         llm.Provider
	synthesizer  tts.Provider
	conversation *voice.Conversation
	store        history.Store
	writer       *protocol.Writer
	saveConfig   func(*config.Config) error

	sessionID    string
	startTime    time.Time
	commandCount int
}

// New creates a daemon from options.
func New(opts Options) *Daemon {
	store := opts.Store
	if store == nil {
		store = history.NopStore{}
	}
	save := opts.SaveConfig
	if save == nil {
		save = config.Save
	}
	return &Daemon{
		cfg:          opts.Config,
		logger:       opts.Logger.With().Str("component", "daemon").Logger(),
		recorder:     opts.Recorder,
		recognizer:   opts.Recognizer,
		chat:         opts.Chat,
		synthesizer:  opts.Synthesizer,
		conversation: voice.NewConversation(opts.Config.Daemon.MaxHistory),
		store:        store,
		saveConfig:   save,
		sessionID:    uuid.NewString(),
	}
}

// SessionID returns the identifier stamped on persisted turns.
func (d *Daemon) SessionID() string {
	return d.sessionID
}

// ReplaceConfig queues a configuration swap. The loop applies it
// before the next command, never mid-command.
func (d *Daemon) ReplaceConfig(cfg *config.Config) {
	d.pending.Store(cfg)
}

// applyConfig swaps in a new configuration between commands.
func (d *Daemon) applyConfig(cfg *config.Config) {
	d.cfg = cfg
	logging.SetLevel(cfg.Logging.Level)
	d.conversation.SetMaxHistory(cfg.Daemon.MaxHistory)
	if d.recorder != nil {
		d.recorder.SetThreshold(cfg.Audio.VADThreshold)
	}
	d.logger.Debug().Msg("Config applied")
}

// Run reads commands from in and writes events to out until exit,
// stdin EOF, or context cancellation. The context is checked between
// commands; a blocked stdin read ends when the host closes the pipe.
func (d *Daemon) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	d.writer = protocol.NewWriter(out)
	d.startTime = time.Now()
	d.logger.Info().Str("session", d.sessionID).Msg("Daemon ready, waiting for commands")

	reader := protocol.NewReader(in)
	for {
		if err := ctx.Err(); err != nil {
			d.shutdown("context canceled")
			return err
		}
		if p := d.pending.Swap(nil); p != nil {
			d.applyConfig(p)
		}

		line, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.shutdown("stdin closed")
				return nil
			}
			d.shutdown("read failed")
			return fmt.Errorf("read command: %w", err)
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			d.logger.Warn().Err(err).Msg("Malformed command line")
			d.write(protocol.Errorf("%v", err))
			continue
		}

		d.commandCount++
		if d.dispatch(ctx, cmd) {
			d.shutdown("exit command")
			return nil
		}
	}
}

// dispatch runs one command and guarantees its terminal event: handler
// errors become error events here, and a recover turns handler panics
// into error events too. Reports whether an exit was requested.
func (d *Daemon) dispatch(ctx context.Context, cmd *protocol.Command) (exit bool) {
	start := time.Now()
	logger := d.logger.With().Str("cmd", string(cmd.Name)).Logger()
	logger.Info().Msg("Command received")

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Handler panicked")
			d.write(protocol.Errorf("internal error: %v", r))
		}
	}()

	var err error
	switch cmd.Name {
	case protocol.CmdHealth:
		err = d.handleHealth()
	case protocol.CmdConfig:
		err = d.handleConfig()
	case protocol.CmdSaveConfig:
		err = d.handleSaveConfig(cmd)
	case protocol.CmdRecord:
		err = d.handleRecord(ctx, cmd)
	case protocol.CmdChat:
		err = d.handleChat(ctx, cmd)
	case protocol.CmdChatStream:
		err = d.handleChatStream(ctx, cmd)
	case protocol.CmdChatTTSStream:
		err = d.handleChatTTSStream(ctx, cmd)
	case protocol.CmdTTS:
		err = d.handleTTS(ctx, cmd)
	case protocol.CmdDaemonState:
		err = d.handleDaemonState()
	case protocol.CmdExit:
		evt := protocol.Done()
		evt.Message = "Daemon shutting down"
		d.write(evt)
		return true
	default:
		err = fmt.Errorf("unknown command: %s", cmd.Name)
	}

	if err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Command failed")
		d.write(protocol.Errorf("%v", err))
		return false
	}
	logger.Info().Dur("elapsed", time.Since(start)).Msg("Command complete")
	return false
}

func (d *Daemon) shutdown(cause string) {
	if err := d.store.Close(); err != nil {
		d.logger.Warn().Err(err).Msg("History store close failed")
	}
	d.logger.Info().
		Str("cause", cause).
		Int("commands", d.commandCount).
		Dur("uptime", time.Since(d.startTime)).
		Msg("Daemon exiting")
}

// write sends one event. Write failures are logged; the protocol has
// no way to report them to a host that stopped reading.
func (d *Daemon) write(evt protocol.Event) {
	if err := d.writer.Write(evt); err != nil {
		d.logger.Error().Err(err).Str("type", string(evt.Type)).Msg("Event write failed")
	}
}

func (d *Daemon) models() protocol.ModelsLoaded {
	return protocol.ModelsLoaded{
		VAD: d.recorder != nil,
		ASR: d.recognizer != nil,
		LLM: d.chat != nil,
		TTS: d.synthesizer != nil,
	}
}
