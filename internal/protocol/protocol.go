// Package protocol defines the line-delimited JSON wire format spoken
// between the voice daemon and its host: one command object per line on
// stdin, one event object per line on stdout.
package protocol

import (
	"encoding/json"
	"fmt"
)

// CommandName identifies a daemon operation. The set is closed; the
// dispatcher answers unknown names with an error event rather than a
// decode failure.
type CommandName string

const (
	CmdHealth        CommandName = "health"
	CmdConfig        CommandName = "config"
	CmdSaveConfig    CommandName = "save_config"
	CmdRecord        CommandName = "record"
	CmdChat          CommandName = "chat"
	CmdChatStream    CommandName = "chat_stream"
	CmdChatTTSStream CommandName = "chat_tts_stream"
	CmdTTS           CommandName = "tts"
	CmdDaemonState   CommandName = "get_daemon_state"
	CmdExit          CommandName = "exit"
)

// Command is the host→daemon request envelope. ID is reserved for future
// correlation; the channel is single-command-in-flight, so handlers never
// need it today. Args stays raw until the handler decodes it.
type Command struct {
	ID   string          `json:"id,omitempty"`
	Name CommandName     `json:"command"`
	Args json.RawMessage `json:"args,omitempty"`
}

// NewCommand builds a command with marshaled args. Nil args produce a
// bare command.
func NewCommand(name CommandName, args any) (Command, error) {
	if args == nil {
		return Command{Name: name}, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return Command{}, fmt.Errorf("marshal %s args: %w", name, err)
	}
	return Command{Name: name, Args: raw}, nil
}

// DecodeArgs unmarshals the command arguments into v. A command with no
// args leaves v at its zero value.
func (c *Command) DecodeArgs(v any) error {
	if len(c.Args) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.Args, v); err != nil {
		return fmt.Errorf("decode %s args: %w", c.Name, err)
	}
	return nil
}

// ChatArgs carries the user utterance for chat, chat_stream and
// chat_tts_stream. AutoPlay is a host-side hint relayed untouched.
type ChatArgs struct {
	Text     string `json:"text"`
	AutoPlay bool   `json:"auto_play,omitempty"`
}

// RecordArgs selects the capture mode. Duration only applies to
// push-to-talk mode and is measured in seconds.
type RecordArgs struct {
	Mode     string  `json:"mode,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

const (
	RecordModeContinuous = "continuous"
	RecordModePushToTalk = "push-to-talk"
)

// TTSArgs requests a one-shot synthesis. An empty Language asks the
// synthesizer to detect it from the text.
type TTSArgs struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// SaveConfigArgs carries the mutable settings a host may change at
// runtime. Nil fields are left untouched.
type SaveConfigArgs struct {
	LogLevel     *string  `json:"log_level,omitempty"`
	VADThreshold *float64 `json:"vad_threshold,omitempty"`
	LLMModel     *string  `json:"llm_model,omitempty"`
	TTSVoice     *string  `json:"tts_voice,omitempty"`
	TTSRate      *string  `json:"tts_rate,omitempty"`
	MaxHistory   *int     `json:"max_history,omitempty"`
}

// EventType tags the daemon→host event union.
type EventType string

const (
	// EventTextChunk delivers one sentence increment of the assistant
	// reply, always before the matching audio_chunk.
	EventTextChunk EventType = "text_chunk"
	// EventAudioChunk points at a synthesized audio artifact for a
	// previously delivered text_chunk.
	EventAudioChunk EventType = "audio_chunk"
	// EventChunk delivers a text-only sentence increment (chat_stream).
	EventChunk EventType = "chunk"
	// EventState reports recording progress. Never terminal.
	EventState EventType = "state"
	// EventDone terminates a command successfully.
	EventDone EventType = "done"
	// EventError terminates a command with a failure message.
	EventError EventType = "error"
	// EventHealth reports backend readiness flags.
	EventHealth EventType = "health"
)

// Recording progress states carried by EventState.
const (
	StateListening  = "listening"
	StateDetected   = "detected"
	StateRecording  = "recording"
	StateProcessing = "processing"
)

// ModelsLoaded reports which backends are ready to serve.
type ModelsLoaded struct {
	VAD bool `json:"vad"`
	ASR bool `json:"asr"`
	LLM bool `json:"llm"`
	TTS bool `json:"tts"`
}

// Event is the daemon→host wire shape. Exactly one terminal event
// (done or error) ends every command, and it is always the last event
// for that command. Payload fields are populated per event type and
// omitted otherwise.
type Event struct {
	Type EventType `json:"type"`

	// text_chunk and chunk payload; done payload for chat.
	Content string `json:"content,omitempty"`

	// audio_chunk payload; AudioPath also appears on the tts done.
	AudioPath string `json:"audio_path,omitempty"`
	Text      string `json:"text,omitempty"`

	// record done payload.
	Language string `json:"language,omitempty"`

	// state payload for record progress; done payload for
	// get_daemon_state (an object snapshot).
	State any `json:"state,omitempty"`

	// done payload for config.
	Config any `json:"config,omitempty"`

	// done payload for exit.
	Message string `json:"message,omitempty"`

	// error payload.
	Error string `json:"error,omitempty"`

	// health payload.
	ModelsLoaded *ModelsLoaded `json:"models_loaded,omitempty"`
}

// Terminal reports whether the event ends its command.
func (e *Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// TextChunk builds the sentence-increment event of the chat+TTS pipeline.
func TextChunk(content string) Event {
	return Event{Type: EventTextChunk, Content: content}
}

// AudioChunk pairs a synthesized artifact with the text it voices.
func AudioChunk(audioPath, text string) Event {
	return Event{Type: EventAudioChunk, AudioPath: audioPath, Text: text}
}

// Chunk builds a text-only sentence increment for chat_stream.
func Chunk(content string) Event {
	return Event{Type: EventChunk, Content: content}
}

// State builds a non-terminal recording progress event.
func State(state string) Event {
	return Event{Type: EventState, State: state}
}

// Done builds a bare terminal success event. Callers set payload fields
// on the returned value as their command requires.
func Done() Event {
	return Event{Type: EventDone}
}

// Errorf builds a terminal error event from a format string.
func Errorf(format string, args ...any) Event {
	return Event{Type: EventError, Error: fmt.Sprintf(format, args...)}
}

// Health builds the backend readiness event.
func Health(m ModelsLoaded) Event {
	return Event{Type: EventHealth, ModelsLoaded: &m}
}
