package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexvoice/internal/audio"
	"github.com/normanking/cortexvoice/internal/config"
	"github.com/normanking/cortexvoice/internal/history"
	"github.com/normanking/cortexvoice/internal/llm"
	"github.com/normanking/cortexvoice/internal/protocol"
	"github.com/normanking/cortexvoice/internal/stt"
	"github.com/normanking/cortexvoice/internal/tts"
)

type stubRecorder struct {
	segment   *audio.SpeechSegment
	err       error
	fixedFor  time.Duration
	threshold float64
}

func (s *stubRecorder) Record(ctx context.Context, onSpeech func()) (*audio.SpeechSegment, error) {
	if s.err != nil {
		return nil, s.err
	}
	if onSpeech != nil {
		onSpeech()
	}
	return s.segment, nil
}

func (s *stubRecorder) RecordFixed(ctx context.Context, duration time.Duration) (*audio.SpeechSegment, error) {
	s.fixedFor = duration
	if s.err != nil {
		return nil, s.err
	}
	return s.segment, nil
}

func (s *stubRecorder) SetThreshold(threshold float64) {
	s.threshold = threshold
}

type stubRecognizer struct {
	resp    *stt.TranscribeResponse
	err     error
	lastReq *stt.TranscribeRequest
}

func (s *stubRecognizer) Name() string { return "stub" }

func (s *stubRecognizer) Transcribe(ctx context.Context, req *stt.TranscribeRequest) (*stt.TranscribeResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubRecognizer) Health(ctx context.Context) error { return nil }

type stubChat struct {
	reply    string
	chunks   []llm.Chunk
	err      error
	panicMsg string
	lastMsgs []llm.Message
	calls    int
}

func (s *stubChat) Name() string { return "stub" }

func (s *stubChat) Chat(ctx context.Context, msgs []llm.Message) (string, error) {
	s.calls++
	s.lastMsgs = msgs
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubChat) ChatStream(ctx context.Context, msgs []llm.Message) (<-chan llm.Chunk, error) {
	s.calls++
	s.lastMsgs = msgs
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan llm.Chunk, len(s.chunks))
	for _, c := range s.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (s *stubChat) Health(ctx context.Context) error { return nil }

type stubSynthesizer struct {
	failOn  string
	lastReq *tts.SynthesizeRequest
	calls   []string
}

func (s *stubSynthesizer) Name() string { return "stub" }

func (s *stubSynthesizer) Synthesize(ctx context.Context, req *tts.SynthesizeRequest) (*tts.SynthesizeResult, error) {
	s.lastReq = req
	s.calls = append(s.calls, req.Text)
	if s.failOn != "" && req.Text == s.failOn {
		return nil, tts.ErrNoAudio
	}
	return &tts.SynthesizeResult{
		AudioPath: fmt.Sprintf("/tmp/voice_%d.mp3", len(s.calls)),
		Voice:     "zh-CN-XiaoyiNeural",
		Language:  "zh",
		Format:    "mp3",
	}, nil
}

func (s *stubSynthesizer) Health(ctx context.Context) error { return nil }

type recordingStore struct {
	turns  []history.StoredTurn
	closed bool
}

func (s *recordingStore) AppendTurn(ctx context.Context, sessionID, role, content string) error {
	s.turns = append(s.turns, history.StoredTurn{SessionID: sessionID, Role: role, Content: content})
	return nil
}

func (s *recordingStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]history.StoredTurn, error) {
	return s.turns, nil
}

func (s *recordingStore) Close() error {
	s.closed = true
	return nil
}

func testOptions() Options {
	return Options{
		Config:     config.DefaultConfig(),
		Logger:     zerolog.Nop(),
		SaveConfig: func(*config.Config) error { return nil },
	}
}

// run feeds the daemon one line per command and returns the decoded
// event stream after stdin EOF.
func run(t *testing.T, d *Daemon, lines ...string) []protocol.Event {
	t.Helper()
	var in bytes.Buffer
	for _, line := range lines {
		in.WriteString(line)
		in.WriteByte('\n')
	}
	var out bytes.Buffer
	require.NoError(t, d.Run(context.Background(), &in, &out))
	return decodeEvents(t, out.String())
}

func decodeEvents(t *testing.T, raw string) []protocol.Event {
	t.Helper()
	var events []protocol.Event
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var evt protocol.Event
		require.NoError(t, json.Unmarshal([]byte(line), &evt), "line: %s", line)
		events = append(events, evt)
	}
	return events
}

func eventTypes(events []protocol.Event) []protocol.EventType {
	types := make([]protocol.EventType, len(events))
	for i, evt := range events {
		types[i] = evt.Type
	}
	return types
}

func TestRunStdinEOF(t *testing.T) {
	d := New(testOptions())
	events := run(t, d)
	assert.Empty(t, events)
}

func TestExit(t *testing.T) {
	d := New(testOptions())
	events := run(t, d, `{"command":"exit"}`)

	require.Len(t, events, 1)
	assert.Equal(t, protocol.EventDone, events[0].Type)
	assert.Equal(t, "Daemon shutting down", events[0].Message)
}

func TestExitStopsProcessing(t *testing.T) {
	opts := testOptions()
	chat := &stubChat{reply: "ignored"}
	opts.Chat = chat
	d := New(opts)

	events := run(t, d,
		`{"command":"health"}`,
		`{"command":"exit"}`,
		`{"command":"chat","args":{"text":"hi"}}`,
	)

	require.Equal(t, []protocol.EventType{
		protocol.EventHealth, protocol.EventDone, protocol.EventDone,
	}, eventTypes(events))
	assert.Zero(t, chat.calls)
}

func TestMalformedLineRecovers(t *testing.T) {
	d := New(testOptions())
	events := run(t, d,
		`{this is not json`,
		`{"command":"health"}`,
	)

	require.Equal(t, []protocol.EventType{
		protocol.EventError, protocol.EventHealth, protocol.EventDone,
	}, eventTypes(events))
	assert.Contains(t, events[0].Error, "invalid JSON")
}

func TestUnknownCommand(t *testing.T) {
	d := New(testOptions())
	events := run(t, d,
		`{"command":"bogus"}`,
		`{"command":"health"}`,
	)

	require.Equal(t, []protocol.EventType{
		protocol.EventError, protocol.EventHealth, protocol.EventDone,
	}, eventTypes(events))
	assert.Equal(t, "unknown command: bogus", events[0].Error)
}

func TestEventOmitsCommandID(t *testing.T) {
	d := New(testOptions())
	var in, out bytes.Buffer
	in.WriteString(`{"id":"42","command":"health"}` + "\n")
	require.NoError(t, d.Run(context.Background(), &in, &out))

	assert.NotContains(t, out.String(), `"id"`)
}

func TestHealth(t *testing.T) {
	opts := testOptions()
	opts.Recorder = &stubRecorder{}
	opts.Chat = &stubChat{}
	d := New(opts)

	events := run(t, d, `{"command":"health"}`)

	require.Equal(t, []protocol.EventType{
		protocol.EventHealth, protocol.EventDone,
	}, eventTypes(events))
	require.NotNil(t, events[0].ModelsLoaded)
	assert.True(t, events[0].ModelsLoaded.VAD)
	assert.False(t, events[0].ModelsLoaded.ASR)
	assert.True(t, events[0].ModelsLoaded.LLM)
	assert.False(t, events[0].ModelsLoaded.TTS)
}

func TestHealthNoBackends(t *testing.T) {
	d := New(testOptions())
	events := run(t, d, `{"command":"health"}`)

	require.Len(t, events, 2)
	require.NotNil(t, events[0].ModelsLoaded)
	assert.Equal(t, protocol.ModelsLoaded{}, *events[0].ModelsLoaded)
	assert.Equal(t, protocol.EventDone, events[1].Type)
}

func TestConfigSnapshot(t *testing.T) {
	opts := testOptions()
	opts.Config.LLM.Model = "llama3.2"
	d := New(opts)

	events := run(t, d, `{"command":"config"}`)

	require.Len(t, events, 1)
	require.Equal(t, protocol.EventDone, events[0].Type)
	cfg, ok := events[0].Config.(map[string]any)
	require.True(t, ok, "config payload should be an object")
	llmSection, ok := cfg["llm"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "llama3.2", llmSection["model"])
}

func TestSaveConfig(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var saved *config.Config
	opts := testOptions()
	opts.SaveConfig = func(cfg *config.Config) error {
		saved = cfg
		return nil
	}
	recorder := &stubRecorder{}
	opts.Recorder = recorder
	d := New(opts)

	events := run(t, d,
		`{"command":"save_config","args":{"log_level":"debug","vad_threshold":0.7,"max_history":3,"tts_voice":"en-GB-SoniaNeural"}}`,
		`{"command":"config"}`,
	)

	require.Len(t, events, 2)
	assert.Equal(t, protocol.EventDone, events[0].Type)
	assert.Equal(t, "Configuration saved", events[0].Message)

	require.NotNil(t, saved)
	assert.Equal(t, "debug", saved.Logging.Level)
	assert.Equal(t, 0.7, saved.Audio.VADThreshold)
	assert.Equal(t, 3, saved.Daemon.MaxHistory)
	assert.Equal(t, "en-GB-SoniaNeural", saved.TTS.Voice)

	// The swap is applied live, not just persisted.
	assert.Equal(t, 0.7, recorder.threshold)
	cfg := events[1].Config.(map[string]any)
	logging := cfg["logging"].(map[string]any)
	assert.Equal(t, "debug", logging["level"])
}

func TestSaveConfigPersistFailure(t *testing.T) {
	opts := testOptions()
	opts.SaveConfig = func(*config.Config) error { return errors.New("disk full") }
	d := New(opts)

	events := run(t, d, `{"command":"save_config","args":{"log_level":"debug"}}`)

	require.Len(t, events, 1)
	assert.Equal(t, protocol.EventError, events[0].Type)
	assert.Contains(t, events[0].Error, "disk full")
}

func TestReplaceConfigAppliesBeforeNextCommand(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	opts := testOptions()
	recorder := &stubRecorder{}
	opts.Recorder = recorder
	d := New(opts)

	next := config.DefaultConfig()
	next.Audio.VADThreshold = 0.8
	d.ReplaceConfig(next)

	events := run(t, d, `{"command":"health"}`)
	require.Len(t, events, 2)
	assert.Equal(t, 0.8, recorder.threshold)
}

func speechSegment() *audio.SpeechSegment {
	return &audio.SpeechSegment{
		Audio:      []byte{0x01, 0x02, 0x03, 0x04},
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
		Duration:   time.Second,
	}
}

func TestRecordContinuous(t *testing.T) {
	opts := testOptions()
	recognizer := &stubRecognizer{resp: &stt.TranscribeResponse{Text: "你好", Language: "zh"}}
	opts.Recorder = &stubRecorder{segment: speechSegment()}
	opts.Recognizer = recognizer
	d := New(opts)

	events := run(t, d, `{"command":"record"}`)

	require.Equal(t, []protocol.EventType{
		protocol.EventState, protocol.EventState, protocol.EventState,
		protocol.EventState, protocol.EventDone,
	}, eventTypes(events))
	assert.Equal(t, protocol.StateListening, events[0].State)
	assert.Equal(t, protocol.StateDetected, events[1].State)
	assert.Equal(t, protocol.StateRecording, events[2].State)
	assert.Equal(t, protocol.StateProcessing, events[3].State)

	done := events[4]
	assert.Equal(t, "你好", done.Text)
	assert.Equal(t, "zh", done.Language)

	require.NotNil(t, recognizer.lastReq)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, recognizer.lastReq.Audio)
	assert.Equal(t, audio.SampleRate, recognizer.lastReq.SampleRate)
	assert.Equal(t, "auto", recognizer.lastReq.Language)
}

func TestRecordPushToTalk(t *testing.T) {
	opts := testOptions()
	recorder := &stubRecorder{segment: speechSegment()}
	opts.Recorder = recorder
	opts.Recognizer = &stubRecognizer{resp: &stt.TranscribeResponse{Text: "hello", Language: "en"}}
	d := New(opts)

	events := run(t, d, `{"command":"record","args":{"mode":"push-to-talk","duration":1.5}}`)

	require.Equal(t, []protocol.EventType{
		protocol.EventState, protocol.EventState, protocol.EventDone,
	}, eventTypes(events))
	assert.Equal(t, protocol.StateRecording, events[0].State)
	assert.Equal(t, protocol.StateProcessing, events[1].State)
	assert.Equal(t, 1500*time.Millisecond, recorder.fixedFor)
}

func TestRecordPushToTalkDefaultDuration(t *testing.T) {
	opts := testOptions()
	recorder := &stubRecorder{segment: speechSegment()}
	opts.Recorder = recorder
	opts.Recognizer = &stubRecognizer{resp: &stt.TranscribeResponse{Text: "hello"}}
	d := New(opts)

	run(t, d, `{"command":"record","args":{"mode":"push-to-talk"}}`)
	assert.Equal(t, defaultPushToTalkDuration, recorder.fixedFor)
}

func TestRecordNoSpeech(t *testing.T) {
	opts := testOptions()
	opts.Recorder = &stubRecorder{err: audio.ErrNoSpeech}
	opts.Recognizer = &stubRecognizer{}
	d := New(opts)

	events := run(t, d, `{"command":"record"}`)

	require.Equal(t, []protocol.EventType{
		protocol.EventState, protocol.EventError,
	}, eventTypes(events))
	assert.Equal(t, "no speech detected", events[1].Error)
}

func TestRecordTranscribeNoSpeech(t *testing.T) {
	opts := testOptions()
	opts.Recorder = &stubRecorder{segment: speechSegment()}
	opts.Recognizer = &stubRecognizer{err: stt.ErrNoSpeech}
	d := New(opts)

	events := run(t, d, `{"command":"record"}`)

	last := events[len(events)-1]
	require.Equal(t, protocol.EventError, last.Type)
	assert.Equal(t, "no speech detected", last.Error)
}

func TestRecordWithoutBackends(t *testing.T) {
	d := New(testOptions())
	events := run(t, d, `{"command":"record"}`)

	require.Len(t, events, 1)
	require.Equal(t, protocol.EventError, events[0].Type)
	assert.Equal(t, "no audio capture available", events[0].Error)
}

func TestRecordUnknownMode(t *testing.T) {
	opts := testOptions()
	opts.Recorder = &stubRecorder{segment: speechSegment()}
	opts.Recognizer = &stubRecognizer{resp: &stt.TranscribeResponse{}}
	d := New(opts)

	events := run(t, d, `{"command":"record","args":{"mode":"telepathy"}}`)

	require.Len(t, events, 1)
	assert.Equal(t, "unknown recording mode: telepathy", events[0].Error)
}

func TestChat(t *testing.T) {
	opts := testOptions()
	chat := &stubChat{reply: "你好！有什么可以帮你的？"}
	store := &recordingStore{}
	opts.Chat = chat
	opts.Store = store
	d := New(opts)

	events := run(t, d, `{"command":"chat","args":{"text":"你好"}}`)

	require.Len(t, events, 1)
	require.Equal(t, protocol.EventDone, events[0].Type)
	assert.Equal(t, "你好！有什么可以帮你的？", events[0].Content)

	require.Len(t, store.turns, 2)
	assert.Equal(t, d.SessionID(), store.turns[0].SessionID)
	assert.Equal(t, "user", store.turns[0].Role)
	assert.Equal(t, "你好", store.turns[0].Content)
	assert.Equal(t, "assistant", store.turns[1].Role)
	assert.True(t, store.closed)
}

func TestChatCarriesHistory(t *testing.T) {
	opts := testOptions()
	chat := &stubChat{reply: "sure"}
	opts.Chat = chat
	d := New(opts)

	run(t, d,
		`{"command":"chat","args":{"text":"remember the number 7"}}`,
		`{"command":"chat","args":{"text":"what number?"}}`,
	)

	// system + first exchange + new user message.
	require.Len(t, chat.lastMsgs, 4)
	assert.Equal(t, llm.RoleSystem, chat.lastMsgs[0].Role)
	assert.Equal(t, "remember the number 7", chat.lastMsgs[1].Content)
	assert.Equal(t, "sure", chat.lastMsgs[2].Content)
	assert.Equal(t, "what number?", chat.lastMsgs[3].Content)
}

func TestChatEmptyInput(t *testing.T) {
	opts := testOptions()
	opts.Chat = &stubChat{reply: "ignored"}
	d := New(opts)

	events := run(t, d, `{"command":"chat","args":{"text":"   "}}`)

	require.Len(t, events, 1)
	require.Equal(t, protocol.EventError, events[0].Type)
	assert.Contains(t, events[0].Error, "empty")
}

func TestChatWithoutProvider(t *testing.T) {
	d := New(testOptions())
	events := run(t, d, `{"command":"chat","args":{"text":"hi"}}`)

	require.Len(t, events, 1)
	assert.Equal(t, "no LLM provider configured", events[0].Error)
}

func TestChatClearKeyword(t *testing.T) {
	opts := testOptions()
	chat := &stubChat{reply: "ignored"}
	opts.Chat = chat
	d := New(opts)

	run(t, d, `{"command":"chat","args":{"text":"记住我叫小王"}}`)
	events := run(t, d, `{"command":"chat","args":{"text":"清空对话"}}`)

	require.Len(t, events, 1)
	require.Equal(t, protocol.EventDone, events[0].Type)
	assert.Equal(t, "好的，已清空对话记录，重新开始。", events[0].Content)
	// The second command answered without an LLM round trip.
	assert.Equal(t, 1, chat.calls)

	// History is gone: the next turn carries only system + user.
	run(t, d, `{"command":"chat","args":{"text":"我叫什么？"}}`)
	assert.Len(t, chat.lastMsgs, 2)
}

func TestChatPanicBecomesError(t *testing.T) {
	opts := testOptions()
	opts.Chat = &stubChat{panicMsg: "backend exploded"}
	d := New(opts)

	events := run(t, d,
		`{"command":"chat","args":{"text":"hi"}}`,
		`{"command":"health"}`,
	)

	require.Equal(t, []protocol.EventType{
		protocol.EventError, protocol.EventHealth, protocol.EventDone,
	}, eventTypes(events))
	assert.Equal(t, "internal error: backend exploded", events[0].Error)
}

func TestChatStream(t *testing.T) {
	opts := testOptions()
	opts.Chat = &stubChat{chunks: []llm.Chunk{
		{Text: "你好！"},
		{Text: "有什么可以帮你的？"},
	}}
	store := &recordingStore{}
	opts.Store = store
	d := New(opts)

	events := run(t, d, `{"command":"chat_stream","args":{"text":"你好"}}`)

	require.Equal(t, []protocol.EventType{
		protocol.EventChunk, protocol.EventChunk, protocol.EventDone,
	}, eventTypes(events))
	assert.Equal(t, "你好！", events[0].Content)
	assert.Equal(t, "有什么可以帮你的？", events[1].Content)

	require.Len(t, store.turns, 2)
	assert.Equal(t, "你好！有什么可以帮你的？", store.turns[1].Content)
}

func TestChatStreamMidStreamError(t *testing.T) {
	opts := testOptions()
	opts.Chat = &stubChat{chunks: []llm.Chunk{
		{Text: "你好！"},
		{Err: errors.New("connection reset")},
	}}
	store := &recordingStore{}
	opts.Store = store
	d := New(opts)

	events := run(t, d, `{"command":"chat_stream","args":{"text":"你好"}}`)

	require.Equal(t, []protocol.EventType{
		protocol.EventChunk, protocol.EventError,
	}, eventTypes(events))
	assert.Contains(t, events[1].Error, "connection reset")

	// The delivered partial text survives in history.
	require.Len(t, store.turns, 2)
	assert.Equal(t, "你好！", store.turns[1].Content)
}

func TestChatStreamImmediateErrorKeepsHistoryClean(t *testing.T) {
	opts := testOptions()
	opts.Chat = &stubChat{chunks: []llm.Chunk{
		{Err: errors.New("boom")},
	}}
	store := &recordingStore{}
	opts.Store = store
	d := New(opts)

	events := run(t, d, `{"command":"chat_stream","args":{"text":"hi"}}`)

	require.Len(t, events, 1)
	assert.Equal(t, protocol.EventError, events[0].Type)
	assert.Empty(t, store.turns)
}

func TestChatTTSStream(t *testing.T) {
	opts := testOptions()
	opts.Chat = &stubChat{chunks: []llm.Chunk{
		{Text: "你好！"},
		{Text: " 有什么可以帮你的？"},
	}}
	synth := &stubSynthesizer{}
	opts.Synthesizer = synth
	d := New(opts)

	events := run(t, d, `{"command":"chat_tts_stream","args":{"text":"你好"}}`)

	require.Equal(t, []protocol.EventType{
		protocol.EventTextChunk, protocol.EventAudioChunk,
		protocol.EventTextChunk, protocol.EventAudioChunk,
		protocol.EventDone,
	}, eventTypes(events))

	assert.Equal(t, "你好！", events[0].Content)
	assert.Equal(t, "你好！", events[1].Text)
	assert.NotEmpty(t, events[1].AudioPath)
	assert.Equal(t, "有什么可以帮你的？", events[2].Content)
	assert.Equal(t, "有什么可以帮你的？", events[3].Text)

	assert.Equal(t, []string{"你好！", "有什么可以帮你的？"}, synth.calls)
}

func TestChatTTSStreamSkipsBlankChunks(t *testing.T) {
	opts := testOptions()
	opts.Chat = &stubChat{chunks: []llm.Chunk{
		{Text: "你好！"},
		{Text: "   "},
	}}
	opts.Synthesizer = &stubSynthesizer{}
	d := New(opts)

	events := run(t, d, `{"command":"chat_tts_stream","args":{"text":"你好"}}`)

	require.Equal(t, []protocol.EventType{
		protocol.EventTextChunk, protocol.EventAudioChunk, protocol.EventDone,
	}, eventTypes(events))
}

func TestChatTTSStreamSynthesisFailureContinues(t *testing.T) {
	opts := testOptions()
	opts.Chat = &stubChat{chunks: []llm.Chunk{
		{Text: "第一句。"},
		{Text: "第二句。"},
	}}
	opts.Synthesizer = &stubSynthesizer{failOn: "第一句。"}
	store := &recordingStore{}
	opts.Store = store
	d := New(opts)

	events := run(t, d, `{"command":"chat_tts_stream","args":{"text":"说两句"}}`)

	// The failed sentence keeps its text_chunk but has no audio_chunk.
	require.Equal(t, []protocol.EventType{
		protocol.EventTextChunk,
		protocol.EventTextChunk, protocol.EventAudioChunk,
		protocol.EventDone,
	}, eventTypes(events))

	// The full reply still reaches history.
	require.Len(t, store.turns, 2)
	assert.Equal(t, "第一句。第二句。", store.turns[1].Content)
}

func TestChatTTSStreamAppliesConfiguredVoice(t *testing.T) {
	opts := testOptions()
	opts.Config.TTS.Voice = "en-GB-SoniaNeural"
	opts.Config.TTS.Rate = "-10%"
	opts.Chat = &stubChat{chunks: []llm.Chunk{{Text: "Hello there."}}}
	synth := &stubSynthesizer{}
	opts.Synthesizer = synth
	d := New(opts)

	run(t, d, `{"command":"chat_tts_stream","args":{"text":"hi"}}`)

	require.NotNil(t, synth.lastReq)
	assert.Equal(t, "en-GB-SoniaNeural", synth.lastReq.Voice)
	assert.Equal(t, "-10%", synth.lastReq.Rate)
}

func TestChatTTSStreamWithoutSynthesizer(t *testing.T) {
	opts := testOptions()
	opts.Chat = &stubChat{chunks: []llm.Chunk{{Text: "hi"}}}
	d := New(opts)

	events := run(t, d, `{"command":"chat_tts_stream","args":{"text":"hi"}}`)

	require.Len(t, events, 1)
	assert.Equal(t, "no TTS provider configured", events[0].Error)
}

func TestTTS(t *testing.T) {
	opts := testOptions()
	synth := &stubSynthesizer{}
	opts.Synthesizer = synth
	d := New(opts)

	events := run(t, d, `{"command":"tts","args":{"text":"你好","language":"zh"}}`)

	require.Len(t, events, 1)
	done := events[0]
	require.Equal(t, protocol.EventDone, done.Type)
	assert.NotEmpty(t, done.AudioPath)
	assert.Equal(t, "zh", done.Language)

	require.NotNil(t, synth.lastReq)
	assert.Equal(t, "你好", synth.lastReq.Text)
	assert.Equal(t, "zh", synth.lastReq.Language)
	assert.Equal(t, "+0%", synth.lastReq.Rate)
}

func TestTTSSynthesisError(t *testing.T) {
	opts := testOptions()
	opts.Synthesizer = &stubSynthesizer{failOn: "你好"}
	d := New(opts)

	events := run(t, d, `{"command":"tts","args":{"text":"你好"}}`)

	require.Len(t, events, 1)
	require.Equal(t, protocol.EventError, events[0].Type)
	assert.Contains(t, events[0].Error, "no audio")
}

func TestDaemonState(t *testing.T) {
	opts := testOptions()
	opts.Chat = &stubChat{reply: "pong"}
	d := New(opts)

	events := run(t, d,
		`{"command":"health"}`,
		`{"command":"chat","args":{"text":"ping"}}`,
		`{"command":"get_daemon_state"}`,
	)

	last := events[len(events)-1]
	require.Equal(t, protocol.EventDone, last.Type)
	state, ok := last.State.(map[string]any)
	require.True(t, ok, "state payload should be an object")

	assert.Equal(t, true, state["running"])
	assert.Equal(t, d.SessionID(), state["session_id"])
	assert.Equal(t, float64(3), state["command_count"])
	assert.Equal(t, float64(2), state["history_turns"])
	models, ok := state["models_loaded"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, models["llm"])
	assert.Equal(t, false, models["tts"])
}

func TestMalformedCommandNotCounted(t *testing.T) {
	d := New(testOptions())
	events := run(t, d,
		`{bad`,
		`{"command":"get_daemon_state"}`,
	)

	last := events[len(events)-1]
	state := last.State.(map[string]any)
	assert.Equal(t, float64(1), state["command_count"])
}

func TestContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New(testOptions())
	var in, out bytes.Buffer
	in.WriteString(`{"command":"health"}` + "\n")
	err := d.Run(ctx, &in, &out)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}
