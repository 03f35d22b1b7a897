package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/normanking/cortexvoice/internal/audio"
	"github.com/normanking/cortexvoice/internal/protocol"
	"github.com/normanking/cortexvoice/internal/stt"
	"github.com/normanking/cortexvoice/internal/tts"
)

// defaultPushToTalkDuration applies when a push-to-talk record command
// names no duration.
const defaultPushToTalkDuration = 3 * time.Second

// daemonState is the get_daemon_state done payload.
type daemonState struct {
	Running       bool                  `json:"running"`
	SessionID     string                `json:"session_id"`
	CommandCount  int                   `json:"command_count"`
	UptimeSeconds float64               `json:"uptime_seconds"`
	ModelsLoaded  protocol.ModelsLoaded `json:"models_loaded"`
	HistoryTurns  int                   `json:"history_turns"`
}

// handleHealth reports backend readiness. It never fails; a daemon with
// no backends is still a healthy daemon that can say so.
func (d *Daemon) handleHealth() error {
	d.write(protocol.Health(d.models()))
	d.write(protocol.Done())
	return nil
}

// handleConfig returns the full active configuration.
func (d *Daemon) handleConfig() error {
	evt := protocol.Done()
	evt.Config = d.cfg
	d.write(evt)
	return nil
}

// handleSaveConfig persists the requested changes and applies the ones
// that take effect live. Settings bound at provider construction, like
// the LLM model, apply on the next daemon start.
func (d *Daemon) handleSaveConfig(cmd *protocol.Command) error {
	var args protocol.SaveConfigArgs
	if err := cmd.DecodeArgs(&args); err != nil {
		return err
	}

	next := *d.cfg
	if args.LogLevel != nil {
		next.Logging.Level = *args.LogLevel
	}
	if args.VADThreshold != nil {
		next.Audio.VADThreshold = *args.VADThreshold
	}
	if args.LLMModel != nil {
		next.LLM.Model = *args.LLMModel
	}
	if args.TTSVoice != nil {
		next.TTS.Voice = *args.TTSVoice
	}
	if args.TTSRate != nil {
		next.TTS.Rate = *args.TTSRate
	}
	if args.MaxHistory != nil {
		next.Daemon.MaxHistory = *args.MaxHistory
	}

	if err := d.saveConfig(&next); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	d.applyConfig(&next)

	evt := protocol.Done()
	evt.Message = "Configuration saved"
	d.write(evt)
	return nil
}

// handleRecord captures one utterance and transcribes it. Continuous
// mode gates on voice activity and emits listening/detected/recording
// state events; push-to-talk captures a fixed window.
func (d *Daemon) handleRecord(ctx context.Context, cmd *protocol.Command) error {
	if d.recorder == nil {
		return errors.New("no audio capture available")
	}
	if d.recognizer == nil {
		return errors.New("no STT provider configured")
	}

	var args protocol.RecordArgs
	if err := cmd.DecodeArgs(&args); err != nil {
		return err
	}
	mode := args.Mode
	if mode == "" {
		mode = d.cfg.Daemon.RecordingMode
	}

	var (
		segment *audio.SpeechSegment
		err     error
	)
	switch mode {
	case protocol.RecordModePushToTalk:
		duration := defaultPushToTalkDuration
		if args.Duration > 0 {
			duration = time.Duration(args.Duration * float64(time.Second))
		}
		d.write(protocol.State(protocol.StateRecording))
		segment, err = d.recorder.RecordFixed(ctx, duration)
	case protocol.RecordModeContinuous:
		d.write(protocol.State(protocol.StateListening))
		segment, err = d.recorder.Record(ctx, func() {
			d.write(protocol.State(protocol.StateDetected))
			d.write(protocol.State(protocol.StateRecording))
		})
	default:
		return fmt.Errorf("unknown recording mode: %s", mode)
	}
	if err != nil {
		if errors.Is(err, audio.ErrNoSpeech) {
			return errors.New("no speech detected")
		}
		return fmt.Errorf("record: %w", err)
	}

	d.write(protocol.State(protocol.StateProcessing))
	resp, err := d.recognizer.Transcribe(ctx, &stt.TranscribeRequest{
		Audio:      segment.Audio,
		SampleRate: segment.SampleRate,
		Channels:   segment.Channels,
		Language:   d.cfg.STT.Language,
	})
	if err != nil {
		if errors.Is(err, stt.ErrNoSpeech) {
			return errors.New("no speech detected")
		}
		return fmt.Errorf("transcribe: %w", err)
	}

	d.logger.Info().
		Str("text", resp.Text).
		Str("language", resp.Language).
		Dur("audio", segment.Duration).
		Msg("Utterance transcribed")

	evt := protocol.Done()
	evt.Text = resp.Text
	evt.Language = resp.Language
	d.write(evt)
	return nil
}

// handleTTS synthesizes one utterance and returns the artifact path.
func (d *Daemon) handleTTS(ctx context.Context, cmd *protocol.Command) error {
	if d.synthesizer == nil {
		return errors.New("no TTS provider configured")
	}

	var args protocol.TTSArgs
	if err := cmd.DecodeArgs(&args); err != nil {
		return err
	}

	req := d.synthesisRequest(args.Text)
	req.Language = args.Language
	result, err := d.synthesizer.Synthesize(ctx, req)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	evt := protocol.Done()
	evt.AudioPath = result.AudioPath
	evt.Language = result.Language
	d.write(evt)
	return nil
}

// handleDaemonState reports the session snapshot.
func (d *Daemon) handleDaemonState() error {
	evt := protocol.Done()
	evt.State = daemonState{
		Running:       true,
		SessionID:     d.sessionID,
		CommandCount:  d.commandCount,
		UptimeSeconds: time.Since(d.startTime).Seconds(),
		ModelsLoaded:  d.models(),
		HistoryTurns:  d.conversation.Len(),
	}
	d.write(evt)
	return nil
}

// synthesisRequest applies the configured voice and rate to one
// synthesis. Per-request fields override after this returns.
func (d *Daemon) synthesisRequest(text string) *tts.SynthesizeRequest {
	return &tts.SynthesizeRequest{
		Text:  text,
		Voice: d.cfg.TTS.Voice,
		Rate:  d.cfg.TTS.Rate,
	}
}
