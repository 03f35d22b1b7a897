package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/normanking/cortexvoice/internal/llm"
	"github.com/normanking/cortexvoice/internal/protocol"
	"github.com/normanking/cortexvoice/internal/tts"
	"github.com/normanking/cortexvoice/internal/voice"
)

// systemPrompt returns the configured system prompt or the default.
func (d *Daemon) systemPrompt() string {
	if p := d.cfg.LLM.SystemPrompt; p != "" {
		return p
	}
	return llm.DefaultSystemPrompt
}

// chatMessages assembles the provider message list from the bounded
// conversation history plus the new user utterance.
func (d *Daemon) chatMessages(userText string) []llm.Message {
	turns := d.conversation.Turns()
	history := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		history = append(history, llm.Message{Role: t.Role, Content: t.Content})
	}
	return llm.BuildMessages(d.systemPrompt(), history, userText)
}

// clearShortCircuit resets the conversation when the utterance asks
// for it, answering in the utterance's language without touching the
// LLM. Reports whether the command was handled.
func (d *Daemon) clearShortCircuit(text string) bool {
	if !voice.ShouldClear(text) {
		return false
	}
	d.conversation.Clear()
	d.logger.Info().Msg("Conversation cleared by keyword")

	evt := protocol.Done()
	evt.Content = voice.ClearConfirmation(tts.DetectLanguage(text))
	d.write(evt)
	return true
}

// appendExchange records one completed user/assistant exchange in the
// in-memory conversation and the persistent store. Store failures are
// logged, never fatal; history writes use a background context so a
// canceled command still leaves its partial exchange behind.
func (d *Daemon) appendExchange(userText, assistantText string) {
	if assistantText == "" {
		return
	}
	d.conversation.Append(voice.RoleUser, userText)
	d.conversation.Append(voice.RoleAssistant, assistantText)

	ctx := context.Background()
	if err := d.store.AppendTurn(ctx, d.sessionID, voice.RoleUser, userText); err != nil {
		d.logger.Warn().Err(err).Msg("History write failed")
	}
	if err := d.store.AppendTurn(ctx, d.sessionID, voice.RoleAssistant, assistantText); err != nil {
		d.logger.Warn().Err(err).Msg("History write failed")
	}
}

// handleChat runs one buffered chat turn.
func (d *Daemon) handleChat(ctx context.Context, cmd *protocol.Command) error {
	if d.chat == nil {
		return errors.New("no LLM provider configured")
	}

	var args protocol.ChatArgs
	if err := cmd.DecodeArgs(&args); err != nil {
		return err
	}
	text, err := llm.ValidateInput(args.Text)
	if err != nil {
		return err
	}
	if d.clearShortCircuit(text) {
		return nil
	}

	reply, err := d.chat.Chat(ctx, d.chatMessages(text))
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	d.appendExchange(text, reply)

	evt := protocol.Done()
	evt.Content = reply
	d.write(evt)
	return nil
}

// handleChatStream runs one chat turn, emitting each sentence as a
// chunk event. A mid-stream failure keeps the already-delivered text
// in the conversation history.
func (d *Daemon) handleChatStream(ctx context.Context, cmd *protocol.Command) error {
	if d.chat == nil {
		return errors.New("no LLM provider configured")
	}

	var args protocol.ChatArgs
	if err := cmd.DecodeArgs(&args); err != nil {
		return err
	}
	text, err := llm.ValidateInput(args.Text)
	if err != nil {
		return err
	}
	if d.clearShortCircuit(text) {
		return nil
	}

	ch, err := d.chat.ChatStream(ctx, d.chatMessages(text))
	if err != nil {
		return fmt.Errorf("chat stream: %w", err)
	}

	var full strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			d.appendExchange(text, full.String())
			return fmt.Errorf("chat stream: %w", chunk.Err)
		}
		d.write(protocol.Chunk(chunk.Text))
		full.WriteString(chunk.Text)
	}
	d.appendExchange(text, full.String())

	d.write(protocol.Done())
	return nil
}

// handleChatTTSStream runs one chat turn, pairing each sentence with a
// synthesized audio artifact: text_chunk first, then audio_chunk on
// synthesis success. A failed synthesis is logged and the stream moves
// on, so one bad sentence never silences the rest of the reply.
func (d *Daemon) handleChatTTSStream(ctx context.Context, cmd *protocol.Command) error {
	if d.chat == nil {
		return errors.New("no LLM provider configured")
	}
	if d.synthesizer == nil {
		return errors.New("no TTS provider configured")
	}

	var args protocol.ChatArgs
	if err := cmd.DecodeArgs(&args); err != nil {
		return err
	}
	text, err := llm.ValidateInput(args.Text)
	if err != nil {
		return err
	}
	if d.clearShortCircuit(text) {
		return nil
	}

	ch, err := d.chat.ChatStream(ctx, d.chatMessages(text))
	if err != nil {
		return fmt.Errorf("chat stream: %w", err)
	}

	var full strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			d.appendExchange(text, full.String())
			return fmt.Errorf("chat stream: %w", chunk.Err)
		}
		sentence := strings.TrimSpace(chunk.Text)
		if sentence == "" {
			continue
		}
		d.write(protocol.TextChunk(sentence))
		full.WriteString(chunk.Text)

		result, synthErr := d.synthesizer.Synthesize(ctx, d.synthesisRequest(sentence))
		if synthErr != nil {
			d.logger.Warn().Err(synthErr).Str("sentence", sentence).Msg("Sentence synthesis failed")
			continue
		}
		d.write(protocol.AudioChunk(result.AudioPath, sentence))
	}
	d.appendExchange(text, full.String())

	d.write(protocol.Done())
	return nil
}
