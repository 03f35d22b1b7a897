package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/normanking/cortexvoice/internal/bridge"
	"github.com/normanking/cortexvoice/internal/bus"
	"github.com/normanking/cortexvoice/internal/protocol"
)

func newChatCommand(ctx *commandContext) *cobra.Command {
	var stream bool
	cmd := &cobra.Command{
		Use:   "chat <text>",
		Short: "Send one chat turn and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			b, err := ctx.ensureBridge()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()

			if stream {
				ctx.eventBus.Subscribe(bus.EventTypeVoiceChunk, func(evt bus.Event) {
					fmt.Fprint(stdout, evt.Data["content"])
				})
				wireCmd, err := protocol.NewCommand(protocol.CmdChatStream, protocol.ChatArgs{Text: text})
				if err != nil {
					return err
				}
				events, err := b.Do(cmd.Context(), wireCmd)
				if err != nil {
					return err
				}
				done, err := lastDone(events)
				if err != nil {
					fmt.Fprintln(stdout)
					return err
				}
				// A clear-keyword reply arrives on the done, not as chunks.
				if done.Content != "" {
					fmt.Fprint(stdout, done.Content)
				}
				fmt.Fprintln(stdout)
				return nil
			}

			wireCmd, err := protocol.NewCommand(protocol.CmdChat, protocol.ChatArgs{Text: text})
			if err != nil {
				return err
			}
			events, err := b.Do(cmd.Context(), wireCmd)
			if err != nil {
				return err
			}
			done, err := lastDone(events)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, done.Content)
			return nil
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "Print sentences as they arrive")
	return cmd
}

func newTalkCommand(ctx *commandContext) *cobra.Command {
	var textOnly bool
	cmd := &cobra.Command{
		Use:   "talk",
		Short: "Hold a spoken conversation with the assistant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := ctx.ensureBridge()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			stderr := cmd.ErrOrStderr()

			var queue *bridge.PlaybackQueue
			if !textOnly {
				player, err := bridge.NewExecPlayer(ctx.newLogger())
				if err != nil {
					fmt.Fprintln(stderr, "no playback tool found, continuing text-only")
				} else {
					queue = bridge.NewPlaybackQueue(player, ctx.newLogger(), ctx.eventBus)
					defer queue.Close()
				}
			}

			ctx.eventBus.Subscribe(bus.EventTypeVoiceState, func(evt bus.Event) {
				fmt.Fprintf(stderr, "[%v]\n", evt.Data["state"])
			})
			ctx.eventBus.Subscribe(bus.EventTypeVoiceTextChunk, func(evt bus.Event) {
				fmt.Fprint(stdout, evt.Data["content"])
			})
			if queue != nil {
				ctx.eventBus.Subscribe(bus.EventTypeVoiceAudioChunk, func(evt bus.Event) {
					path, _ := evt.Data["audio_path"].(string)
					text, _ := evt.Data["text"].(string)
					queue.Enqueue(path, text)
				})
			}

			fmt.Fprintln(stderr, "Speak when ready. Ctrl-C ends the session.")
			for {
				if cmd.Context().Err() != nil {
					return nil
				}

				events, err := b.Do(cmd.Context(), protocol.Command{Name: protocol.CmdRecord})
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				done := events[len(events)-1]
				if done.Type == protocol.EventError {
					// Timeouts and silence loop back to listening.
					fmt.Fprintf(stderr, "(%s)\n", done.Error)
					continue
				}
				transcript := strings.TrimSpace(done.Text)
				if transcript == "" {
					continue
				}
				fmt.Fprintf(stdout, "You: %s\n", transcript)
				fmt.Fprint(stdout, "Assistant: ")

				wireCmd, err := protocol.NewCommand(protocol.CmdChatTTSStream, protocol.ChatArgs{
					Text:     transcript,
					AutoPlay: queue != nil,
				})
				if err != nil {
					return err
				}
				events, err = b.Do(cmd.Context(), wireCmd)
				if err != nil {
					fmt.Fprintln(stdout)
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				if done, derr := lastDone(events); derr != nil {
					fmt.Fprintf(stderr, "(%s)\n", derr)
				} else if done.Content != "" {
					fmt.Fprint(stdout, done.Content)
				}
				fmt.Fprintln(stdout)
			}
		},
	}
	cmd.Flags().BoolVar(&textOnly, "text-only", false, "Skip audio playback")
	return cmd
}
