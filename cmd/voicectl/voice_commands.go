package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/normanking/cortexvoice/internal/bridge"
	"github.com/normanking/cortexvoice/internal/bus"
	"github.com/normanking/cortexvoice/internal/protocol"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var mode string
	var duration float64
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Capture one utterance and print the transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := ctx.ensureBridge()
			if err != nil {
				return err
			}
			ctx.eventBus.Subscribe(bus.EventTypeVoiceState, func(evt bus.Event) {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%v]\n", evt.Data["state"])
			})

			wireCmd, err := protocol.NewCommand(protocol.CmdRecord, protocol.RecordArgs{
				Mode:     mode,
				Duration: duration,
			})
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
			fmt.Fprintln(cmd.OutOrStdout(), done.Text)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "continuous or push-to-talk (daemon config decides when empty)")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Push-to-talk capture seconds")
	return cmd
}

func newSayCommand(ctx *commandContext) *cobra.Command {
	var language string
	var noPlay bool
	cmd := &cobra.Command{
		Use:   "say <text>",
		Short: "Synthesize text and play it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			b, err := ctx.ensureBridge()
			if err != nil {
				return err
			}
			wireCmd, err := protocol.NewCommand(protocol.CmdTTS, protocol.TTSArgs{
				Text:     text,
				Language: language,
			})
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
			fmt.Fprintln(cmd.OutOrStdout(), done.AudioPath)
			if noPlay {
				return nil
			}

			player, err := bridge.NewExecPlayer(ctx.newLogger())
			if err != nil {
				return err
			}
			return player.Play(cmd.Context(), done.AudioPath)
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "Language hint (zh, en, ja, ko, yue)")
	cmd.Flags().BoolVar(&noPlay, "no-play", false, "Print the artifact path without playing it")
	return cmd
}
