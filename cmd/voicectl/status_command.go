package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/normanking/cortexvoice/internal/protocol"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check which daemon backends are ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := ctx.ensureBridge()
			if err != nil {
				return err
			}
			events, err := b.Do(cmd.Context(), protocol.Command{Name: protocol.CmdHealth})
			if err != nil {
				return err
			}
			for _, evt := range events {
				if evt.Type == protocol.EventHealth && evt.ModelsLoaded != nil {
					m := evt.ModelsLoaded
					fmt.Fprintf(cmd.OutOrStdout(), "vad=%t asr=%t llm=%t tts=%t\n",
						m.VAD, m.ASR, m.LLM, m.TTS)
				}
			}
			return terminalError(events)
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the daemon session snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := ctx.ensureBridge()
			if err != nil {
				return err
			}
			events, err := b.Do(cmd.Context(), protocol.Command{Name: protocol.CmdDaemonState})
			if err != nil {
				return err
			}
			done, err := lastDone(events)
			if err != nil {
				return err
			}
			state, ok := done.State.(map[string]any)
			if !ok {
				return fmt.Errorf("unexpected state payload %T", done.State)
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "running:  %v\n", state["running"])
			fmt.Fprintf(stdout, "session:  %v\n", state["session_id"])
			fmt.Fprintf(stdout, "uptime:   %s\n", uptimeString(state["uptime_seconds"]))
			fmt.Fprintf(stdout, "commands: %v\n", state["command_count"])
			fmt.Fprintf(stdout, "history:  %v turns\n", state["history_turns"])
			if models, ok := state["models_loaded"].(map[string]any); ok {
				fmt.Fprintf(stdout, "models:   vad=%v asr=%v llm=%v tts=%v\n",
					models["vad"], models["asr"], models["llm"], models["tts"])
			}
			return nil
		},
	}
}

func uptimeString(v any) string {
	seconds, ok := v.(float64)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}
