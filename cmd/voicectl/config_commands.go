package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/normanking/cortexvoice/internal/protocol"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change daemon settings",
	}
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigSetCommand(ctx))
	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the daemon's active configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := ctx.ensureBridge()
			if err != nil {
				return err
			}
			events, err := b.Do(cmd.Context(), protocol.Command{Name: protocol.CmdConfig})
			if err != nil {
				return err
			}
			done, err := lastDone(events)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(done.Config)
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newConfigSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key=value> ...",
		Short: "Change settings and persist them",
		Long: `Change daemon settings at runtime. Supported keys:
  log_level, vad_threshold, llm_model, tts_voice, tts_rate, max_history`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			saveArgs, err := saveArgsFromPairs(args)
			if err != nil {
				return err
			}
			b, err := ctx.ensureBridge()
			if err != nil {
				return err
			}
			wireCmd, err := protocol.NewCommand(protocol.CmdSaveConfig, saveArgs)
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
			fmt.Fprintln(cmd.OutOrStdout(), done.Message)
			return nil
		},
	}
}

// saveArgsFromPairs parses key=value pairs into the save_config args.
func saveArgsFromPairs(pairs []string) (protocol.SaveConfigArgs, error) {
	var out protocol.SaveConfigArgs
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return out, fmt.Errorf("expected key=value, got %q", pair)
		}
		switch key {
		case "log_level":
			out.LogLevel = &value
		case "vad_threshold":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return out, fmt.Errorf("vad_threshold: %w", err)
			}
			out.VADThreshold = &f
		case "llm_model":
			out.LLMModel = &value
		case "tts_voice":
			out.TTSVoice = &value
		case "tts_rate":
			out.TTSRate = &value
		case "max_history":
			n, err := strconv.Atoi(value)
			if err != nil {
				return out, fmt.Errorf("max_history: %w", err)
			}
			out.MaxHistory = &n
		default:
			return out, fmt.Errorf("unknown setting %q", key)
		}
	}
	return out, nil
}
