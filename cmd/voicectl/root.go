package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var daemonFlag string
	var verboseFlag bool

	ctx := newCommandContext(&daemonFlag, &verboseFlag)

	rootCmd := &cobra.Command{
		Use:           "voicectl",
		Short:         "Talk to the CortexVoice daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&daemonFlag, "daemon", "cortexvoice", "Daemon command to spawn")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Relay daemon logs to stderr")

	rootCmd.AddCommand(newHealthCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newChatCommand(ctx))
	rootCmd.AddCommand(newTalkCommand(ctx))
	rootCmd.AddCommand(newRecordCommand(ctx))
	rootCmd.AddCommand(newSayCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
