package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/moonhollow/moonhollow/internal/cli"
	"github.com/moonhollow/moonhollow/internal/presentation/tui"
)

var playCmd = &cobra.Command{
	Use:   "play <game-id>",
	Short: "Play a game from the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, _, err := buildOrchestrator(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer o.Close()

		tui.PrintBanner()

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		return cli.RunPlay(sigCtx, o, args[0], flagTier(cmd))
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
}
