package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moonhollow/moonhollow/pkg/domain"
)

var stepCmd = &cobra.Command{
	Use:   "step <game-id>",
	Short: "Advance a game by one step",
	Long: `Processes exactly one step of the game's current queue and prints where
the game landed. Useful for driving games from scripts and cron.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, _, err := buildOrchestrator(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer o.Close()

		game, err := o.Scheduler.Step(cmd.Context(), args[0], flagTier(cmd))
		if errors.Is(err, domain.ErrHumanTurn) {
			fmt.Printf("%s day=%d phase=%s waiting for the human participant\n", game.ID, game.Day, game.Phase)
			return nil
		}
		if err != nil {
			return err
		}

		step := "-"
		if current, ok := game.Steps.Current(); ok {
			step = string(current)
		}
		fmt.Printf("%s day=%d phase=%s step=%s\n", game.ID, game.Day, game.Phase, step)
		if game.ErrorState != nil {
			fmt.Printf("error: %s (recoverable=%v)\n", game.ErrorState.Error, game.ErrorState.Recoverable)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stepCmd)
}
