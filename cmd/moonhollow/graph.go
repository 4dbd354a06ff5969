package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moonhollow/moonhollow/internal/presentation/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph [game-id]",
	Short: "Print the phase machine as a Mermaid diagram",
	Long: `Prints the game's phase machine in Mermaid flowchart syntax. With a game
ID, the game's current phase is highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Print(graph.GenerateMermaid(nil))
			return nil
		}

		o, _, err := buildOrchestrator(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer o.Close()

		game, _, err := o.Scheduler.Game(cmd.Context(), args[0], flagTier(cmd))
		if err != nil {
			return err
		}
		fmt.Print(graph.GenerateMermaid(&graph.Overlay{CurrentPhase: game.Phase}))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
