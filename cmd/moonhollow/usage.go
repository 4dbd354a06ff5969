package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moonhollow/moonhollow/pkg/observability"
)

var usageCmd = &cobra.Command{
	Use:   "usage <game-id>",
	Short: "Show a game's token and cost consumption",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, _, err := buildOrchestrator(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer o.Close()

		game, _, err := o.Scheduler.Game(cmd.Context(), args[0], flagTier(cmd))
		if err != nil {
			return err
		}

		report := observability.Aggregate(game)
		fmt.Printf("Game %s\n\n", report.GameID)
		for _, row := range report.Participants {
			fmt.Printf("  %-12s %-28s in=%-8d out=%-8d $%.4f\n",
				row.Name, row.Model, row.Usage.InputTokens, row.Usage.OutputTokens, row.Usage.CostUSD)
		}
		fmt.Println()
		for _, model := range report.Models() {
			u := report.ByModel[model]
			fmt.Printf("  %-41s total=%-8d $%.4f\n", model, u.TotalTokens, u.CostUSD)
		}
		fmt.Printf("\n  total tokens=%d cost=$%.4f\n", report.Total.TotalTokens, report.Total.CostUSD)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usageCmd)
}
