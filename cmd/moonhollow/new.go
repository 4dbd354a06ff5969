package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moonhollow/moonhollow/internal/engine"
	"github.com/moonhollow/moonhollow/pkg/domain"
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a game",
	Long: `Creates a game with the named bots and stores it. Models are given as
provider/model pairs; "provider/random" lets the catalog pick.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, _, err := buildOrchestrator(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer o.Close()

		human, _ := cmd.Flags().GetString("human")
		role, _ := cmd.Flags().GetString("role")
		bots, _ := cmd.Flags().GetStringSlice("bots")
		models, _ := cmd.Flags().GetStringSlice("models")
		gm, _ := cmd.Flags().GetString("gm")
		seed, _ := cmd.Flags().GetInt64("seed")

		selectors, err := parseSelectors(models)
		if err != nil {
			return err
		}
		gmSelector, err := parseSelector(gm)
		if err != nil {
			return err
		}

		game, err := o.Scheduler.CreateGame(cmd.Context(), engine.Setup{
			Tier:       flagTier(cmd),
			HumanName:  human,
			HumanRole:  domain.Role(role),
			BotNames:   bots,
			BotModels:  selectors,
			GameMaster: gmSelector,
			Seed:       seed,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Game created: %s\n", game.ID)
		fmt.Printf("You are %s, the %s.\n", game.HumanName, game.Human().Role)
		fmt.Printf("Run 'moonhollow play %s' to sit down.\n", game.ID)
		return nil
	},
}

// parseSelector splits "provider/model" into a selector. The model part may
// contain further slashes, as some gateway model IDs do.
func parseSelector(raw string) (domain.ModelSelector, error) {
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return domain.ModelSelector{}, fmt.Errorf("invalid model %q, expected provider/model", raw)
	}
	return domain.ModelSelector{Provider: parts[0], Model: parts[1]}, nil
}

func parseSelectors(raw []string) ([]domain.ModelSelector, error) {
	out := make([]domain.ModelSelector, len(raw))
	for i, r := range raw {
		sel, err := parseSelector(r)
		if err != nil {
			return nil, err
		}
		out[i] = sel
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().String("human", "You", "Name of the human participant")
	newCmd.Flags().String("role", "", "Force the human's role (villager|werewolf|doctor|detective|maniac)")
	newCmd.Flags().StringSlice("bots", nil, "Comma-separated bot names")
	newCmd.Flags().StringSlice("models", nil, "Comma-separated provider/model pairs, one per bot")
	newCmd.Flags().String("gm", "", "Game master model as provider/model")
	newCmd.Flags().Int64("seed", 0, "Random seed (0 picks one)")
	_ = newCmd.MarkFlagRequired("bots")
	_ = newCmd.MarkFlagRequired("models")
	_ = newCmd.MarkFlagRequired("gm")
}
