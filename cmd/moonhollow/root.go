package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/moonhollow/moonhollow"
	"github.com/moonhollow/moonhollow/internal/cli"
	"github.com/moonhollow/moonhollow/internal/config"
	"github.com/moonhollow/moonhollow/pkg/domain"
)

var rootCmd = &cobra.Command{
	Use:   "moonhollow",
	Short: "Moon Hollow is a social deduction game played against language models",
	Long: `Moon Hollow runs turn-based Werewolf games where every villager but one
is a language model. Play from the terminal or serve the JSON API.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to the configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("tier", string(domain.TierFree), "Service tier to act as (free|unlimited)")
	rootCmd.PersistentFlags().Bool("memory", false, "Use the in-process store instead of Redis")
}

// buildOrchestrator composes the orchestrator from the persistent flags.
func buildOrchestrator(ctx context.Context, cmd *cobra.Command) (*moonhollow.Orchestrator, *config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	inMemory, _ := cmd.Flags().GetBool("memory")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	opts := []moonhollow.Option{moonhollow.WithLogger(cli.CreateLogger(debug))}
	if inMemory {
		opts = append(opts, moonhollow.WithInMemoryStore())
	}

	o, err := moonhollow.New(ctx, cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return o, cfg, nil
}

func flagTier(cmd *cobra.Command) domain.Tier {
	t, _ := cmd.Flags().GetString("tier")
	return domain.Tier(t)
}
