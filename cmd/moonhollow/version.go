package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moonhollow/moonhollow"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of moonhollow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("moonhollow version %s\n", moonhollow.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
