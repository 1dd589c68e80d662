package main

import (
	"github.com/spf13/cobra"

	"github.com/luciancaetano/ecochat/internal/config"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the environment variables ecochat reads",
	Run: func(cmd *cobra.Command, _ []string) {
		config.PrintHelp(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
}
