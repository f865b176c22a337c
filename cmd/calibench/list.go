package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered benchmarks",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range registry.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
