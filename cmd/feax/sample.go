package main

import (
	"github.com/spf13/cobra"

	"go-fea-pipeline/internal/config"
)

var sampleCmd = &cobra.Command{
	Use:   "sample-config",
	Short: "Print an example configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.Encode(cmd.OutOrStdout(), config.Sample())
	},
}

func init() {
	rootCmd.AddCommand(sampleCmd)
}
