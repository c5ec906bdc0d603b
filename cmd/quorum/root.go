package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quorum",
	Short: "Multi-model deliberation orchestrator",
	Long: `Quorum poses a question to a panel of AI model participants, runs
structured deliberation rounds until their positions converge, and
aggregates their weighted votes into a single decision record.

Participants can be local subprocesses, OpenAI-compatible HTTP backends,
or Claude models via the Anthropic API or AWS Bedrock.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(deliberateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
