package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/quorumhq/quorum/internal/config"
	"github.com/quorumhq/quorum/internal/history"
	"github.com/quorumhq/quorum/pkg/models"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse past decisions",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent decisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.List(historyLimit)
		if err != nil {
			return err
		}
		printRecordList(records)
		return nil
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search decisions by question text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.Search(args[0], historyLimit)
		if err != nil {
			return err
		}
		printRecordList(records)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one decision in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		record, err := store.Get(args[0])
		if err != nil {
			return err
		}
		printRecord(record)
		for _, rs := range record.Convergence {
			fmt.Printf("  round %d convergence %.2f\n", rs.Round, rs.Score)
		}
		return nil
	},
}

func init() {
	historyCmd.PersistentFlags().IntVar(&historyLimit, "limit", 20, "Maximum number of results")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historySearchCmd)
	historyCmd.AddCommand(historyShowCmd)
}

// openHistory opens the decision store at the configured path.
func openHistory() (*history.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	path := cfg.History.Path
	if path == "" {
		path = history.DefaultPath()
	}
	return history.Open(path)
}

// printRecordList renders one line per decision.
func printRecordList(records []*models.DecisionRecord) {
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "No decisions recorded")
		return
	}
	for _, r := range records {
		marker := color.GreenString("✓")
		choice := r.Choice
		if r.Outcome != models.OutcomeDecided {
			marker = color.YellowString("⚠")
			choice = "no consensus"
		}
		fmt.Printf("%s %s  %s  %s (%d rounds)\n",
			marker, r.ID, r.CompletedAt.Format("2006-01-02 15:04"), choice, r.Rounds)
		fmt.Printf("    %s\n", truncate(r.Question, 100))
	}
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
