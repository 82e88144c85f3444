package main

import (
	"fmt"

	"github.com/digitalpromise/prism/internal/config"
	"github.com/spf13/cobra"
)

var historyLimitFlag int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent processing runs",
	Long: `List recent processing runs from the local ledger, newest first, with
status, token usage, and the DOI detected for each paper.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	led := mustOpenLedger(cfg)
	defer led.Close()

	runs, err := led.Recent(historyLimitFlag)
	if err != nil {
		exitWithError(ExitError, "reading ledger: %v", err)
	}

	if humanOutput {
		if len(runs) == 0 {
			fmt.Println("No processing runs recorded.")
			return nil
		}
		for _, run := range runs {
			fmt.Printf("%-6d %s %-9s %6d tokens  %s\n",
				run.ID, run.StartedAt.Format("2006-01-02 15:04"), run.Status, run.TotalTokens, run.RecordID)
			if run.DOI != "" {
				fmt.Printf("       DOI: %s\n", run.DOI)
			}
			if run.Error != "" {
				fmt.Printf("       %s\n", run.Error)
			}
		}
		return nil
	}
	return outputJSON(HistoryResponse{Runs: runs})
}
