package main

import (
	"fmt"

	"github.com/digitalpromise/prism/internal/config"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate processing statistics",
	Long:  `Summarize the local ledger: run counts by outcome and total token usage.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	led := mustOpenLedger(cfg)
	defer led.Close()

	totals, err := led.Totals()
	if err != nil {
		exitWithError(ExitError, "reading ledger: %v", err)
	}

	if humanOutput {
		fmt.Printf("Runs:              %d\n", totals.Runs)
		fmt.Printf("Succeeded:         %d\n", totals.Succeeded)
		fmt.Printf("Failed:            %d\n", totals.Failed)
		fmt.Printf("Prompt tokens:     %d\n", totals.PromptTokens)
		fmt.Printf("Completion tokens: %d\n", totals.CompletionTokens)
		fmt.Printf("Total tokens:      %d\n", totals.TotalTokens)
		return nil
	}
	return outputJSON(totals)
}
