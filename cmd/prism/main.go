// Package main provides the prism CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/digitalpromise/prism/internal/airtable"
	"github.com/digitalpromise/prism/internal/config"
	"github.com/digitalpromise/prism/internal/fields"
	"github.com/digitalpromise/prism/internal/ledger"
	"github.com/digitalpromise/prism/internal/llm"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		// This ensures Cobra errors (like missing required flags) are visible
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "prism",
	Short: "Bibliographic field extraction for academic papers",
	Long: `prism turns research-paper PDFs tracked in Airtable into structured
bibliographic and outcome fields.

Core features:
  - PDF text extraction with rule-based segmentation (front matter,
    abstract, main body, end matter)
  - Best-effort DOI, arXiv ID, year, outlet, and open access detection
  - Batched GPT field extraction driven by a YAML field catalogue
  - Airtable write-back with processing status tracking
  - Webhook service for Airtable-triggered background processing

Credentials come from the environment or a .env file. All commands
output JSON by default for AI agent integration.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}

// mustAirtableClient builds the record-store client, exits when the
// Airtable settings are missing.
func mustAirtableClient(cfg *config.Config) *airtable.Client {
	if err := cfg.ValidateAirtable(); err != nil {
		fmt.Fprintln(os.Stderr, config.HelpfulEnvMessage(err))
		os.Exit(ExitConfigError)
	}
	return airtable.NewClient(cfg.AirtableBaseID, cfg.AirtableTable,
		airtable.WithAPIKey(cfg.AirtableAPIKey))
}

// mustLLMClient builds the extraction-model client, exits when the model
// settings are missing.
func mustLLMClient(cfg *config.Config) *llm.Client {
	if err := cfg.ValidateLLM(); err != nil {
		fmt.Fprintln(os.Stderr, config.HelpfulEnvMessage(err))
		os.Exit(ExitConfigError)
	}
	return llm.NewClient(
		llm.WithAPIKey(cfg.OpenAIAPIKey),
		llm.WithModel(cfg.OpenAIModel),
		llm.WithMinInterval(cfg.MinRequestInterval),
	)
}

// mustFieldConfig loads the field catalogue, exits on error.
func mustFieldConfig(cfg *config.Config) *fields.Config {
	fc, err := fields.LoadConfig(cfg.FieldConfigPath)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return fc
}

// mustOpenLedger opens the run ledger, exits on error.
// The caller is responsible for calling Close() on the returned ledger.
func mustOpenLedger(cfg *config.Config) *ledger.Ledger {
	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		exitWithError(ExitError, "opening ledger: %v", err)
	}
	return led
}
