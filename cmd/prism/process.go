package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/digitalpromise/prism/internal/airtable"
	"github.com/digitalpromise/prism/internal/config"
	"github.com/digitalpromise/prism/internal/document"
	"github.com/digitalpromise/prism/internal/fields"
	"github.com/digitalpromise/prism/internal/pipeline"
	"github.com/digitalpromise/prism/internal/status"
	"github.com/spf13/cobra"
)

var (
	processRecordFlag   string
	processForceAllFlag bool
	processSaveTextFlag string
	processWorkersFlag  int
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Extract fields from records needing processing",
	Long: `Process papers tracked in Airtable: fetch each record's PDF (or the
document behind its DOI/URL), segment the text, run the configured GPT
field batches, and write the extracted fields back.

By default every record with a PDF and no extracted fields is processed.
Use --record to process one record by ID or Study Short Name, or
--force-all to clear previously extracted fields and reprocess everything.

Progress lines go to stdout with --human, to stderr otherwise; the JSON
summary stays on stdout.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processRecordFlag, "record", "", "Process a single record by ID or Study Short Name")
	processCmd.Flags().BoolVar(&processForceAllFlag, "force-all", false, "Clear extracted fields and reprocess every record")
	processCmd.Flags().StringVar(&processSaveTextFlag, "save-text", "", "Write each record's sectioned plaintext to this directory")
	processCmd.Flags().IntVar(&processWorkersFlag, "workers", 1, "Number of records to process concurrently")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	store := mustAirtableClient(cfg)
	model := mustLLMClient(cfg)
	fieldCfg := mustFieldConfig(cfg)
	led := mustOpenLedger(cfg)
	defer led.Close()

	var progress io.Writer = os.Stdout
	if !humanOutput {
		progress = os.Stderr
	}
	reporter := status.NewReporter(progress)

	extractor := fields.NewProcessor(fieldCfg, model, fields.WithUsageLogger(reporter))

	opts := []pipeline.Option{
		pipeline.WithReporter(reporter),
		pipeline.WithLedger(led),
	}
	if processSaveTextFlag != "" {
		opts = append(opts, pipeline.WithSaveDir(processSaveTextFlag))
	}
	if processWorkersFlag > 1 {
		opts = append(opts, pipeline.WithWorkers(processWorkersFlag))
	}
	proc := pipeline.NewProcessor(store, document.NewResolver(), extractor, opts...)

	ctx := context.Background()

	var runErr error
	switch {
	case processRecordFlag != "":
		runErr = proc.ProcessByName(ctx, processRecordFlag)
	case processForceAllFlag:
		runErr = proc.ProcessAll(ctx)
	default:
		runErr = proc.ProcessNew(ctx)
	}

	reporter.StopProcessing()
	reporter.Summary()

	if runErr != nil {
		code := ExitError
		if errors.Is(runErr, pipeline.ErrNoSource) || airtable.IsNotFound(runErr) {
			code = ExitDataError
		}
		exitWithError(code, "%v", runErr)
	}

	if humanOutput {
		return nil
	}
	succeeded, failed := reporter.Counts()
	return outputJSON(ProcessResponse{Status: "complete", Succeeded: succeeded, Failed: failed})
}
