package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/digitalpromise/prism/internal/config"
	"github.com/digitalpromise/prism/internal/export"
	"github.com/spf13/cobra"
)

var exportOutputFlag string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all records to a spreadsheet",
	Long: `Fetch every record from Airtable and write an .xlsx workbook with one
row per record and one column per field, plus the Airtable record ID.

Without --output the workbook lands in exports/ under a timestamped name.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOutputFlag, "output", "", "Output .xlsx path")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	store := mustAirtableClient(cfg)

	path, err := export.Records(context.Background(), store, exportOutputFlag)
	if err != nil {
		if errors.Is(err, export.ErrNoRecords) {
			exitWithError(ExitDataError, "no records to export")
		}
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		fmt.Printf("Exported records to %s\n", path)
		return nil
	}
	return outputJSON(ExportResponse{Status: "ok", Path: path})
}
