// Package export writes the record store to an Excel workbook for offline
// review.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/digitalpromise/prism/internal/airtable"
)

// DefaultDir receives timestamped exports when no output path is given.
const DefaultDir = "exports"

const sheetName = "Sheet1"

// ErrNoRecords is returned when the store holds nothing to export.
var ErrNoRecords = errors.New("no records to export")

// Lister is the record-store operation the exporter needs.
type Lister interface {
	ListRecords(ctx context.Context, formula string) ([]airtable.Record, error)
}

// Records fetches every record and writes the workbook. An empty path
// writes airtable_export_<timestamp>.xlsx under DefaultDir. Returns the
// written path.
func Records(ctx context.Context, store Lister, path string) (string, error) {
	records, err := store.ListRecords(ctx, "")
	if err != nil {
		return "", fmt.Errorf("listing records: %w", err)
	}
	return WriteWorkbook(records, path)
}

// WriteWorkbook writes one row per record. Columns are the Airtable record
// ID followed by the sorted union of field names across all records;
// list and map values are JSON-encoded into their cells.
func WriteWorkbook(records []airtable.Record, path string) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}

	if path == "" {
		name := fmt.Sprintf("airtable_export_%s.xlsx", time.Now().Format("2006-01-02_150405"))
		path = filepath.Join(DefaultDir, name)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("creating export directory: %w", err)
		}
	}

	columns := fieldColumns(records)
	header := append([]string{"AirtableID"}, columns...)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	for i, rec := range records {
		row := make([]any, 0, len(header))
		row = append(row, rec.ID)
		for _, col := range columns {
			row = append(row, cellValue(rec.Fields[col]))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return "", fmt.Errorf("writing record %s: %w", rec.ID, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("saving workbook: %w", err)
	}
	return path, nil
}

// fieldColumns returns the sorted union of field names across all records.
func fieldColumns(records []airtable.Record) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, rec := range records {
		for name := range rec.Fields {
			if !seen[name] {
				seen[name] = true
				columns = append(columns, name)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

// cellValue flattens a field value into something excelize can write.
// Structured values (attachment lists, linked records) become JSON.
func cellValue(val any) any {
	switch val.(type) {
	case nil, string, bool, float64, int, int64:
		return val
	}
	b, err := json.Marshal(val)
	if err != nil {
		return fmt.Sprint(val)
	}
	return string(b)
}
