package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/digitalpromise/prism/internal/ledger"
	"github.com/digitalpromise/prism/internal/segment"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ProcessResponse summarizes a processing run.
type ProcessResponse struct {
	Status    string `json:"status"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// SegmentResponse is the output of the segment command.
type SegmentResponse struct {
	Source    string           `json:"source"`
	Sections  segment.Sections `json:"sections"`
	Metadata  SegmentMetadata  `json:"metadata"`
	WordCount int              `json:"word_count"`
}

// SegmentMetadata carries the detected bibliographic fields.
type SegmentMetadata struct {
	Year       string `json:"year,omitempty"`
	Outlet     string `json:"outlet,omitempty"`
	DOI        string `json:"doi,omitempty"`
	ArxivID    string `json:"arxiv_id,omitempty"`
	OpenAccess bool   `json:"open_access"`
}

// ExportResponse reports where the spreadsheet was written.
type ExportResponse struct {
	Status string `json:"status"`
	Path   string `json:"path"`
}

// HistoryResponse lists recent processing runs.
type HistoryResponse struct {
	Runs []ledger.Run `json:"runs"`
}
