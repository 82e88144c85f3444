// Package status is the operator-facing progress reporter for processing
// runs: per-record banners, per-call token accounting, and the final
// summary. All methods are safe for concurrent workers.
package status

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

var fallbackValues = map[string]bool{
	"unknown":             true,
	"n/a":                 true,
	"no funding received": true,
}

type recordUsage struct {
	in    int
	out   int
	total int
}

// Reporter accumulates run counters and token usage while printing
// progress to its writer.
type Reporter struct {
	mu      sync.Mutex
	w       io.Writer
	success int
	failure int
	usage   map[string]*recordUsage
	order   []string
}

// NewReporter creates a reporter writing to w, or stdout when w is nil.
func NewReporter(w io.Writer) *Reporter {
	if w == nil {
		w = os.Stdout
	}
	return &Reporter{
		w:     w,
		usage: make(map[string]*recordUsage),
	}
}

// LogProcessing prints the banner opening one record's run.
func (r *Reporter) LogProcessing(recordID string, wordCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "==== Processing Record: %s ====\n", recordID)
	if wordCount > 0 {
		fmt.Fprintf(r.w, "Word Count: %d\n", wordCount)
	}
}

// LogSuccess counts and prints a successful record, listing any extraction
// warnings by batch.
func (r *Reporter) LogSuccess(recordID string, warnings map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success++
	fmt.Fprintf(r.w, "✔ Success: Record %s processed successfully.\n", recordID)
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(r.w, "Warnings:")
	batches := make([]string, 0, len(warnings))
	for b := range warnings {
		batches = append(batches, b)
	}
	sort.Strings(batches)
	for _, b := range batches {
		fmt.Fprintf(r.w, "  ● %s: %s\n", b, warnings[b])
	}
}

// LogFailure counts and prints a failed record.
func (r *Reporter) LogFailure(recordID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure++
	fmt.Fprintf(r.w, "✖ Failure: Record %s failed.\n", recordID)
	fmt.Fprintf(r.w, "Reason: %s\n", message)
}

// StopProcessing prints the closing banner.
func (r *Reporter) StopProcessing() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, "==== Processing Complete ====")
}

// LogModelCall prints one LLM call as an aligned row and accumulates the
// record's token usage.
func (r *Reporter) LogModelCall(field, scope string, inTokens, outTokens int, model, recordID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if scope == "" {
		scope = "full_text"
	}
	total := inTokens + outTokens
	tokens := fmt.Sprintf("[%d|%d|%d]", inTokens, outTokens, total)
	fmt.Fprintf(r.w, "%s | %s | %-15s | %s\n", column(field, 15), column(scope, 10), tokens, model)

	if recordID == "" {
		return
	}
	u, ok := r.usage[recordID]
	if !ok {
		u = &recordUsage{}
		r.usage[recordID] = u
		r.order = append(r.order, recordID)
	}
	u.in += inTokens
	u.out += outTokens
	u.total += total
}

// LogRecordUsage prints the cumulative token total for one record.
func (r *Reporter) LogRecordUsage(recordID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.usage[recordID]; ok {
		fmt.Fprintf(r.w, "Total Tokens Used: %d\n\n", u.total)
	}
}

// Counts reports how many records succeeded and failed so far.
func (r *Reporter) Counts() (succeeded, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.success, r.failure
}

// Summary prints the run totals, with a per-record usage table when more
// than one record consumed tokens.
func (r *Reporter) Summary() {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for _, u := range r.usage {
		total += u.total
	}

	fmt.Fprintf(r.w, "%-10s %7s\n", "Result", "Count")
	fmt.Fprintf(r.w, "%-10s %7d\n", "Success", r.success)
	fmt.Fprintf(r.w, "%-10s %7d\n", "Failed", r.failure)
	fmt.Fprintf(r.w, "%-10s %7d\n", "GPT Tokens", total)

	if len(r.order) > 1 {
		fmt.Fprintf(r.w, "%-18s %7s %7s %7s\n", "Record ID", "Input", "Output", "Total")
		for _, rid := range r.order {
			u := r.usage[rid]
			fmt.Fprintf(r.w, "%-18s %7d %7d %7d\n", rid, u.in, u.out, u.total)
		}
	}
}

// LogRecordUpdate prints the outcome of writing extracted fields to a
// record, splitting the written fields into real extractions, fallback
// answers ("Unknown" and friends), and empties.
func (r *Reporter) LogRecordUpdate(recordID string, fields []string, values map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var nonExtraction, empty []string
	succeeded := 0
	for _, k := range fields {
		val := values[k]
		switch {
		case isEmptyValue(val):
			empty = append(empty, k)
		case isFallbackValue(val):
			nonExtraction = append(nonExtraction, k)
		default:
			succeeded++
		}
	}

	fmt.Fprintf(r.w, "[Airtable SUCCESS] Record %s updated | Fields: %d succeeded, %d non-extraction, %d failed\n",
		recordID, succeeded, len(nonExtraction), len(empty))
	if len(empty) > 0 {
		fmt.Fprintf(r.w, "  ↳ Failed Fields: %v\n", empty)
	}
	if len(nonExtraction) > 0 {
		fmt.Fprintf(r.w, "  ↳ Non-extraction Fields: %v\n", nonExtraction)
	}
}

// LogUpdateFailure prints a failed record update.
func (r *Reporter) LogUpdateFailure(recordID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "[Airtable ERROR] Failed to update record %s\n", recordID)
}

func column(s string, width int) string {
	if len(s) > width {
		s = s[:width]
	}
	return fmt.Sprintf("%-*s", width, s)
}

func isEmptyValue(val any) bool {
	switch v := val.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}

func isFallbackValue(val any) bool {
	s, ok := val.(string)
	if !ok {
		return false
	}
	return fallbackValues[strings.ToLower(strings.TrimSpace(s))]
}
