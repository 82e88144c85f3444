// Package pipeline orchestrates record processing end to end: source
// selection, PDF resolution, segmentation, field extraction, write-back,
// and the status and ledger bookkeeping around them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/digitalpromise/prism/internal/airtable"
	"github.com/digitalpromise/prism/internal/document"
	"github.com/digitalpromise/prism/internal/fields"
	"github.com/digitalpromise/prism/internal/ledger"
	"github.com/digitalpromise/prism/internal/llm"
	"github.com/digitalpromise/prism/internal/segment"
	"github.com/digitalpromise/prism/internal/status"
)

// ErrNoSource marks a record with neither a PDF attachment nor a usable
// source URL.
var ErrNoSource = errors.New("missing or invalid PDF attachment: no 'PDF' and no 'DOI/URL'")

// RecordStore is the record-store surface the pipeline drives.
type RecordStore interface {
	NewRecords(ctx context.Context) ([]airtable.Record, error)
	GetRecord(ctx context.Context, recordID string) (*airtable.Record, error)
	FindRecordByField(ctx context.Context, field, value string) (*airtable.Record, error)
	UpdateRecord(ctx context.Context, recordID string, fields map[string]any) error
	SetProcessingStatus(ctx context.Context, recordID, status, errorMessage string) error
	ClearExtractedFields(ctx context.Context) (int, error)
}

// DocumentResolver turns an attachment into an extracted document.
type DocumentResolver interface {
	Resolve(ctx context.Context, att document.Attachment) (*document.Document, error)
}

// Extractor runs field extraction over a segmented paper.
type Extractor interface {
	Process(ctx context.Context, sections segment.Sections, fullText, recordID string) (*fields.Result, error)
}

// Processor wires the collaborators into the per-record flow.
type Processor struct {
	store    RecordStore
	resolver DocumentResolver
	fields   Extractor
	reporter *status.Reporter
	ledger   *ledger.Ledger
	saveDir  string
	workers  int
}

// Option configures a Processor.
type Option func(*Processor)

// WithReporter sets the progress reporter.
func WithReporter(r *status.Reporter) Option {
	return func(p *Processor) {
		p.reporter = r
	}
}

// WithLedger records every run in the given ledger.
func WithLedger(l *ledger.Ledger) Option {
	return func(p *Processor) {
		p.ledger = l
	}
}

// WithSaveDir writes each record's section plaintext under dir.
func WithSaveDir(dir string) Option {
	return func(p *Processor) {
		p.saveDir = dir
	}
}

// WithWorkers bounds batch concurrency. The default processes records
// one at a time.
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewProcessor creates a record processor.
func NewProcessor(store RecordStore, resolver DocumentResolver, extractor Extractor, opts ...Option) *Processor {
	p := &Processor{
		store:    store,
		resolver: resolver,
		fields:   extractor,
		reporter: status.NewReporter(nil),
		workers:  1,
	}

	// Apply options
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ProcessRecord runs extraction for one fetched record and writes the
// results back, recording the run in the ledger. It does not touch the
// record's Processing Status.
func (p *Processor) ProcessRecord(ctx context.Context, rec *airtable.Record) error {
	var runID int64
	if p.ledger != nil {
		id, err := p.ledger.Start(rec.ID)
		if err != nil {
			slog.Warn("ledger: recording run start failed", "record", rec.ID, "error", err)
		} else {
			runID = id
		}
	}

	doi, usage, err := p.run(ctx, rec)

	if p.ledger != nil && runID != 0 {
		outcome := ledger.StatusSucceeded
		errText := ""
		if err != nil {
			outcome = ledger.StatusFailed
			errText = err.Error()
		}
		if ferr := p.ledger.Finish(runID, outcome, errText, doi, usage); ferr != nil {
			slog.Warn("ledger: recording run finish failed", "record", rec.ID, "error", ferr)
		}
	}

	return err
}

// run is the per-record flow, returning the detected DOI and token usage
// for ledger bookkeeping.
func (p *Processor) run(ctx context.Context, rec *airtable.Record) (string, llm.Usage, error) {
	recordID := rec.ID
	var usage llm.Usage

	hadUserURL := strings.TrimSpace(rec.StringField(airtable.FieldDOIURL)) != ""

	att, canonical, hadPDF := selectSource(rec)
	if att == nil {
		p.reporter.LogFailure(recordID, ErrNoSource.Error())
		return "", usage, ErrNoSource
	}

	p.reporter.LogProcessing(recordID, 0)

	doc, err := p.resolver.Resolve(ctx, *att)
	if err != nil {
		msg := fmt.Sprintf("PDF processing failed: %v", err)
		p.reporter.LogFailure(recordID, msg)
		return "", usage, fmt.Errorf("PDF processing failed: %w", err)
	}

	result := segment.Extract(doc)

	if p.saveDir != "" {
		if err := p.savePlaintext(recordID, result.Sections); err != nil {
			msg := fmt.Sprintf("PDF processing failed: %v", err)
			p.reporter.LogFailure(recordID, msg)
			return result.Metadata.DOI, usage, fmt.Errorf("PDF processing failed: %w", err)
		}
	}

	res, err := p.fields.Process(ctx, result.Sections, result.FullText, recordID)
	if err != nil {
		return result.Metadata.DOI, usage, err
	}
	usage = res.Usage

	updates := postprocessResults(res.Fields)

	// A caller-provided DOI/URL is never overwritten; a synthesized
	// canonical source URL only fills the gap.
	if hadUserURL {
		delete(updates, airtable.FieldDOIURL)
	} else if canonical != "" {
		if _, ok := updates[airtable.FieldDOIURL]; !ok {
			updates[airtable.FieldDOIURL] = canonical
		}
	}

	if len(updates) == 0 {
		p.reporter.LogFailure(recordID, "No fields extracted successfully")
		return result.Metadata.DOI, usage, errors.New("no fields extracted successfully")
	}

	if err := p.store.UpdateRecord(ctx, recordID, updates); err != nil {
		p.reporter.LogUpdateFailure(recordID)
		p.reporter.LogFailure(recordID, "Failed to update Airtable with extracted fields.")
		return result.Metadata.DOI, usage, fmt.Errorf("failed to update record with extracted fields: %w", err)
	}

	names := make([]string, 0, len(updates))
	for name := range updates {
		names = append(names, name)
	}
	sort.Strings(names)
	p.reporter.LogRecordUpdate(recordID, names, updates)

	if !hadPDF && att.URL != "" {
		backfill := map[string]any{
			airtable.FieldPDF: []any{map[string]any{"url": att.URL}},
		}
		if err := p.store.UpdateRecord(ctx, recordID, backfill); err != nil {
			p.reporter.LogFailure(recordID, fmt.Sprintf("Failed to backfill PDF attachment: %v", err))
		}
	}

	p.reporter.LogSuccess(recordID, res.Warnings)
	p.reporter.LogRecordUsage(recordID)
	return result.Metadata.DOI, usage, nil
}

// selectSource picks the document source for a record: the first PDF
// attachment, else the DOI/URL or Source URL field. For URL sources the
// canonical form worth storing back on the record is returned too.
func selectSource(rec *airtable.Record) (att *document.Attachment, canonical string, hadPDF bool) {
	atts := rec.Attachments(airtable.FieldPDF)
	if len(atts) > 0 {
		return &document.Attachment{URL: atts[0].URL}, "", true
	}

	source := rec.StringField(airtable.FieldDOIURL)
	if source == "" {
		source = rec.StringField(airtable.FieldSourceURL)
	}
	if strings.TrimSpace(source) == "" {
		return nil, "", false
	}

	canonical, fetchURL := document.CanonicalizeSource(source)
	return &document.Attachment{URL: fetchURL}, canonical, false
}

// ProcessManaged runs one record with Processing Status transitions:
// records already marked Processing are skipped, failures set Failed with
// the error text, and success sets Complete, noting a still-missing
// DOI/URL in the Error field.
func (p *Processor) ProcessManaged(ctx context.Context, rec *airtable.Record) error {
	recordID := rec.ID

	if rec.StringField(airtable.FieldProcessingStatus) == airtable.StatusProcessing {
		slog.Info("record already processing, skipping", "record", recordID)
		return nil
	}

	if err := p.store.SetProcessingStatus(ctx, recordID, airtable.StatusProcessing, ""); err != nil {
		return fmt.Errorf("marking record processing: %w", err)
	}

	if err := p.ProcessRecord(ctx, rec); err != nil {
		if serr := p.store.SetProcessingStatus(ctx, recordID, airtable.StatusFailed, err.Error()); serr != nil {
			slog.Warn("setting failed status", "record", recordID, "error", serr)
		}
		return err
	}

	note := ""
	updated, err := p.store.GetRecord(ctx, recordID)
	if err != nil {
		note = "DOI/URL not found"
	} else {
		doi := strings.TrimSpace(updated.StringField(airtable.FieldDOIURL))
		if doi == "" || strings.EqualFold(doi, "N/A") {
			note = "DOI/URL not found"
		}
	}
	if serr := p.store.SetProcessingStatus(ctx, recordID, airtable.StatusComplete, note); serr != nil {
		slog.Warn("setting complete status", "record", recordID, "error", serr)
	}
	return nil
}

// ProcessRecords runs a batch through ProcessManaged, continuing past
// per-record failures and returning the first one.
func (p *Processor) ProcessRecords(ctx context.Context, records []airtable.Record) error {
	if len(records) == 0 {
		slog.Info("no records to process")
		return nil
	}

	if p.workers <= 1 {
		var firstErr error
		for i := range records {
			if err := p.ProcessManaged(ctx, &records[i]); err != nil && firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		return firstErr
	}

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := range records {
		wg.Add(1)
		go func(rec *airtable.Record) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}
			if err := p.ProcessManaged(ctx, rec); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(&records[i])
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return firstErr
}

// ProcessNew processes every record that still needs extraction.
func (p *Processor) ProcessNew(ctx context.Context) error {
	records, err := p.store.NewRecords(ctx)
	if err != nil {
		return fmt.Errorf("fetching new records: %w", err)
	}
	return p.ProcessRecords(ctx, records)
}

// ProcessByID processes a single record by its record ID.
func (p *Processor) ProcessByID(ctx context.Context, recordID string) error {
	rec, err := p.store.GetRecord(ctx, recordID)
	if err != nil {
		return fmt.Errorf("fetching record %s: %w", recordID, err)
	}
	return p.ProcessManaged(ctx, rec)
}

// ProcessByName processes a single record addressed either by record ID
// or by its Study Short Name.
func (p *Processor) ProcessByName(ctx context.Context, name string) error {
	if strings.HasPrefix(name, "rec") {
		return p.ProcessByID(ctx, name)
	}
	rec, err := p.store.FindRecordByField(ctx, airtable.FieldStudyShortName, name)
	if err != nil {
		return fmt.Errorf("finding record %q: %w", name, err)
	}
	return p.ProcessManaged(ctx, rec)
}

// ProcessAll force-reprocesses everything: extracted fields are cleared
// first, then every record needing extraction is run.
func (p *Processor) ProcessAll(ctx context.Context) error {
	n, err := p.store.ClearExtractedFields(ctx)
	if err != nil {
		return fmt.Errorf("clearing extracted fields: %w", err)
	}
	slog.Info("cleared extracted fields", "records", n)
	return p.ProcessNew(ctx)
}

// postprocessResults joins list answers with newlines; everything else
// passes through unchanged.
func postprocessResults(results map[string]any) map[string]any {
	out := make(map[string]any, len(results))
	for k, v := range results {
		list, ok := v.([]any)
		if !ok {
			out[k] = v
			continue
		}
		parts := make([]string, len(list))
		for i, item := range list {
			if s, ok := item.(string); ok {
				parts[i] = s
			} else {
				parts[i] = fmt.Sprint(item)
			}
		}
		out[k] = strings.Join(parts, "\n")
	}
	return out
}

// savePlaintext writes the section map to <recordID>_plaintext.txt under
// the configured directory, one delimited block per zone.
func (p *Processor) savePlaintext(recordID string, sections segment.Sections) error {
	if err := os.MkdirAll(p.saveDir, 0755); err != nil {
		return err
	}

	var b strings.Builder
	for _, s := range []struct {
		name string
		text string
	}{
		{"PRE_INTRO", sections.PreIntro},
		{"ABSTRACT", sections.Abstract},
		{"MAIN_BODY", sections.MainBody},
		{"END_MATTER", sections.EndMatter},
	} {
		fmt.Fprintf(&b, "\n\n===== %s =====\n\n%s", s.name, s.text)
	}

	path := filepath.Join(p.saveDir, recordID+"_plaintext.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return err
	}
	slog.Info("sectioned plaintext saved", "path", path)
	return nil
}
