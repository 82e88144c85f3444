package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/digitalpromise/prism/internal/airtable"
	"github.com/digitalpromise/prism/internal/document"
	"github.com/digitalpromise/prism/internal/fields"
	"github.com/digitalpromise/prism/internal/ledger"
	"github.com/digitalpromise/prism/internal/llm"
	"github.com/digitalpromise/prism/internal/segment"
	"github.com/digitalpromise/prism/internal/status"
)

const samplePage = "A Study of Things\n" +
	"DOI: 10.5555/demo.42\n" +
	"Abstract\n" +
	"We study things carefully.\n" +
	"Introduction\n" +
	"The main body makes its case.\n" +
	"References\n" +
	"[1] Prior work."

type updateCall struct {
	recordID string
	fields   map[string]any
}

type statusCall struct {
	recordID string
	status   string
	note     string
}

type fakeStore struct {
	mu          sync.Mutex
	records     map[string]*airtable.Record
	newRecords  []airtable.Record
	updates     []updateCall
	statusCalls []statusCall
	finds       []string
	clears      int

	updateErr error
	failNth   int // 1-based update call that fails; 0 fails every call
}

func (s *fakeStore) NewRecords(ctx context.Context) ([]airtable.Record, error) {
	return s.newRecords, nil
}

func (s *fakeStore) GetRecord(ctx context.Context, recordID string) (*airtable.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok {
		return nil, airtable.ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) FindRecordByField(ctx context.Context, field, value string) (*airtable.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds = append(s.finds, field+"="+value)
	for _, rec := range s.records {
		if rec.StringField(field) == value {
			return rec, nil
		}
	}
	return nil, airtable.ErrNotFound
}

func (s *fakeStore) UpdateRecord(ctx context.Context, recordID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, updateCall{recordID: recordID, fields: fields})
	if s.updateErr != nil && (s.failNth == 0 || len(s.updates) == s.failNth) {
		return s.updateErr
	}
	return nil
}

func (s *fakeStore) SetProcessingStatus(ctx context.Context, recordID, st, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls = append(s.statusCalls, statusCall{recordID: recordID, status: st, note: note})
	return nil
}

func (s *fakeStore) ClearExtractedFields(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	return 3, nil
}

type fakeResolver struct {
	mu  sync.Mutex
	got []document.Attachment
	err error
}

func (r *fakeResolver) Resolve(ctx context.Context, att document.Attachment) (*document.Document, error) {
	r.mu.Lock()
	r.got = append(r.got, att)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return &document.Document{Pages: []string{samplePage}}, nil
}

type fakeExtractor struct {
	mu       sync.Mutex
	calls    int
	fullText string
	result   *fields.Result
	err      error
}

func (e *fakeExtractor) Process(ctx context.Context, _ segment.Sections, fullText, _ string) (*fields.Result, error) {
	e.mu.Lock()
	e.calls++
	e.fullText = fullText
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func extractionResult(extra map[string]any) *fields.Result {
	f := map[string]any{
		"Funding Source": "NSF",
		"Key Findings":   []any{"one", "two"},
	}
	for k, v := range extra {
		f[k] = v
	}
	return &fields.Result{
		Fields:   f,
		Warnings: map[string]string{},
		Usage:    llm.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
	}
}

func pdfRecord(id string) *airtable.Record {
	return &airtable.Record{
		ID: id,
		Fields: map[string]any{
			airtable.FieldPDF: []any{
				map[string]any{"url": "https://files.example/p.pdf", "filename": "p.pdf"},
			},
		},
	}
}

func testProcessor(store *fakeStore, resolver *fakeResolver, extractor *fakeExtractor, out *bytes.Buffer, opts ...Option) *Processor {
	opts = append([]Option{WithReporter(status.NewReporter(out))}, opts...)
	return NewProcessor(store, resolver, extractor, opts...)
}

func TestProcessRecordUpdatesFields(t *testing.T) {
	rec := pdfRecord("rec1")
	rec.Fields[airtable.FieldDOIURL] = "10.1234/user.1"

	store := &fakeStore{}
	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: extractionResult(map[string]any{"DOI/URL": "10.9999/model.1"})}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf)

	if err := p.ProcessRecord(context.Background(), rec); err != nil {
		t.Fatalf("ProcessRecord() error = %v", err)
	}

	if len(resolver.got) != 1 || resolver.got[0].URL != "https://files.example/p.pdf" {
		t.Errorf("resolver got %+v, want the PDF attachment URL", resolver.got)
	}
	if extractor.fullText == "" {
		t.Error("extractor received empty full text")
	}
	if len(store.updates) != 1 {
		t.Fatalf("got %d update calls, want 1", len(store.updates))
	}

	up := store.updates[0].fields
	if up["Funding Source"] != "NSF" {
		t.Errorf("Funding Source = %v, want NSF", up["Funding Source"])
	}
	if up["Key Findings"] != "one\ntwo" {
		t.Errorf("Key Findings = %v, want newline-joined list", up["Key Findings"])
	}
	if _, ok := up[airtable.FieldDOIURL]; ok {
		t.Error("DOI/URL was written despite a user-provided value")
	}
	if !strings.Contains(buf.String(), "✔ Success: Record rec1") {
		t.Errorf("output missing success line:\n%s", buf.String())
	}
}

func TestProcessRecordArxivSourceAndBackfill(t *testing.T) {
	rec := &airtable.Record{
		ID: "rec2",
		Fields: map[string]any{
			airtable.FieldDOIURL: "https://arxiv.org/abs/2101.00001",
		},
	}

	store := &fakeStore{}
	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: extractionResult(nil)}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf)

	if err := p.ProcessRecord(context.Background(), rec); err != nil {
		t.Fatalf("ProcessRecord() error = %v", err)
	}

	wantPDF := "https://arxiv.org/pdf/2101.00001.pdf"
	if len(resolver.got) != 1 || resolver.got[0].URL != wantPDF {
		t.Errorf("resolver got %+v, want fetch URL %s", resolver.got, wantPDF)
	}
	if len(store.updates) != 2 {
		t.Fatalf("got %d update calls, want fields then PDF backfill", len(store.updates))
	}
	if _, ok := store.updates[0].fields[airtable.FieldDOIURL]; ok {
		t.Error("DOI/URL was overwritten despite a user-provided value")
	}

	backfill, ok := store.updates[1].fields[airtable.FieldPDF].([]any)
	if !ok || len(backfill) != 1 {
		t.Fatalf("backfill update = %+v, want one PDF attachment", store.updates[1].fields)
	}
	att, _ := backfill[0].(map[string]any)
	if att["url"] != wantPDF {
		t.Errorf("backfill url = %v, want %s", att["url"], wantPDF)
	}
}

func TestProcessRecordSourceURLFillsDOIURL(t *testing.T) {
	rec := &airtable.Record{
		ID: "rec3",
		Fields: map[string]any{
			airtable.FieldSourceURL: "https://example.com/paper.pdf",
		},
	}

	store := &fakeStore{}
	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: extractionResult(nil)}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf)

	if err := p.ProcessRecord(context.Background(), rec); err != nil {
		t.Fatalf("ProcessRecord() error = %v", err)
	}
	if got := store.updates[0].fields[airtable.FieldDOIURL]; got != "https://example.com/paper.pdf" {
		t.Errorf("DOI/URL = %v, want the canonical source URL", got)
	}
}

func TestProcessRecordExtractedDOIURLNotOverwritten(t *testing.T) {
	rec := &airtable.Record{
		ID: "rec4",
		Fields: map[string]any{
			airtable.FieldSourceURL: "https://example.com/paper.pdf",
		},
	}

	store := &fakeStore{}
	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: extractionResult(map[string]any{"DOI/URL": "10.9999/model.1"})}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf)

	if err := p.ProcessRecord(context.Background(), rec); err != nil {
		t.Fatalf("ProcessRecord() error = %v", err)
	}
	if got := store.updates[0].fields[airtable.FieldDOIURL]; got != "10.9999/model.1" {
		t.Errorf("DOI/URL = %v, want the extracted value kept", got)
	}
}

func TestProcessRecordNoSource(t *testing.T) {
	rec := &airtable.Record{ID: "rec5", Fields: map[string]any{}}

	store := &fakeStore{}
	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: extractionResult(nil)}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf)

	err := p.ProcessRecord(context.Background(), rec)
	if !errors.Is(err, ErrNoSource) {
		t.Fatalf("ProcessRecord() error = %v, want ErrNoSource", err)
	}
	if len(resolver.got) != 0 {
		t.Error("resolver was called without a source")
	}
	if len(store.updates) != 0 {
		t.Error("record was updated without a source")
	}
	if !strings.Contains(buf.String(), "✖ Failure: Record rec5") {
		t.Errorf("output missing failure line:\n%s", buf.String())
	}
}

func TestProcessRecordResolveFailure(t *testing.T) {
	store := &fakeStore{}
	resolver := &fakeResolver{err: errors.New("fetch failed")}
	extractor := &fakeExtractor{result: extractionResult(nil)}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf)

	err := p.ProcessRecord(context.Background(), pdfRecord("rec6"))
	if err == nil || !strings.Contains(err.Error(), "PDF processing failed") {
		t.Fatalf("ProcessRecord() error = %v, want PDF processing failure", err)
	}
	if extractor.calls != 0 {
		t.Error("extractor ran despite a resolve failure")
	}
	if !strings.Contains(buf.String(), "PDF processing failed") {
		t.Errorf("output missing failure reason:\n%s", buf.String())
	}
}

func TestProcessRecordNoFieldsExtracted(t *testing.T) {
	store := &fakeStore{}
	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: &fields.Result{
		Fields:   map[string]any{},
		Warnings: map[string]string{},
	}}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf)

	err := p.ProcessRecord(context.Background(), pdfRecord("rec7"))
	if err == nil || !strings.Contains(err.Error(), "no fields extracted") {
		t.Fatalf("ProcessRecord() error = %v, want no-fields error", err)
	}
	if len(store.updates) != 0 {
		t.Errorf("got %d update calls, want none", len(store.updates))
	}
}

func TestProcessRecordUpdateFailure(t *testing.T) {
	store := &fakeStore{updateErr: errors.New("boom")}
	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: extractionResult(nil)}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf)

	err := p.ProcessRecord(context.Background(), pdfRecord("rec8"))
	if err == nil || !strings.Contains(err.Error(), "failed to update record with extracted fields") {
		t.Fatalf("ProcessRecord() error = %v, want update failure", err)
	}

	out := buf.String()
	if !strings.Contains(out, "[Airtable ERROR]") {
		t.Errorf("output missing Airtable error line:\n%s", out)
	}
	if !strings.Contains(out, "Failed to update Airtable with extracted fields.") {
		t.Errorf("output missing failure reason:\n%s", out)
	}
}

func TestProcessRecordBackfillFailureNonFatal(t *testing.T) {
	rec := &airtable.Record{
		ID: "rec9",
		Fields: map[string]any{
			airtable.FieldSourceURL: "https://example.com/paper.pdf",
		},
	}

	store := &fakeStore{updateErr: errors.New("boom"), failNth: 2}
	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: extractionResult(nil)}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf)

	if err := p.ProcessRecord(context.Background(), rec); err != nil {
		t.Fatalf("ProcessRecord() error = %v, want backfill failure ignored", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Failed to backfill PDF attachment") {
		t.Errorf("output missing backfill warning:\n%s", out)
	}
	if !strings.Contains(out, "✔ Success: Record rec9") {
		t.Errorf("output missing success line:\n%s", out)
	}
}

func TestProcessRecordSavesPlaintext(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "texts")

	store := &fakeStore{}
	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: extractionResult(nil)}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf, WithSaveDir(dir))

	if err := p.ProcessRecord(context.Background(), pdfRecord("rec10")); err != nil {
		t.Fatalf("ProcessRecord() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "rec10_plaintext.txt"))
	if err != nil {
		t.Fatalf("reading plaintext file: %v", err)
	}
	text := string(data)
	for _, zone := range []string{"PRE_INTRO", "ABSTRACT", "MAIN_BODY", "END_MATTER"} {
		if !strings.Contains(text, "===== "+zone+" =====") {
			t.Errorf("plaintext missing %s delimiter", zone)
		}
	}
	if !strings.Contains(text, "We study things carefully.") {
		t.Error("plaintext missing abstract text")
	}
}

func TestProcessManagedStatusTransitions(t *testing.T) {
	rec := pdfRecord("rec11")
	rec.Fields[airtable.FieldDOIURL] = "10.1234/user.1"

	store := &fakeStore{records: map[string]*airtable.Record{"rec11": rec}}
	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: extractionResult(nil)}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf)

	if err := p.ProcessManaged(context.Background(), rec); err != nil {
		t.Fatalf("ProcessManaged() error = %v", err)
	}

	want := []statusCall{
		{recordID: "rec11", status: airtable.StatusProcessing, note: ""},
		{recordID: "rec11", status: airtable.StatusComplete, note: ""},
	}
	if len(store.statusCalls) != len(want) {
		t.Fatalf("got %d status calls %v, want %d", len(store.statusCalls), store.statusCalls, len(want))
	}
	for i, w := range want {
		if store.statusCalls[i] != w {
			t.Errorf("status call %d = %+v, want %+v", i, store.statusCalls[i], w)
		}
	}
}

func TestProcessManagedNotesMissingDOI(t *testing.T) {
	for _, tt := range []struct {
		name string
		doi  any
	}{
		{"no value", nil},
		{"blank", "   "},
		{"not applicable", "N/A"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rec := pdfRecord("rec12")
			if tt.doi != nil {
				rec.Fields[airtable.FieldDOIURL] = tt.doi
			}

			store := &fakeStore{records: map[string]*airtable.Record{"rec12": rec}}
			resolver := &fakeResolver{}
			extractor := &fakeExtractor{result: extractionResult(nil)}
			var buf bytes.Buffer
			p := testProcessor(store, resolver, extractor, &buf)

			if err := p.ProcessManaged(context.Background(), rec); err != nil {
				t.Fatalf("ProcessManaged() error = %v", err)
			}

			last := store.statusCalls[len(store.statusCalls)-1]
			if last.status != airtable.StatusComplete || last.note != "DOI/URL not found" {
				t.Errorf("final status = %+v, want Complete with DOI/URL note", last)
			}
		})
	}
}

func TestProcessManagedSkipsInFlightRecord(t *testing.T) {
	rec := pdfRecord("rec13")
	rec.Fields[airtable.FieldProcessingStatus] = airtable.StatusProcessing

	store := &fakeStore{records: map[string]*airtable.Record{"rec13": rec}}
	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: extractionResult(nil)}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf)

	if err := p.ProcessManaged(context.Background(), rec); err != nil {
		t.Fatalf("ProcessManaged() error = %v", err)
	}
	if len(store.statusCalls) != 0 {
		t.Errorf("status calls %v, want none for a record already processing", store.statusCalls)
	}
	if len(resolver.got) != 0 {
		t.Error("resolver was called for a skipped record")
	}
}

func TestProcessManagedFailureSetsFailed(t *testing.T) {
	rec := &airtable.Record{ID: "rec14", Fields: map[string]any{}}

	store := &fakeStore{records: map[string]*airtable.Record{"rec14": rec}}
	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: extractionResult(nil)}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf)

	err := p.ProcessManaged(context.Background(), rec)
	if !errors.Is(err, ErrNoSource) {
		t.Fatalf("ProcessManaged() error = %v, want ErrNoSource", err)
	}

	last := store.statusCalls[len(store.statusCalls)-1]
	if last.status != airtable.StatusFailed {
		t.Errorf("final status = %+v, want Failed", last)
	}
	if !strings.Contains(last.note, "missing or invalid PDF attachment") {
		t.Errorf("failure note = %q, want the error text", last.note)
	}
}

func TestProcessRecordsContinuesPastFailures(t *testing.T) {
	broken := airtable.Record{ID: "rec15", Fields: map[string]any{}}
	good := *pdfRecord("rec16")

	store := &fakeStore{records: map[string]*airtable.Record{
		"rec15": &broken,
		"rec16": &good,
	}}
	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: extractionResult(nil)}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf)

	err := p.ProcessRecords(context.Background(), []airtable.Record{broken, good})
	if !errors.Is(err, ErrNoSource) {
		t.Fatalf("ProcessRecords() error = %v, want the first failure", err)
	}
	if len(store.updates) != 1 || store.updates[0].recordID != "rec16" {
		t.Errorf("updates = %+v, want rec16 still processed", store.updates)
	}
}

func TestProcessRecordsWorkerPool(t *testing.T) {
	var records []airtable.Record
	store := &fakeStore{records: map[string]*airtable.Record{}}
	for _, id := range []string{"recA", "recB", "recC", "recD", "recE"} {
		rec := pdfRecord(id)
		store.records[id] = rec
		records = append(records, *rec)
	}

	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: extractionResult(nil)}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf, WithWorkers(3))

	if err := p.ProcessRecords(context.Background(), records); err != nil {
		t.Fatalf("ProcessRecords() error = %v", err)
	}

	complete := 0
	for _, call := range store.statusCalls {
		if call.status == airtable.StatusComplete {
			complete++
		}
	}
	if complete != len(records) {
		t.Errorf("got %d completed records, want %d", complete, len(records))
	}
	if len(store.updates) != len(records) {
		t.Errorf("got %d update calls, want %d", len(store.updates), len(records))
	}
}

func TestProcessByName(t *testing.T) {
	byID := pdfRecord("recDirect")
	byName := pdfRecord("recNamed")
	byName.Fields[airtable.FieldStudyShortName] = "Alpha Study"

	store := &fakeStore{records: map[string]*airtable.Record{
		"recDirect": byID,
		"recNamed":  byName,
	}}
	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: extractionResult(nil)}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf)

	if err := p.ProcessByName(context.Background(), "recDirect"); err != nil {
		t.Fatalf("ProcessByName(record ID) error = %v", err)
	}
	if len(store.finds) != 0 {
		t.Error("record ID lookup went through the name search")
	}

	if err := p.ProcessByName(context.Background(), "Alpha Study"); err != nil {
		t.Fatalf("ProcessByName(short name) error = %v", err)
	}
	if len(store.finds) != 1 || store.finds[0] != "Study Short Name=Alpha Study" {
		t.Errorf("finds = %v, want one Study Short Name lookup", store.finds)
	}
}

func TestProcessByNameNotFound(t *testing.T) {
	store := &fakeStore{records: map[string]*airtable.Record{}}
	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: extractionResult(nil)}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf)

	err := p.ProcessByName(context.Background(), "Missing Study")
	if !errors.Is(err, airtable.ErrNotFound) {
		t.Fatalf("ProcessByName() error = %v, want ErrNotFound", err)
	}
}

func TestProcessAllClearsThenProcesses(t *testing.T) {
	rec := pdfRecord("rec17")
	store := &fakeStore{
		records:    map[string]*airtable.Record{"rec17": rec},
		newRecords: []airtable.Record{*rec},
	}
	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: extractionResult(nil)}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf)

	if err := p.ProcessAll(context.Background()); err != nil {
		t.Fatalf("ProcessAll() error = %v", err)
	}
	if store.clears != 1 {
		t.Errorf("ClearExtractedFields called %d times, want 1", store.clears)
	}
	if len(store.updates) != 1 {
		t.Errorf("got %d update calls, want the record reprocessed", len(store.updates))
	}
}

func TestProcessRecordLedger(t *testing.T) {
	led, err := ledger.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("ledger.Open() error = %v", err)
	}
	t.Cleanup(func() { led.Close() })

	store := &fakeStore{}
	resolver := &fakeResolver{}
	extractor := &fakeExtractor{result: extractionResult(nil)}
	var buf bytes.Buffer
	p := testProcessor(store, resolver, extractor, &buf, WithLedger(led))

	if err := p.ProcessRecord(context.Background(), pdfRecord("rec18")); err != nil {
		t.Fatalf("ProcessRecord() error = %v", err)
	}

	runs, err := led.Recent(1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	run := runs[0]
	if run.RecordID != "rec18" || run.Status != ledger.StatusSucceeded {
		t.Errorf("run = %+v, want rec18 succeeded", run)
	}
	if run.TotalTokens != 120 {
		t.Errorf("TotalTokens = %d, want 120", run.TotalTokens)
	}
	if run.DOI != "10.5555/demo.42" {
		t.Errorf("DOI = %q, want the detected DOI", run.DOI)
	}

	if err := p.ProcessRecord(context.Background(), &airtable.Record{ID: "rec19", Fields: map[string]any{}}); !errors.Is(err, ErrNoSource) {
		t.Fatalf("ProcessRecord() error = %v, want ErrNoSource", err)
	}
	runs, err = led.Recent(1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if runs[0].Status != ledger.StatusFailed || !strings.Contains(runs[0].Error, "missing or invalid") {
		t.Errorf("failed run = %+v, want Failed with the error text", runs[0])
	}
}

func TestPostprocessResults(t *testing.T) {
	got := postprocessResults(map[string]any{
		"list":   []any{"a", "b"},
		"mixed":  []any{"a", float64(3)},
		"string": "kept",
		"nil":    nil,
	})

	if got["list"] != "a\nb" {
		t.Errorf("list = %v, want newline-joined", got["list"])
	}
	if got["mixed"] != "a\n3" {
		t.Errorf("mixed = %v, want stringified items", got["mixed"])
	}
	if got["string"] != "kept" {
		t.Errorf("string = %v, want passthrough", got["string"])
	}
	if v, ok := got["nil"]; !ok || v != nil {
		t.Errorf("nil entry = %v (present %v), want kept as nil", v, ok)
	}
}
