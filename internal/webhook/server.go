// Package webhook serves the record-processing API: an authenticated
// queue endpoint plus status and health probes. Accepted records are
// processed in the background by a bounded worker pool.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/digitalpromise/prism/internal/airtable"
)

// DefaultWorkers bounds how many records are processed concurrently.
const DefaultWorkers = 10

// StatusReader fetches a record to answer status queries.
type StatusReader interface {
	GetRecord(ctx context.Context, recordID string) (*airtable.Record, error)
}

// ProcessFunc runs managed extraction for one record ID.
type ProcessFunc func(ctx context.Context, recordID string) error

// Server queues webhook-submitted records for processing.
type Server struct {
	secret  string
	store   StatusReader
	process ProcessFunc

	sem      chan struct{}
	wg       sync.WaitGroup
	jobCtx   context.Context
	stopJobs context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// WithWorkers sets the background worker count.
func WithWorkers(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sem = make(chan struct{}, n)
		}
	}
}

// NewServer creates a webhook server. Requests must present secret as
// their API token; process is invoked once per accepted record.
func NewServer(secret string, store StatusReader, process ProcessFunc, opts ...Option) *Server {
	s := &Server{
		secret:  secret,
		store:   store,
		process: process,
		sem:     make(chan struct{}, DefaultWorkers),
	}
	s.jobCtx, s.stopJobs = context.WithCancel(context.Background())

	// Apply options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler returns the routed HTTP handler with logging and panic
// recovery applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("GET /status/{id}", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = recoveryMiddleware(handler)
	return handler
}

// Close waits for queued jobs to finish, abandoning them when ctx
// expires.
func (s *Server) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.stopJobs()
		return ctx.Err()
	}
}

type processRequest struct {
	RecordID string `json:"record_id"`
	Token    string `json:"token"`
}

// POST /process
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = processRequest{}
	}

	if req.RecordID == "" {
		writeError(w, http.StatusBadRequest, "Missing record_id")
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Token), []byte(s.secret)) != 1 {
		writeError(w, http.StatusForbidden, "Invalid API token")
		return
	}

	s.enqueue(req.RecordID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

// GET /status/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	recordID := r.PathValue("id")

	st := "Unknown"
	if rec, err := s.store.GetRecord(r.Context(), recordID); err == nil {
		if v := rec.StringField(airtable.FieldProcessingStatus); v != "" {
			st = v
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"record_id": recordID,
		"status":    st,
	})
}

// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) enqueue(recordID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.sem <- struct{}{}
		defer func() { <-s.sem }()

		if s.jobCtx.Err() != nil {
			return
		}

		slog.Info("webhook: processing record", "record", recordID)
		if err := s.process(s.jobCtx, recordID); err != nil {
			slog.Error("webhook: record processing failed", "record", recordID, "error", err)
			return
		}
		slog.Info("webhook: record processed", "record", recordID)
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
