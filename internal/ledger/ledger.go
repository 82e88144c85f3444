// Package ledger keeps a local SQLite history of processing runs: one row
// per attempt with outcome, detected DOI, and token usage.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/digitalpromise/prism/internal/llm"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one processing attempt.
type Run struct {
	ID               int64     `json:"id"`
	RecordID         string    `json:"record_id"`
	Status           string    `json:"status"`
	Error            string    `json:"error,omitempty"`
	DOI              string    `json:"doi,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// Totals aggregates the ledger history.
type Totals struct {
	Runs             int `json:"runs"`
	Succeeded        int `json:"succeeded"`
	Failed           int `json:"failed"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Ledger wraps the SQLite run history.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at the given path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			doi TEXT,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			finished_at INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_runs_record ON runs(record_id);
	`

	_, err := db.Exec(schema)
	return err
}

// Start records the beginning of a run and returns its id.
func (l *Ledger) Start(recordID string) (int64, error) {
	res, err := l.db.Exec(`
		INSERT INTO runs (record_id, status, started_at)
		VALUES (?, ?, ?)
	`, recordID, StatusRunning, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("recording run start: %w", err)
	}
	return res.LastInsertId()
}

// Finish records the outcome of a run.
func (l *Ledger) Finish(runID int64, status, errText, doi string, usage llm.Usage) error {
	res, err := l.db.Exec(`
		UPDATE runs
		SET status = ?, error = ?, doi = ?,
			prompt_tokens = ?, completion_tokens = ?, total_tokens = ?,
			finished_at = ?
		WHERE id = ?
	`, status, nullable(errText), nullable(doi),
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens,
		time.Now().Unix(), runID)
	if err != nil {
		return fmt.Errorf("recording run finish: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %d not found", runID)
	}
	return nil
}

// Recent returns the most recent runs, newest first. A non-positive limit
// defaults to 20.
func (l *Ledger) Recent(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.Query(`
		SELECT id, record_id, status, error, doi,
			prompt_tokens, completion_tokens, total_tokens,
			started_at, finished_at
		FROM runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var errText, doi sql.NullString
		var started int64
		var finished sql.NullInt64
		err := rows.Scan(&r.ID, &r.RecordID, &r.Status, &errText, &doi,
			&r.PromptTokens, &r.CompletionTokens, &r.TotalTokens,
			&started, &finished)
		if err != nil {
			return nil, err
		}
		r.Error = errText.String
		r.DOI = doi.String
		r.StartedAt = time.Unix(started, 0).UTC()
		if finished.Valid {
			r.FinishedAt = time.Unix(finished.Int64, 0).UTC()
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Totals returns run counts and token sums across the whole history.
func (l *Ledger) Totals() (*Totals, error) {
	var t Totals
	err := l.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(completion_tokens), 0),
			COALESCE(SUM(total_tokens), 0)
		FROM runs
	`, StatusSucceeded, StatusFailed).Scan(
		&t.Runs, &t.Succeeded, &t.Failed,
		&t.PromptTokens, &t.CompletionTokens, &t.TotalTokens,
	)
	if err != nil {
		return nil, fmt.Errorf("summing runs: %w", err)
	}
	return &t, nil
}

// nullable converts a string to sql.NullString, treating empty as NULL.
func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
