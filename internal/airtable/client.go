// Package airtable is a rate-limited client for the Airtable REST API,
// scoped to the single papers table prism works against.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the Airtable REST API base URL.
	BaseURL = "https://api.airtable.com/v0"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second

	// RateLimit is 5 requests per second per Airtable documentation.
	RateLimit = 5.0

	// DefaultRetries is how many times retryable requests are attempted.
	DefaultRetries = 3

	// DefaultBackoff is the initial delay between retry attempts; it
	// doubles on each subsequent attempt.
	DefaultBackoff = 1 * time.Second

	// PageSize is the Airtable list page size.
	PageSize = 100
)

// Selection formulas for list operations.
const (
	// FormulaNeedsProcessing selects records that have a PDF but no
	// extracted summary fields yet.
	FormulaNeedsProcessing = "AND({PDF}, NOT({Main Outcome Statement}), NOT({Findings/Outcomes}))"

	// FormulaHasPDF selects every record carrying a PDF attachment.
	FormulaHasPDF = "NOT({PDF} = '')"
)

// Client is a rate-limited HTTP client for one Airtable base and table.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	baseURL    string
	baseID     string
	table      string
	retries    int
	backoff    time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authenticated requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithRetries sets how many attempts retryable requests get.
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the initial delay between retry attempts.
func WithBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.backoff = d
	}
}

// NewClient creates a client for the given base and table.
func NewClient(baseID, table string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		baseID:     baseID,
		table:      table,
		retries:    DefaultRetries,
		backoff:    DefaultBackoff,
	}

	// Check for API key in environment
	if key := os.Getenv("AIRTABLE_API_KEY"); key != "" {
		c.apiKey = key
	}

	// Apply options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// tableURL returns the REST endpoint for the table, optionally extended
// with a record ID.
func (c *Client) tableURL(recordID string) string {
	u := fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(c.table))
	if recordID != "" {
		u += "/" + recordID
	}
	return u
}

// retryableStatusCode reports whether a status code warrants a retry.
func retryableStatusCode(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// errorFromResponse maps an Airtable error response to a typed error.
func errorFromResponse(status int, body []byte) error {
	if status == 401 || status == 403 {
		return fmt.Errorf("%w: status %d", ErrAuthError, status)
	}
	if status == 429 {
		return fmt.Errorf("%w: status %d", ErrRateLimited, status)
	}

	apiErr := &APIError{StatusCode: status, Message: fmt.Sprintf("HTTP %d", status)}

	// Airtable returns either {"error": {"type": ..., "message": ...}}
	// or {"error": "NOT_FOUND"}.
	var wrapper struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && len(wrapper.Error) > 0 {
		var detail struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(wrapper.Error, &detail); err == nil && (detail.Type != "" || detail.Message != "") {
			apiErr.Type = detail.Type
			if detail.Message != "" {
				apiErr.Message = detail.Message
			}
		} else {
			var name string
			if err := json.Unmarshal(wrapper.Error, &name); err == nil && name != "" {
				apiErr.Type = name
			}
		}
	}
	return apiErr
}

// doJSON performs a request with rate limiting and bounded retry, and
// decodes the JSON response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, query url.Values, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
	}
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff * (1 << (attempt - 1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %v", ErrNetworkError, err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: reading response: %v", ErrNetworkError, err)
			continue
		}

		if retryableStatusCode(resp.StatusCode) {
			lastErr = errorFromResponse(resp.StatusCode, respBody)
			continue
		}
		if resp.StatusCode >= 400 {
			return errorFromResponse(resp.StatusCode, respBody)
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return nil
	}
	return lastErr
}

// listPage fetches one page of records.
func (c *Client) listPage(ctx context.Context, formula, offset string, maxRecords int) (*recordsPage, error) {
	query := url.Values{}
	query.Set("pageSize", strconv.Itoa(PageSize))
	if formula != "" {
		query.Set("filterByFormula", formula)
	}
	if offset != "" {
		query.Set("offset", offset)
	}
	if maxRecords > 0 {
		query.Set("maxRecords", strconv.Itoa(maxRecords))
	}

	var page recordsPage
	if err := c.doJSON(ctx, http.MethodGet, c.tableURL(""), query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListRecords fetches every record matching the formula, following
// pagination. An empty formula fetches the whole table.
func (c *Client) ListRecords(ctx context.Context, formula string) ([]Record, error) {
	var records []Record
	offset := ""
	for {
		page, err := c.listPage(ctx, formula, offset, 0)
		if err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

// NewRecords fetches records that have a PDF attachment but no extracted
// summary fields yet.
func (c *Client) NewRecords(ctx context.Context) ([]Record, error) {
	return c.ListRecords(ctx, FormulaNeedsProcessing)
}

// GetRecord fetches a single record by ID.
func (c *Client) GetRecord(ctx context.Context, recordID string) (*Record, error) {
	var rec Record
	if err := c.doJSON(ctx, http.MethodGet, c.tableURL(recordID), nil, nil, &rec); err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, recordID)
		}
		return nil, err
	}
	return &rec, nil
}

// FindRecordByField looks up the first record whose field equals value.
// Returns ErrNotFound when nothing matches.
func (c *Client) FindRecordByField(ctx context.Context, field, value string) (*Record, error) {
	escaped := strings.ReplaceAll(value, `'`, `\'`)
	formula := fmt.Sprintf("{%s} = '%s'", field, escaped)

	page, err := c.listPage(ctx, formula, "", 1)
	if err != nil {
		return nil, err
	}
	if len(page.Records) == 0 {
		return nil, fmt.Errorf("%w: %s = %q", ErrNotFound, field, value)
	}
	return &page.Records[0], nil
}

// UpdateRecord applies field updates to a record.
func (c *Client) UpdateRecord(ctx context.Context, recordID string, fields map[string]any) error {
	payload := map[string]any{"fields": fields}
	return c.doJSON(ctx, http.MethodPatch, c.tableURL(recordID), nil, payload, nil)
}

// SetProcessingStatus writes the Processing Status field, setting or
// clearing the Error field alongside it.
func (c *Client) SetProcessingStatus(ctx context.Context, recordID, status, errorMessage string) error {
	fields := map[string]any{FieldProcessingStatus: status}
	if errorMessage != "" {
		fields[FieldError] = errorMessage
	} else {
		fields[FieldError] = nil
	}
	return c.UpdateRecord(ctx, recordID, fields)
}

// ClearExtractedFields blanks every non-PDF field on every record that
// has a PDF, forcing reprocessing from scratch. Returns how many records
// were cleared.
func (c *Client) ClearExtractedFields(ctx context.Context) (int, error) {
	cleared := 0
	offset := ""
	for {
		page, err := c.listPage(ctx, FormulaHasPDF, offset, 0)
		if err != nil {
			return cleared, err
		}
		if len(page.Records) == 0 {
			return cleared, nil
		}

		for _, rec := range page.Records {
			fields := make(map[string]any, len(rec.Fields))
			for name := range rec.Fields {
				if name == FieldPDF {
					continue
				}
				fields[name] = nil
			}
			if err := c.UpdateRecord(ctx, rec.ID, fields); err != nil {
				return cleared, fmt.Errorf("clearing record %s: %w", rec.ID, err)
			}
			cleared++
		}

		if page.Offset == "" {
			return cleared, nil
		}
		offset = page.Offset
	}
}
