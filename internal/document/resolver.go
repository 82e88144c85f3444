package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

const (
	// DefaultTimeout bounds a single download attempt.
	DefaultTimeout = 10 * time.Second

	// DefaultRetries is the number of download attempts before giving up.
	DefaultRetries = 3

	// DefaultBackoff is the delay before the second attempt; it doubles
	// after every further failure.
	DefaultBackoff = 1 * time.Second
)

// ErrInvalidAttachment indicates an attachment carrying neither a path nor a URL.
var ErrInvalidAttachment = errors.New("invalid attachment: no path or url")

// FetchError reports a download that failed after all retry attempts.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to download PDF from %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Attachment references a paper source: a local file path or a remote URL.
// A URL naming an existing local file is opened locally, since records
// sometimes carry mirrored file paths in the url slot.
type Attachment struct {
	Path string `json:"path,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Resolver loads attachments into Documents.
type Resolver struct {
	httpClient *http.Client
	retries    int
	backoff    time.Duration
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ResolverOption {
	return func(r *Resolver) {
		r.httpClient = hc
	}
}

// WithRetries sets the number of download attempts.
func WithRetries(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.retries = n
		}
	}
}

// WithBackoff sets the base delay between download attempts.
func WithBackoff(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.backoff = d
	}
}

// NewResolver creates a Resolver with bounded-retry downloading.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		retries:    DefaultRetries,
		backoff:    DefaultBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve loads the attachment's PDF and extracts its content. The
// underlying file handle is released before Resolve returns on every path,
// including decode failures.
func (r *Resolver) Resolve(ctx context.Context, att Attachment) (*Document, error) {
	switch {
	case att.Path != "":
		return readFile(att.Path)
	case att.URL != "":
		if _, err := os.Stat(att.URL); err == nil {
			return readFile(att.URL)
		}
		data, err := r.fetch(ctx, att.URL)
		if err != nil {
			return nil, err
		}
		return readBytes(data)
	default:
		return nil, ErrInvalidAttachment
	}
}

// fetch downloads a URL with bounded retry and exponential backoff.
func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < r.retries; attempt++ {
		if attempt > 0 {
			delay := r.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		data, err := r.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, &FetchError{URL: url, Attempts: r.retries, Err: lastErr}
}

func (r *Resolver) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func readFile(path string) (*Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return extract(reader), nil
}

func readBytes(data []byte) (*Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reading PDF: %w", err)
	}
	return extract(reader), nil
}

// extract pulls per-page text, info properties, and first-page links out of
// an open reader. Pages that fail to decode contribute empty text rather
// than failing the document.
func extract(reader *pdf.Reader) *Document {
	doc := &Document{Info: map[string]string{}}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			doc.Pages = append(doc.Pages, "")
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			text = ""
		}
		doc.Pages = append(doc.Pages, text)

		if i == 1 {
			doc.FirstPageLinks = pageLinks(page)
		}
	}

	info := reader.Trailer().Key("Info")
	for _, key := range []string{"CreationDate", "ModDate"} {
		if v := info.Key(key); v.Kind() == pdf.String {
			doc.Info[key] = v.RawString()
		}
	}
	return doc
}

// pageLinks collects the URI targets of a page's link annotations.
func pageLinks(page pdf.Page) []string {
	annots := page.V.Key("Annots")
	if annots.Kind() != pdf.Array {
		return nil
	}

	var links []string
	for i := 0; i < annots.Len(); i++ {
		annot := annots.Index(i)
		if annot.Kind() != pdf.Dict {
			continue
		}
		action := annot.Key("A")
		if action.Kind() != pdf.Dict {
			continue
		}
		uri := action.Key("URI")
		if uri.Kind() != pdf.String {
			continue
		}
		if target := strings.TrimSpace(uri.RawString()); target != "" {
			links = append(links, target)
		}
	}
	return links
}
