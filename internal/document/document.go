// Package document resolves paper attachments to their extracted content.
package document

import "strings"

// Document is the extracted content of one paper: per-page plain text, the
// PDF info dictionary properties relevant to metadata detection, and the
// first page's outbound link targets. A Document is produced once by a
// Resolver and never mutated afterwards.
type Document struct {
	Pages          []string
	Info           map[string]string
	FirstPageLinks []string
}

// Text returns the full document text, pages joined by newlines.
func (d *Document) Text() string {
	return strings.Join(d.Pages, "\n")
}
