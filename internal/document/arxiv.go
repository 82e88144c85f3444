package document

import "strings"

// CanonicalizeSource normalizes a record's source URL for fetching.
// arXiv abstract-page URLs are rewritten to their PDF counterparts so the
// resolver downloads the document instead of the HTML landing page; the
// returned canonical form is the abstract-page URL worth storing back on
// the record. All other URLs pass through unchanged.
func CanonicalizeSource(url string) (canonical, fetchURL string) {
	url = strings.TrimSpace(url)
	if !strings.Contains(url, "arxiv.org/abs/") {
		return url, url
	}

	id := url
	id = strings.TrimRight(id, "/")
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}

	return "https://arxiv.org/abs/" + id, "https://arxiv.org/pdf/" + id + ".pdf"
}
