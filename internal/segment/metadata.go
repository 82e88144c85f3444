package segment

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/digitalpromise/prism/internal/document"
)

const (
	doiURLBase   = "https://doi.org/"
	arxivURLBase = "https://arxiv.org/abs/"
)

var (
	yearRe   = regexp.MustCompile(`(20\d{2}|19\d{2})`)
	outletRe = regexp.MustCompile(`(?i)publication in ([A-Za-z &()\.\-]+)`)
	doiRe    = regexp.MustCompile(`\b10\.\d{4,9}/[-._;()/:A-Za-z0-9]+\b`)
	arxivRe  = regexp.MustCompile(`(?i)arxiv[:\s]*(\d{4}\.\d{4,5}(?:v\d+)?)`)
)

// yearProperties is the priority order of document info keys consulted for
// the publication year.
var yearProperties = []string{"CreationDate", "ModDate"}

// openAccessMarkers are license phrases whose presence anywhere in the
// document marks it open access. Matched case-insensitively as substrings.
var openAccessMarkers = []string{
	"creative commons",
	"cc by",
	"cc-by",
	"open access article",
	"open-access article",
	"open access",
	"distributed under the terms of the",
	"this is an open access article",
	"open access funded",
	"public domain",
	"u.s. government work",
}

// Metadata holds the best-effort bibliographic detections for a paper.
// Zero-valued fields mean the corresponding detector found nothing.
type Metadata struct {
	Year       string
	Outlet     string
	DOI        string
	ArxivID    string
	OpenAccess bool
}

// DetectMetadata runs the independent detectors over a document. The DOI
// and arXiv scans are confined to the safe zone (front matter, first page
// text, first-page link targets) so identifiers of cited works in the
// references cannot leak in. The open access scan covers the whole text
// since license statements can appear anywhere, including end matter.
func DetectMetadata(d *document.Document, fullText string, preIntro []string) Metadata {
	var meta Metadata

	for _, key := range yearProperties {
		val := d.Info[key]
		if val == "" {
			continue
		}
		if m := yearRe.FindString(val); m != "" {
			meta.Year = m
			break
		}
	}

	preText := strings.Join(preIntro, "\n")
	if m := outletRe.FindStringSubmatch(preText); m != nil {
		meta.Outlet = strings.TrimSpace(m[1])
	}

	zone := safeZone(d, preIntro)
	meta.DOI = doiRe.FindString(zone)
	if m := arxivRe.FindStringSubmatch(zone); m != nil {
		meta.ArxivID = m[1]
	}

	scan := strings.ToLower(preText + "\n" + fullText)
	for _, marker := range openAccessMarkers {
		if strings.Contains(scan, marker) {
			meta.OpenAccess = true
			break
		}
	}
	// arXiv postings are open by convention.
	if strings.HasPrefix(meta.Outlet, "arXiv") {
		meta.OpenAccess = true
	}
	return meta
}

// safeZone assembles the restricted text used for identifier detection.
func safeZone(d *document.Document, preIntro []string) string {
	var chunks []string
	if len(preIntro) > 0 {
		chunks = append(chunks, strings.Join(preIntro, "\n"))
	}
	if len(d.Pages) > 0 {
		chunks = append(chunks, d.Pages[0])
		chunks = append(chunks, d.FirstPageLinks...)
	}
	return strings.Join(chunks, "\n")
}

// Block renders the metadata as the line block prefixed to the pre-intro
// section. Only the open access line and the arXiv line (a "not detected"
// notice when absent) are unconditional; every other field is omitted when
// its detector came up empty. The block always ends with a newline.
func (m Metadata) Block() string {
	var lines []string
	if m.Year != "" {
		lines = append(lines, fmt.Sprintf("Detected Publication Year: %s", m.Year))
	}
	if m.Outlet != "" {
		lines = append(lines, fmt.Sprintf("Detected Publication Outlet: %s", m.Outlet))
	}
	if m.DOI != "" {
		lines = append(lines,
			fmt.Sprintf("Detected DOI: %s", m.DOI),
			fmt.Sprintf("Detected DOI URL: %s", m.DOIURL()))
	}
	if m.ArxivID != "" {
		lines = append(lines,
			fmt.Sprintf("Detected arXiv ID: %s", m.ArxivID),
			fmt.Sprintf("Detected arXiv URL: %s", m.ArxivURL()))
	} else {
		lines = append(lines, "No arXiv ID detected.")
	}
	access := "No"
	if m.OpenAccess {
		access = "Yes"
	}
	lines = append(lines, fmt.Sprintf("Detected Open Access: %s", access))
	return strings.Join(lines, "\n") + "\n"
}

// DOIURL returns the resolver URL for the detected DOI, or "" when none
// was found.
func (m Metadata) DOIURL() string {
	if m.DOI == "" {
		return ""
	}
	return doiURLBase + m.DOI
}

// ArxivURL returns the abstract page URL for the detected arXiv ID, or ""
// when none was found.
func (m Metadata) ArxivURL() string {
	if m.ArxivID == "" {
		return ""
	}
	return arxivURLBase + m.ArxivID
}
