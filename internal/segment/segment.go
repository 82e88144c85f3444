// Package segment splits a paper's extracted text into the four zones
// consumed by field extraction (pre-intro, abstract, main body, end matter)
// and detects bibliographic metadata along the way.
package segment

import (
	"strings"

	"github.com/digitalpromise/prism/internal/document"
)

// Sections holds the four assembled zone texts.
type Sections struct {
	PreIntro  string `json:"pre_intro"`
	Abstract  string `json:"abstract"`
	MainBody  string `json:"main_body"`
	EndMatter string `json:"end_matter"`
}

// ByName returns the named zone's text, or "" for an unknown name.
func (s Sections) ByName(name string) string {
	switch name {
	case "pre_intro":
		return s.PreIntro
	case "abstract":
		return s.Abstract
	case "main_body":
		return s.MainBody
	case "end_matter":
		return s.EndMatter
	}
	return ""
}

// Result is the segmentation output for one document. FullText is the
// untouched page concatenation so downstream extraction can fall back to
// it when a zone comes up empty.
type Result struct {
	Sections Sections `json:"sections"`
	FullText string   `json:"full_text"`
	Metadata Metadata `json:"-"`
}

// Extract segments a resolved document. It never fails: when no boundary
// headings are found the partitioner degrades to its documented fallbacks,
// and every metadata detector is optional, so empty or unstructured input
// still yields a complete result.
func Extract(d *document.Document) *Result {
	fullText := d.Text()
	lines := SplitLines(fullText)
	bounds := LocateBoundaries(lines)
	z := splitZones(lines, bounds)
	meta := DetectMetadata(d, fullText, z.preIntro)

	preIntro := strings.TrimSpace(meta.Block() + strings.Join(z.preIntro, "\n"))
	if preIntro == "" {
		preIntro = fullText
	}

	return &Result{
		Sections: Sections{
			PreIntro:  preIntro,
			Abstract:  joinAbstract(z.abstract),
			MainBody:  strings.TrimSpace(strings.Join(z.mainBody, "\n")),
			EndMatter: strings.TrimSpace(strings.Join(z.endMatter, "\n")),
		},
		FullText: fullText,
		Metadata: meta,
	}
}

// joinAbstract flattens the abstract lines into one space-joined
// paragraph, dropping blanks.
func joinAbstract(lines []string) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		if s := strings.TrimSpace(line); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
