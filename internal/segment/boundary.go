package segment

import "regexp"

// Named boundary searches understood by FindBoundary.
const (
	BoundaryAbstract     = "abstract"
	BoundaryIntroduction = "introduction"
	BoundaryEndMatter    = "end_matter"
	BoundaryKeywords     = "keywords"
)

// Heading pattern tables. Word-based patterns are case-insensitive so they
// match both line views; the structural fallbacks in sectionStartPatterns
// stay case-sensitive because letter case is the signal there. Within a
// table the order is priority order, but the first matching line always
// wins over pattern priority.

var abstractPatterns = compile(
	`(?i)^abstract[:\s]*$`,
	`(?i)^abstract[\s\x{2013}\x{2014}-].+`,
	`(?i)^summary[:\s]*$`,
	`(?i)^={2,}\s*abstract\s*={2,}$`,
	`(?i)^abstract\s*[:\-\x{2013}\x{2014}]\s*.+$`,
	`(?i)^summary\s*[:\-\x{2013}\x{2014}]\s*.+$`,
	`(?i)^#+\s*abstract\s*$`,
	`(?i)^\*\*abstract\*\*$`,
)

var introPatterns = compile(
	`(?i)^[0-9]+\.?\s*introduction$`,
	`(?i)^[ivxlcdm]+\.?\s*introduction$`,
	`(?i)^section\s*[0-9]+[:.]?\s*introduction$`,
	`(?i)^introduction$`,
	`(?i)^background$`,
	`(?i)^={2,}\s*introduction\s*={2,}$`,
)

var endMatterPatterns = compile(
	`(?i)^references$`,
	`(?i)^reference$`,
	`(?i)^literature\s+cited$`,
	`(?i)^works\s+cited$`,
	`(?i)^bibliography$`,
	`(?i)^acknowledg(?:ements)?$`,
	`(?i)^appendix$`,
	`(?i)^supplementary$`,
	`(?i)^data\s+availability$`,
	`(?i)^conflicts\s+of\s+interest$`,
	`(?i)^funding$`,
	`(?i)^={2,}\s*(?:references|bibliography|acknowledg|appendix|supplementary)\s*={2,}$`,
)

var keywordPatterns = compile(
	`(?i)^keywords?\b`,
	`(?i)^author\s+keywords?\b`,
	`(?i)^key\s*words?\b`,
	`(?i)^index\s+terms?\b`,
	`(?i)^jel\s+classification\b`,
	`(?i)^msc\s+classification\b`,
)

// sectionStartPatterns matches lines opening a new numbered, roman-numeral
// or all-caps section. Used only as the last-resort bound on the abstract
// when no keywords or introduction heading exists.
var sectionStartPatterns = compile(
	`^[0-9]+\s*[\.)]?\s+[A-Z].*`,
	`^[IVXLCDM]+\s*[\.)]?\s+[A-Z].*`,
	`^[A-Z][A-Z\s]{3,}$`,
)

// boundaryPatterns maps each boundary name to its ordered heading table.
// New publisher-specific heading variants belong here, not in the
// partition logic.
var boundaryPatterns = map[string][]*regexp.Regexp{
	BoundaryAbstract:     abstractPatterns,
	BoundaryIntroduction: introPatterns,
	BoundaryEndMatter:    endMatterPatterns,
	BoundaryKeywords:     keywordPatterns,
}

func compile(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

// LineIndex is the result of a boundary search. Found reports whether any
// line matched; Pos is only meaningful when it did.
type LineIndex struct {
	Pos   int
	Found bool
}

// FindBoundary returns the first line whose raw or normalized form matches
// any pattern registered for the named boundary.
func FindBoundary(lines *Lines, boundary string) LineIndex {
	return findIndex(lines, boundaryPatterns[boundary])
}

// findIndex scans lines in document order. The first line matching any
// pattern wins regardless of which pattern matched it.
func findIndex(lines *Lines, patterns []*regexp.Regexp) LineIndex {
	for i := range lines.Raw {
		for _, pat := range patterns {
			if pat.MatchString(lines.Raw[i]) || pat.MatchString(lines.Norm[i]) {
				return LineIndex{Pos: i, Found: true}
			}
		}
	}
	return LineIndex{}
}

// Boundaries holds the three top-level boundary positions for a document.
type Boundaries struct {
	Abstract LineIndex
	Intro    LineIndex
	End      LineIndex
}

// LocateBoundaries runs the three top-level heading searches.
func LocateBoundaries(lines *Lines) Boundaries {
	return Boundaries{
		Abstract: FindBoundary(lines, BoundaryAbstract),
		Intro:    FindBoundary(lines, BoundaryIntroduction),
		End:      FindBoundary(lines, BoundaryEndMatter),
	}
}
