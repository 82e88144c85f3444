package segment

import (
	"regexp"
	"strings"
)

// inlineAbstractRe pulls trailing abstract text off the heading line
// itself, as in "Abstract - We present a method for ...".
var inlineAbstractRe = regexp.MustCompile(`(?i)^abstract[\s\x{2013}\x{2014}-]+(.*)`)

// preIntroFallbackLines caps the front-matter guess when no heading at all
// was found.
const preIntroFallbackLines = 50

// zones holds the partitioned line slices before assembly into section
// text. The abstract and end-matter heading lines belong to no zone; the
// introduction heading opens the main body.
type zones struct {
	preIntro  []string
	abstract  []string
	mainBody  []string
	endMatter []string
}

// minPresent picks the smallest position among the candidates that were
// found.
func minPresent(cands ...LineIndex) LineIndex {
	best := LineIndex{}
	for _, c := range cands {
		if !c.Found {
			continue
		}
		if !best.Found || c.Pos < best.Pos {
			best = c
		}
	}
	return best
}

// after narrows idx to boundaries strictly past pos.
func after(idx LineIndex, pos int) LineIndex {
	if idx.Found && idx.Pos > pos {
		return idx
	}
	return LineIndex{}
}

// firstAfter finds the first line at or beyond start matching any pattern.
func firstAfter(lines *Lines, start int, patterns []*regexp.Regexp) LineIndex {
	if start >= lines.Len() {
		return LineIndex{}
	}
	idx := findIndex(lines.slice(start), patterns)
	if !idx.Found {
		return LineIndex{}
	}
	return LineIndex{Pos: start + idx.Pos, Found: true}
}

// abstractEnd bounds the abstract zone. A keywords or introduction heading
// after the abstract heading wins; a generic numbered or all-caps section
// start is consulted only when neither exists, so the scan stays a last
// resort; the document end is the final fallback.
func abstractEnd(lines *Lines, abstractPos int, intro LineIndex) int {
	kw := after(FindBoundary(lines, BoundaryKeywords), abstractPos)
	in := after(intro, abstractPos)
	section := LineIndex{}
	if !kw.Found && !in.Found {
		section = firstAfter(lines, abstractPos+1, sectionStartPatterns)
	}
	return minPresent(kw, in, section, LineIndex{Pos: lines.Len(), Found: true}).Pos
}

// splitZones carves the line sequence into the four zones.
func splitZones(lines *Lines, b Boundaries) zones {
	var z zones

	if first := minPresent(b.Abstract, b.Intro); first.Found {
		z.preIntro = lines.Raw[:first.Pos]
	} else {
		n := preIntroFallbackLines
		if lines.Len() < n {
			n = lines.Len()
		}
		z.preIntro = lines.Raw[:n]
	}

	if b.Abstract.Found {
		end := abstractEnd(lines, b.Abstract.Pos, b.Intro)
		body := lines.Raw[b.Abstract.Pos+1 : end]
		if m := inlineAbstractRe.FindStringSubmatch(lines.Raw[b.Abstract.Pos]); m != nil {
			z.abstract = append([]string{strings.TrimSpace(m[1])}, body...)
		} else {
			z.abstract = body
		}
	} else if b.Intro.Found && b.Intro.Pos > 5 {
		// No labeled abstract, but enough material before the
		// introduction to treat as one.
		z.abstract = lines.Raw[:b.Intro.Pos]
	}

	bodyStart := 0
	switch {
	case b.Intro.Found:
		bodyStart = b.Intro.Pos
	case b.Abstract.Found:
		bodyStart = b.Abstract.Pos + 1
	}
	bodyEnd := lines.Len()
	if b.End.Found {
		bodyEnd = b.End.Pos
	}
	if bodyStart <= bodyEnd {
		z.mainBody = lines.Raw[bodyStart:bodyEnd]
	}

	if b.End.Found {
		z.endMatter = lines.Raw[b.End.Pos+1:]
	}
	return z
}
