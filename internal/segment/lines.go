package segment

import (
	"regexp"
	"strings"
)

// normRe collapses the characters publishers vary freely in headings:
// whitespace runs and '=' delimiters.
var normRe = regexp.MustCompile(`[=\s]+`)

// Lines holds the two parallel views of a document's text: the trimmed raw
// lines, and a normalized form used only for heading pattern matching
// (lowercased, whitespace and '=' runs removed) so that "== Abstract ==",
// "ABSTRACT" and "abstract " all reduce to the same token. Both slices are
// built once and never mutated.
type Lines struct {
	Raw  []string
	Norm []string
}

// SplitLines splits full document text into its parallel raw and
// normalized line views.
func SplitLines(text string) *Lines {
	rows := strings.Split(text, "\n")
	l := &Lines{
		Raw:  make([]string, len(rows)),
		Norm: make([]string, len(rows)),
	}
	for i, row := range rows {
		raw := strings.TrimSpace(row)
		l.Raw[i] = raw
		l.Norm[i] = normRe.ReplaceAllString(strings.ToLower(raw), "")
	}
	return l
}

// Len returns the number of lines.
func (l *Lines) Len() int { return len(l.Raw) }

// slice returns a view over the lines from start onward.
func (l *Lines) slice(start int) *Lines {
	return &Lines{Raw: l.Raw[start:], Norm: l.Norm[start:]}
}
