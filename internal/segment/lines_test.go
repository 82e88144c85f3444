package segment

import "testing"

func TestSplitLines(t *testing.T) {
	l := SplitLines("  Title Page  \n== ABSTRACT ==\n\nA b s t r a c t")

	if l.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", l.Len())
	}

	wantRaw := []string{"Title Page", "== ABSTRACT ==", "", "A b s t r a c t"}
	wantNorm := []string{"titlepage", "abstract", "", "abstract"}
	for i := range wantRaw {
		if l.Raw[i] != wantRaw[i] {
			t.Errorf("Raw[%d] = %q, want %q", i, l.Raw[i], wantRaw[i])
		}
		if l.Norm[i] != wantNorm[i] {
			t.Errorf("Norm[%d] = %q, want %q", i, l.Norm[i], wantNorm[i])
		}
	}
}

func TestSplitLinesEmpty(t *testing.T) {
	l := SplitLines("")
	if l.Len() != 1 || l.Raw[0] != "" {
		t.Errorf("SplitLines(\"\") = %v, want one empty line", l.Raw)
	}
}

func TestSlice(t *testing.T) {
	l := SplitLines("a\nb\nc")
	s := l.slice(1)
	if s.Len() != 2 || s.Raw[0] != "b" || s.Norm[1] != "c" {
		t.Errorf("slice(1) = %v, want [b c]", s.Raw)
	}
}
