package editor

import (
	"strings"
	"unicode"
)

// Range is a half-open [Start, End) span of rune offsets
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of runes covered
func (r Range) Len() int {
	return r.End - r.Start
}

// FindAll returns every non-overlapping case-insensitive occurrence of query
// in text, scanning left to right. A blank query matches nothing.
func FindAll(query, text string) []Range {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	return findRunes([]rune(query), []rune(text), 0)
}

// FindFirst returns up to limit matches; limit <= 0 means no limit
func FindFirst(query, text string, limit int) []Range {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	return findRunes([]rune(query), []rune(text), limit)
}

func findRunes(q, t []rune, limit int) []Range {
	var out []Range
	n := len(q)
	for i := 0; i+n <= len(t); {
		if matchAt(q, t, i) {
			out = append(out, Range{Start: i, End: i + n})
			if limit > 0 && len(out) == limit {
				break
			}
			i += n
			continue
		}
		i++
	}
	return out
}

func matchAt(q, t []rune, at int) bool {
	for j, r := range q {
		if !foldEqual(r, t[at+j]) {
			return false
		}
	}
	return true
}

// foldEqual reports whether a and b are equal under simple Unicode case folding
func foldEqual(a, b rune) bool {
	if a == b {
		return true
	}
	for f := unicode.SimpleFold(a); f != a; f = unicode.SimpleFold(f) {
		if f == b {
			return true
		}
	}
	return false
}

// LineColumn converts a rune offset into a 1-based line and column
func LineColumn(text string, offset int) (line, col int) {
	line, col = 1, 1
	i := 0
	for _, r := range text {
		if i == offset {
			break
		}
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
		i++
	}
	return line, col
}

// Position is a match with its 1-based line and column
type Position struct {
	Range
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Locate converts ranges sorted by Start into positions in a single pass
func Locate(text string, ranges []Range) []Position {
	out := make([]Position, 0, len(ranges))
	if len(ranges) == 0 {
		return out
	}
	line, col, i, next := 1, 1, 0, 0
	for _, r := range text {
		for next < len(ranges) && ranges[next].Start == i {
			out = append(out, Position{Range: ranges[next], Line: line, Column: col})
			next++
		}
		if next == len(ranges) {
			return out
		}
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
		i++
	}
	for ; next < len(ranges); next++ {
		out = append(out, Position{Range: ranges[next], Line: line, Column: col})
	}
	return out
}

// splice replaces the runes covered by rg with repl
func splice(text []rune, rg Range, repl []rune) []rune {
	out := make([]rune, 0, len(text)-rg.Len()+len(repl))
	out = append(out, text[:rg.Start]...)
	out = append(out, repl...)
	return append(out, text[rg.End:]...)
}
