// Package summary extracts keywords and an extractive summary from plain text
// using word frequency.
package summary

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MinWordLength is the shortest word counted as a keyword
const MinWordLength = 3

// Keyword is a normalized word and its occurrence count
type Keyword struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Options controls Summarize
type Options struct {
	Keywords     int // top keywords to report, default 10
	MaxSentences int // sentences in the summary, default 3
}

// Summary describes a text
type Summary struct {
	Words      int       `json:"words"`
	Lines      int       `json:"lines"`
	Characters int       `json:"characters"`
	Sentences  int       `json:"sentences"`
	Keywords   []Keyword `json:"keywords"`
	Highlights []string  `json:"highlights"`
}

var folder = cases.Fold()

// normalize returns the NFC, case-folded form of s
func normalize(s string) string {
	return folder.String(norm.NFC.String(s))
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// words splits s into raw words of letters and digits
func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !isWordRune(r) && r != '\'' })
}

// frequencies counts normalized non-stop words
func frequencies(text string) map[string]int {
	counts := make(map[string]int)
	for _, w := range words(normalize(text)) {
		w = strings.Trim(w, "'")
		if utf8.RuneCountInString(w) < MinWordLength || isStopWord(w) {
			continue
		}
		counts[w]++
	}
	return counts
}

// Keywords returns the n most frequent words ordered by count, then alphabetically
func Keywords(text string, n int) []Keyword {
	return top(frequencies(text), n)
}

func top(counts map[string]int, n int) []Keyword {
	out := make([]Keyword, 0, len(counts))
	for w, c := range counts {
		out = append(out, Keyword{Word: w, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Summarize computes text statistics, keywords and the highest scoring
// sentences in document order.
func Summarize(text string, opts Options) Summary {
	if opts.Keywords <= 0 {
		opts.Keywords = 10
	}
	if opts.MaxSentences <= 0 {
		opts.MaxSentences = 3
	}

	counts := frequencies(text)
	sentences := Sentences(text)

	s := Summary{
		Words:      len(words(text)),
		Characters: utf8.RuneCountInString(text),
		Sentences:  len(sentences),
		Keywords:   top(counts, opts.Keywords),
		Highlights: []string{},
	}
	if text != "" {
		s.Lines = strings.Count(text, "\n") + 1
		if strings.HasSuffix(text, "\n") {
			s.Lines--
		}
	}

	type scored struct {
		idx   int
		score int
	}
	ranked := make([]scored, 0, len(sentences))
	for i, sentence := range sentences {
		score := 0
		for w, c := range frequencies(sentence) {
			score += c * counts[w]
		}
		ranked = append(ranked, scored{idx: i, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > opts.MaxSentences {
		ranked = ranked[:opts.MaxSentences]
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].idx < ranked[j].idx })
	for _, r := range ranked {
		s.Highlights = append(s.Highlights, sentences[r.idx])
	}
	return s
}

// Sentences splits text at ., ! or ? followed by whitespace, and at blank lines
func Sentences(text string) []string {
	var (
		out   []string
		start int
	)
	emit := func(end int) {
		if sentence := strings.Join(strings.Fields(text[start:end]), " "); sentence != "" {
			out = append(out, sentence)
		}
		start = end
	}

	for i, r := range text {
		switch r {
		case '.', '!', '?':
			next := i + 1
			if next == len(text) || isSpaceAt(text, next) {
				emit(next)
			}
		case '\n':
			if strings.HasPrefix(text[i+1:], "\n") || strings.HasPrefix(text[i+1:], "\r\n") {
				emit(i)
			}
		}
	}
	emit(len(text))
	return out
}

func isSpaceAt(s string, i int) bool {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsSpace(r)
}
