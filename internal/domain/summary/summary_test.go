package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywords(t *testing.T) {
	text := "Go is fun. GO channels and go routines. The channels are fast; channels!"

	got := Keywords(text, 2)
	require.Len(t, got, 2)
	assert.Equal(t, Keyword{Word: "channels", Count: 3}, got[0])
	assert.Equal(t, Keyword{Word: "fast", Count: 1}, got[1], "ties break alphabetically")
}

func TestKeywordsNormalization(t *testing.T) {
	// precomposed and decomposed forms fold to the same word
	text := "Caf\u00e9 CAFE\u0301 cafe\u0301"
	got := Keywords(text, 0)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Count)
}

func TestKeywordsDropsStopWordsAndShortWords(t *testing.T) {
	assert.Empty(t, Keywords("the and of to a an it is", 5))
}

func TestSentences(t *testing.T) {
	text := "First one. Second one!  Third?\n\nFourth without stop\nstill fourth"
	assert.Equal(t, []string{
		"First one.",
		"Second one!",
		"Third?",
		"Fourth without stop still fourth",
	}, Sentences(text))

	assert.Equal(t, []string{"v1.2 release"}, Sentences("v1.2 release"))
	assert.Empty(t, Sentences("   "))
}

func TestSummarize(t *testing.T) {
	text := "Backups matter. Cloud backups keep files safe.\n" +
		"Lunch was nice. Backups run nightly to the cloud.\n"

	s := Summarize(text, Options{MaxSentences: 2, Keywords: 3})
	assert.Equal(t, 2, s.Lines)
	assert.Equal(t, 4, s.Sentences)
	assert.Equal(t, 16, s.Words)
	require.NotEmpty(t, s.Keywords)
	assert.Equal(t, "backups", s.Keywords[0].Word)
	assert.Equal(t, []string{
		"Cloud backups keep files safe.",
		"Backups run nightly to the cloud.",
	}, s.Highlights)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize("", Options{})
	assert.Zero(t, s.Lines)
	assert.Zero(t, s.Words)
	assert.NotNil(t, s.Highlights)
	assert.Empty(t, s.Keywords)
}
