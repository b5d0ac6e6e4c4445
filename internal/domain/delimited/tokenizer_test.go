package delimited

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"empty line", "", []string{""}},
		{"single field", "a", []string{"a"}},
		{"simple", "a,b,c", []string{"a", "b", "c"}},
		{"trailing delimiter", "a,", []string{"a", ""}},
		{"leading delimiter", ",a", []string{"", "a"}},
		{"only delimiters", ",,", []string{"", "", ""}},
		{"trims outside quotes", "  a , b\t,c  ", []string{"a", "b", "c"}},
		{"quoted delimiter", `"a,b",c`, []string{"a,b", "c"}},
		{"escaped quote", `"say ""hi""",x`, []string{`say "hi"`, "x"}},
		{"keeps whitespace inside quotes", `"  padded  " , x`, []string{"  padded  ", "x"}},
		{"empty quoted field", `"",b`, []string{"", "b"}},
		{"quote in the middle", `ab"c,d"e`, []string{"abc,de"}},
		{"unterminated quote closes at end", `a,"b,c`, []string{"a", "b,c"}},
		{"unterminated keeps trailing space", `"b  `, []string{"b  "}},
		{"unicode", "héllo, wörld", []string{"héllo", "wörld"}},
		{"whitespace only", "   ", []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Tokenize(tt.line)); diff != "" {
				t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func TestTokenizeWithDelimiter(t *testing.T) {
	fields, err := TokenizeWith("a\t b \t\"c\td\"", Options{Delimiter: '\t'})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c\td"}, fields)

	fields, err = TokenizeWith("x;y,z;", Options{Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y,z", ""}, fields)
}

func TestTokenizeStrict(t *testing.T) {
	fields, err := TokenizeWith(`a,"open`, Options{Strict: true})
	assert.ErrorIs(t, err, ErrUnterminatedQuote)
	assert.Equal(t, []string{"a", "open"}, fields)

	_, err = TokenizeWith(`a,"closed"`, Options{Strict: true})
	assert.NoError(t, err)
}

func TestDelimiterFor(t *testing.T) {
	tests := []struct {
		name  string
		want  rune
		known bool
	}{
		{"report.csv", ',', true},
		{"data.TSV", '\t', true},
		{"tsv", '\t', true},
		{"semicolon", ';', true},
		{".psv", '|', true},
		{"pipe", '|', true},
		{"notes.txt", ',', false},
		{"", ',', false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DelimiterFor(tt.name)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, ok)
		})
	}
}

func TestScanner(t *testing.T) {
	input := "\ufeffname,age\r\n\nalice, 30\n\"bob, jr\",41\n"
	sc := NewScanner(strings.NewReader(input), Options{}, 0)

	var records [][]string
	var lines []int
	for sc.Scan() {
		records = append(records, sc.Fields())
		lines = append(lines, sc.Line())
	}
	require.NoError(t, sc.Err())

	want := [][]string{
		{"name", "age"},
		{"alice", "30"},
		{"bob, jr", "41"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{1, 3, 4}, lines)
}

func TestScannerStrictError(t *testing.T) {
	sc := NewScanner(strings.NewReader("a,b\n\"c,d\n"), Options{Strict: true}, 0)

	require.True(t, sc.Scan())
	assert.False(t, sc.Scan())

	var lineErr *LineError
	require.True(t, errors.As(sc.Err(), &lineErr))
	assert.Equal(t, 2, lineErr.Line)
	assert.ErrorIs(t, sc.Err(), ErrUnterminatedQuote)
}

func BenchmarkTokenize(b *testing.B) {
	line := `1,"Smith, John",  42 ,"say ""hi""",,end`
	for i := 0; i < b.N; i++ {
		Tokenize(line)
	}
}
