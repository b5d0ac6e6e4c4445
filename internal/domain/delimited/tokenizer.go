package delimited

import (
	"bufio"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

// DefaultDelimiter separates fields when no other delimiter is configured
const DefaultDelimiter = ','

const quote = '"'

// ErrUnterminatedQuote is returned in strict mode for a line that ends inside a quoted span
var ErrUnterminatedQuote = errors.New("unterminated quoted field")

// Options controls tokenization
type Options struct {
	Delimiter rune // zero means DefaultDelimiter
	Strict    bool // reject unterminated quotes instead of closing them
}

func (o Options) delimiter() rune {
	if o.Delimiter == 0 {
		return DefaultDelimiter
	}
	return o.Delimiter
}

// Tokenize splits one line with the default options
func Tokenize(line string) []string {
	fields, _ := TokenizeWith(line, Options{})
	return fields
}

// TokenizeWith splits one line into fields.
// The fields are returned even when err is ErrUnterminatedQuote.
func TokenizeWith(line string, opts Options) ([]string, error) {
	delim := opts.delimiter()

	var (
		fields    []string
		field     strings.Builder
		inQuotes  bool
		protected int // bytes of field that trailing trim must not touch
	)

	flush := func() {
		s := field.String()
		fields = append(fields, s[:protected]+strings.TrimRightFunc(s[protected:], unicode.IsSpace))
		field.Reset()
		protected = 0
	}

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inQuotes && r == quote:
			if i+1 < len(runes) && runes[i+1] == quote {
				field.WriteRune(quote)
				i++
				continue
			}
			inQuotes = false
			protected = field.Len()
		case inQuotes:
			field.WriteRune(r)
		case r == quote:
			inQuotes = true
		case r == delim:
			flush()
		case field.Len() == 0 && unicode.IsSpace(r):
			// leading whitespace
		default:
			field.WriteRune(r)
		}
	}

	if inQuotes {
		// implicit close keeps everything read so far
		protected = field.Len()
	}
	flush()

	if inQuotes && opts.Strict {
		return fields, ErrUnterminatedQuote
	}
	return fields, nil
}

// DelimiterFor maps a file name, extension or delimiter name to its delimiter.
// The second result is false when name is not recognized; the default
// delimiter is returned in that case.
func DelimiterFor(name string) (rune, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if ext := filepath.Ext(key); ext != "" {
		key = ext
	}
	key = strings.TrimPrefix(key, ".")

	switch key {
	case "csv", "comma":
		return ',', true
	case "tsv", "tab":
		return '\t', true
	case "semicolon", "ssv":
		return ';', true
	case "pipe", "psv":
		return '|', true
	}
	return DefaultDelimiter, false
}

// Scanner reads delimited records from a stream, one line per record.
type Scanner struct {
	sc     *bufio.Scanner
	opts   Options
	line   int
	fields []string
	err    error
}

// NewScanner returns a Scanner reading from r.
// Lines longer than maxLine bytes stop the scan with bufio.ErrTooLong.
func NewScanner(r io.Reader, opts Options, maxLine int) *Scanner {
	sc := bufio.NewScanner(r)
	if maxLine > 0 {
		sc.Buffer(make([]byte, 0, min(maxLine, 64*1024)), maxLine)
	}
	return &Scanner{sc: sc, opts: opts}
}

// Scan advances to the next record. Blank lines are skipped.
func (s *Scanner) Scan() bool {
	for s.sc.Scan() {
		s.line++
		text := strings.TrimSuffix(s.sc.Text(), "\r")
		if s.line == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		fields, err := TokenizeWith(text, s.opts)
		if err != nil {
			s.err = &LineError{Line: s.line, Err: err}
			return false
		}
		s.fields = fields
		return true
	}
	s.err = s.sc.Err()
	return false
}

// Fields returns the most recent record
func (s *Scanner) Fields() []string {
	return s.fields
}

// Line returns the 1-based line number of the most recent record
func (s *Scanner) Line() int {
	return s.line
}

// Err returns the first error that stopped the scan
func (s *Scanner) Err() error {
	return s.err
}

// LineError attaches a line number to a tokenizer error
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return "line " + strconv.Itoa(e.Line) + ": " + e.Err.Error()
}

func (e *LineError) Unwrap() error {
	return e.Err
}
