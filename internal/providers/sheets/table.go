package sheets

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/filedeck/internal/domain/delimited"
	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/providers/settings"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/GriffinCanCode/filedeck/internal/shared/utils"
)

// maxRaggedReported caps the line numbers listed for ragged records
const maxRaggedReported = 100

var (
	errInvalidDelimiter = errors.New("invalid delimiter")
	errURIRequired      = errors.New("uri parameter required")
)

// record is one parsed line
type record struct {
	Line   int      `json:"line"`
	Fields []string `json:"fields"`
}

// table is a fully parsed delimited document
type table struct {
	URI       string
	Delimiter rune
	Header    []string // nil when the document has no header row
	Records   []record
	Width     int   // expected fields per record
	Columns   int   // widest record, header included
	Ragged    []int // lines whose width differs from Width
	RaggedN   int
	Encoding  string
	Truncated bool
}

// parseDelimiter accepts a single character, a delimiter name, or "" to
// infer from the document name.
func parseDelimiter(name, uri string) (rune, error) {
	if name == "" {
		d, _ := delimited.DelimiterFor(uri)
		return d, nil
	}
	if utf8.RuneCountInString(name) == 1 {
		r, _ := utf8.DecodeRuneInString(name)
		if r == '"' || r == '\n' || r == '\r' {
			return 0, fmt.Errorf("%w: %q", errInvalidDelimiter, name)
		}
		return r, nil
	}
	if d, ok := delimited.DelimiterFor(name); ok {
		return d, nil
	}
	return 0, fmt.Errorf("%w: %q", errInvalidDelimiter, name)
}

func (p *Provider) loadTable(params map[string]interface{}) (*table, error) {
	uri := types.GetString(params, "uri")
	if uri == "" {
		return nil, errURIRequired
	}
	delim, err := parseDelimiter(types.GetString(params, "delimiter"), uri)
	if err != nil {
		return nil, err
	}

	text, err := doctree.ReadText(p.tree, uri, doctree.ReadOptions{
		MaxBytes: int64(p.prefs.Int(settings.KeyMaxReadBytes)),
		Encoding: types.GetString(params, "encoding"),
	})
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.RecordDocumentRead(int64(text.BytesRead))
	}

	t := &table{
		URI:       uri,
		Delimiter: delim,
		Encoding:  text.Encoding,
		Truncated: text.Truncated,
	}
	header := types.GetBool(params, "header", true)

	sc := delimited.NewScanner(strings.NewReader(text.Content), delimited.Options{
		Delimiter: delim,
		Strict:    types.GetBool(params, "strict", false),
	}, utils.MaxLineSize)
	for sc.Scan() {
		fields := sc.Fields()
		if len(fields) > t.Columns {
			t.Columns = len(fields)
		}
		if header && t.Header == nil {
			t.Header = columnNames(fields)
			t.Width = len(fields)
			continue
		}
		if t.Width == 0 {
			t.Width = len(fields)
		}
		if len(fields) != t.Width {
			t.RaggedN++
			if len(t.Ragged) < maxRaggedReported {
				t.Ragged = append(t.Ragged, sc.Line())
			}
		}
		t.Records = append(t.Records, record{Line: sc.Line(), Fields: fields})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// columnNames fills blank header cells and disambiguates duplicates
func columnNames(fields []string) []string {
	names := make([]string, len(fields))
	seen := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimSpace(f)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = name + "_" + strconv.Itoa(n)
		}
		names[i] = name
	}
	return names
}

// name returns the column name for index i
func (t *table) name(i int) string {
	if i < len(t.Header) {
		return t.Header[i]
	}
	return "column_" + strconv.Itoa(i+1)
}

func (p *Provider) preview(params map[string]interface{}) (*types.Result, error) {
	t, err := p.loadTable(params)
	if err != nil {
		return p.tableFailure("preview", err)
	}

	offset := types.GetInt(params, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit := types.GetInt(params, "limit", p.prefs.Int(settings.KeyPreviewRows))
	if limit <= 0 {
		limit = p.prefs.Int(settings.KeyPreviewRows)
	}

	page := []record{}
	if offset < len(t.Records) {
		end := min(offset+limit, len(t.Records))
		page = t.Records[offset:end]
	}

	header := t.Header
	if header == nil {
		header = []string{}
	}
	ragged := t.Ragged
	if ragged == nil {
		ragged = []int{}
	}
	return types.Success(map[string]interface{}{
		"uri":          t.URI,
		"header":       header,
		"rows":         page,
		"offset":       offset,
		"limit":        limit,
		"total_rows":   len(t.Records),
		"has_more":     offset+len(page) < len(t.Records),
		"columns":      t.Columns,
		"ragged":       t.RaggedN > 0,
		"ragged_lines": ragged,
		"ragged_count": t.RaggedN,
		"delimiter":    string(t.Delimiter),
		"encoding":     t.Encoding,
		"truncated":    t.Truncated,
	})
}
