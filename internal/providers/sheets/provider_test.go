package sheets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/providers/settings"
	"github.com/GriffinCanCode/filedeck/internal/shared/paths"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const peopleCSV = "name,age,score\nann,30,1.5\nbob,40,2.5\ncat,,3.5\n\"dan, jr\",50,x\n"

type fixture struct {
	p    *Provider
	root doctree.Root
	dir  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"people.csv": peopleCSV,
		"ragged.tsv": "a\tb\n1\t2\n3\n4\t5\t6\n",
		"bad.csv":    "a,b\n\"open,1\n",
		"dupes.csv":  "id,,id\n1,2,3\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	tree, err := doctree.NewLocalTree(nil, nil)
	require.NoError(t, err)
	root, err := tree.Grant(dir)
	require.NoError(t, err)
	prefs, err := settings.NewProvider(settings.Options{})
	require.NoError(t, err)

	return &fixture{p: NewProvider(Options{Tree: tree, Prefs: prefs}), root: root, dir: dir}
}

func (f *fixture) uri(rel string) string {
	return paths.DocumentURI(f.root.ID, rel)
}

func (f *fixture) exec(t *testing.T, tool string, params map[string]interface{}) *types.Result {
	t.Helper()
	result, err := f.p.Execute(context.Background(), tool, params, nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestTokenize(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		params    map[string]interface{}
		want      []string
		wantFails bool
	}{
		{"default comma", map[string]interface{}{"line": `a, "b,c" ,d`}, []string{"a", "b,c", "d"}, false},
		{"named delimiter", map[string]interface{}{"line": "x\ty", "delimiter": "tab"}, []string{"x", "y"}, false},
		{"literal delimiter", map[string]interface{}{"line": "x;y", "delimiter": ";"}, []string{"x", "y"}, false},
		{"empty line", map[string]interface{}{"line": ""}, []string{""}, false},
		{"lenient unterminated", map[string]interface{}{"line": `a,"b`}, []string{"a", "b"}, false},
		{"strict unterminated", map[string]interface{}{"line": `a,"b`, "strict": true}, nil, true},
		{"quote delimiter", map[string]interface{}{"line": "a", "delimiter": `"`}, nil, true},
		{"unknown delimiter", map[string]interface{}{"line": "a", "delimiter": "bogus"}, nil, true},
		{"missing line", map[string]interface{}{}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.exec(t, "sheets.tokenize", tt.params)
			if tt.wantFails {
				assert.False(t, result.Success)
				return
			}
			require.True(t, result.Success, "unexpected failure: %v", result.Error)
			assert.Equal(t, tt.want, result.Data["fields"])
			assert.Equal(t, len(tt.want), result.Data["count"])
		})
	}
}

func TestPreview(t *testing.T) {
	f := newFixture(t)

	result := f.exec(t, "sheets.preview", map[string]interface{}{"uri": f.uri("people.csv")})
	require.True(t, result.Success)
	assert.Equal(t, []string{"name", "age", "score"}, result.Data["header"])
	assert.Equal(t, 4, result.Data["total_rows"])
	assert.Equal(t, 3, result.Data["columns"])
	assert.Equal(t, false, result.Data["ragged"])
	assert.Equal(t, false, result.Data["has_more"])
	assert.Equal(t, 50, result.Data["limit"])
	rows := result.Data["rows"].([]record)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"dan, jr", "50", "x"}, rows[3].Fields)
	assert.Equal(t, 5, rows[3].Line)

	t.Run("paging", func(t *testing.T) {
		result := f.exec(t, "sheets.preview", map[string]interface{}{"uri": f.uri("people.csv"), "offset": 1, "limit": 2})
		require.True(t, result.Success)
		rows := result.Data["rows"].([]record)
		require.Len(t, rows, 2)
		assert.Equal(t, "bob", rows[0].Fields[0])
		assert.Equal(t, true, result.Data["has_more"])

		result = f.exec(t, "sheets.preview", map[string]interface{}{"uri": f.uri("people.csv"), "offset": 10})
		require.True(t, result.Success)
		assert.Empty(t, result.Data["rows"])
		assert.Equal(t, false, result.Data["has_more"])
	})

	t.Run("ragged tsv", func(t *testing.T) {
		result := f.exec(t, "sheets.preview", map[string]interface{}{"uri": f.uri("ragged.tsv")})
		require.True(t, result.Success)
		assert.Equal(t, "\t", result.Data["delimiter"])
		assert.Equal(t, true, result.Data["ragged"])
		assert.Equal(t, []int{3, 4}, result.Data["ragged_lines"])
		assert.Equal(t, 3, result.Data["columns"])
	})

	t.Run("no header", func(t *testing.T) {
		result := f.exec(t, "sheets.preview", map[string]interface{}{"uri": f.uri("people.csv"), "header": false})
		require.True(t, result.Success)
		assert.Equal(t, []string{}, result.Data["header"])
		assert.Equal(t, 5, result.Data["total_rows"])
	})

	t.Run("strict reports line", func(t *testing.T) {
		result := f.exec(t, "sheets.preview", map[string]interface{}{"uri": f.uri("bad.csv"), "strict": true})
		require.False(t, result.Success)
		assert.Contains(t, *result.Error, "line 2")
	})

	t.Run("missing document", func(t *testing.T) {
		result := f.exec(t, "sheets.preview", map[string]interface{}{"uri": f.uri("nope.csv")})
		assert.False(t, result.Success)
		result = f.exec(t, "sheets.preview", map[string]interface{}{})
		assert.False(t, result.Success)
	})
}

func TestColumnNames(t *testing.T) {
	assert.Equal(t, []string{"id", "column_2", "id_2"}, columnNames([]string{"id", " ", "id"}))
}

func TestStats(t *testing.T) {
	f := newFixture(t)

	result := f.exec(t, "sheets.stats", map[string]interface{}{"uri": f.uri("people.csv")})
	require.True(t, result.Success)
	assert.Equal(t, 4, result.Data["rows"])
	assert.Equal(t, 1, result.Data["numeric_columns"])

	cols := result.Data["columns"].([]ColumnStats)
	require.Len(t, cols, 3)

	name, age, score := cols[0], cols[1], cols[2]
	assert.False(t, name.Numeric)
	assert.Equal(t, 4, name.Text)
	assert.Equal(t, 0, name.Count)

	assert.True(t, age.Numeric)
	assert.Equal(t, 3, age.Count)
	assert.Equal(t, 1, age.Blank)
	assert.InDelta(t, 40, age.Mean, 1e-9)
	assert.InDelta(t, 10, age.StdDev, 1e-9)
	assert.InDelta(t, 30, age.Min, 1e-9)
	assert.InDelta(t, 50, age.Max, 1e-9)
	assert.InDelta(t, 40, age.Median, 1e-9)
	assert.InDelta(t, 120, age.Sum, 1e-9)

	assert.False(t, score.Numeric, "a text cell makes the column mixed")
	assert.Equal(t, 3, score.Count)
	assert.Equal(t, 1, score.Text)
	assert.InDelta(t, 2.5, score.Mean, 1e-9)
}

func TestStatsKeepsZeroValues(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "balanced.csv"), []byte("delta\n-1\n1\n"), 0o644))

	result := f.exec(t, "sheets.stats", map[string]interface{}{"uri": f.uri("balanced.csv")})
	require.True(t, result.Success)
	cols := result.Data["columns"].([]ColumnStats)
	require.Len(t, cols, 1)
	assert.Equal(t, 2, cols[0].Count)
	assert.Zero(t, cols[0].Mean)
	assert.Zero(t, cols[0].Sum)

	encoded, err := sonic.Marshal(cols[0])
	require.NoError(t, err)
	var fields map[string]interface{}
	require.NoError(t, sonic.Unmarshal(encoded, &fields))
	for _, key := range []string{"sum", "mean", "median", "min", "max", "stddev"} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, 0.0, fields["mean"])
	assert.Equal(t, 0.0, fields["median"])
	assert.Equal(t, -1.0, fields["min"])
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, median([]float64{1, 2, 3}))
	assert.Equal(t, 2.5, median([]float64{1, 2, 3, 4}))
	assert.Equal(t, 7.0, median([]float64{7}))
}

type exported struct {
	Columns []string            `json:"columns" yaml:"columns" toml:"columns"`
	Records []map[string]string `json:"records" yaml:"records" toml:"records"`
}

func TestExportFormats(t *testing.T) {
	f := newFixture(t)

	decoders := map[string]func([]byte, interface{}) error{
		FormatJSON: sonic.Unmarshal,
		FormatYAML: yaml.Unmarshal,
		FormatTOML: toml.Unmarshal,
	}
	for format, decode := range decoders {
		t.Run(format, func(t *testing.T) {
			result := f.exec(t, "sheets.export", map[string]interface{}{"uri": f.uri("people.csv"), "format": format})
			require.True(t, result.Success, "export failed: %v", result.Error)
			assert.Equal(t, 4, result.Data["records"])

			var doc exported
			require.NoError(t, decode([]byte(result.Data["content"].(string)), &doc))
			assert.Equal(t, []string{"name", "age", "score"}, doc.Columns)
			require.Len(t, doc.Records, 4)
			assert.Equal(t, map[string]string{"name": "dan, jr", "age": "50", "score": "x"}, doc.Records[3])
			assert.Equal(t, "", doc.Records[2]["age"])
		})
	}

	t.Run("yaml keeps column order", func(t *testing.T) {
		result := f.exec(t, "sheets.export", map[string]interface{}{"uri": f.uri("people.csv"), "format": "yaml"})
		content := result.Data["content"].(string)
		assert.Less(t, strings.Index(content, "name: ann"), strings.Index(content, "age:"))
	})

	t.Run("unsupported format", func(t *testing.T) {
		result := f.exec(t, "sheets.export", map[string]interface{}{"uri": f.uri("people.csv"), "format": "xml"})
		assert.False(t, result.Success)
	})
}

func TestExportWithoutHeader(t *testing.T) {
	f := newFixture(t)

	result := f.exec(t, "sheets.export", map[string]interface{}{"uri": f.uri("ragged.tsv"), "header": false})
	require.True(t, result.Success)

	var doc struct {
		Columns []string   `json:"columns"`
		Records [][]string `json:"records"`
	}
	require.NoError(t, sonic.UnmarshalString(result.Data["content"].(string), &doc))
	assert.Empty(t, doc.Columns)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}, {"3"}, {"4", "5", "6"}}, doc.Records)
}

func TestExportToDocument(t *testing.T) {
	f := newFixture(t)
	params := map[string]interface{}{
		"uri":    f.uri("people.csv"),
		"format": "toml",
		"output": f.uri("people.toml"),
	}

	result := f.exec(t, "sheets.export", params)
	require.True(t, result.Success, "export failed: %v", result.Error)
	written := result.Data["bytes_written"].(int64)
	assert.Positive(t, written)

	data, err := os.ReadFile(filepath.Join(f.dir, "people.toml"))
	require.NoError(t, err)
	assert.Len(t, data, int(written))
	assert.Contains(t, string(data), "[[records]]")

	result = f.exec(t, "sheets.export", params)
	assert.False(t, result.Success, "existing output needs overwrite")

	params["overwrite"] = true
	result = f.exec(t, "sheets.export", params)
	assert.True(t, result.Success)
}
