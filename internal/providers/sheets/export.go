package sheets

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/GriffinCanCode/filedeck/internal/shared/utils"
	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Export formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// tomlDocument is the TOML shape; records become an array of tables when
// the sheet has a header and an array of string arrays otherwise.
type tomlDocument struct {
	Columns []string    `toml:"columns,omitempty"`
	Records interface{} `toml:"records"`
}

// encode renders t in format. Documents carry the column names and the
// records, keyed by column when there is a header.
func encode(t *table, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return sonic.ConfigStd.MarshalIndent(map[string]interface{}{
			"columns": columnsOrEmpty(t),
			"records": recordValues(t),
		}, "", "  ")
	case FormatYAML:
		var records interface{} = rows(t)
		if t.Header != nil {
			ordered := make([]yaml.MapSlice, 0, len(t.Records))
			for _, rec := range t.Records {
				item := make(yaml.MapSlice, 0, len(rec.Fields))
				for i := 0; i < max(len(t.Header), len(rec.Fields)); i++ {
					item = append(item, yaml.MapItem{Key: t.name(i), Value: field(rec, i)})
				}
				ordered = append(ordered, item)
			}
			records = ordered
		}
		return yaml.Marshal(yaml.MapSlice{
			{Key: "columns", Value: columnsOrEmpty(t)},
			{Key: "records", Value: records},
		})
	case FormatTOML:
		return toml.Marshal(tomlDocument{Columns: t.Header, Records: recordValues(t)})
	default:
		return nil, fmt.Errorf("unsupported format %q (use json, yaml or toml)", format)
	}
}

func columnsOrEmpty(t *table) []string {
	if t.Header == nil {
		return []string{}
	}
	return t.Header
}

// recordValues returns keyed records for sheets with a header, else rows
func recordValues(t *table) interface{} {
	if t.Header == nil {
		return rows(t)
	}
	out := make([]map[string]string, 0, len(t.Records))
	for _, rec := range t.Records {
		item := make(map[string]string, len(t.Header))
		for i := 0; i < max(len(t.Header), len(rec.Fields)); i++ {
			item[t.name(i)] = field(rec, i)
		}
		out = append(out, item)
	}
	return out
}

func rows(t *table) [][]string {
	out := make([][]string, 0, len(t.Records))
	for _, rec := range t.Records {
		out = append(out, rec.Fields)
	}
	return out
}

// field returns the i-th field, or "" for short records
func field(rec record, i int) string {
	if i < len(rec.Fields) {
		return rec.Fields[i]
	}
	return ""
}

func (p *Provider) export(params map[string]interface{}) (*types.Result, error) {
	format := strings.ToLower(types.GetString(params, "format"))
	if format == "" {
		format = FormatJSON
	}
	switch format {
	case FormatJSON, FormatYAML, FormatTOML:
	default:
		return types.Failure(fmt.Sprintf("unsupported format %q (use json, yaml or toml)", format))
	}

	t, err := p.loadTable(params)
	if err != nil {
		return p.tableFailure("export", err)
	}
	data, err := encode(t, format)
	if err != nil {
		return p.tableFailure("export", err)
	}

	output := types.GetString(params, "output")
	if output == "" {
		if len(data) > utils.MaxContentSize {
			return types.Failure("export too large to return inline; set output")
		}
		return types.Success(map[string]interface{}{
			"format":    format,
			"content":   string(data),
			"records":   len(t.Records),
			"truncated": t.Truncated,
		})
	}

	if !types.GetBool(params, "overwrite", false) {
		if _, err := p.tree.Stat(output); err == nil {
			return p.tableFailure("export", fmt.Errorf("%w: %s", doctree.ErrExists, output))
		}
	}
	doc, n, err := p.tree.Write(output, bytes.NewReader(data))
	if err != nil {
		return p.tableFailure("export", err)
	}
	if p.metrics != nil {
		p.metrics.RecordDocumentWrite(n)
	}
	return types.Success(map[string]interface{}{
		"format":        format,
		"document":      doc,
		"bytes_written": n,
		"records":       len(t.Records),
		"truncated":     t.Truncated,
	})
}
