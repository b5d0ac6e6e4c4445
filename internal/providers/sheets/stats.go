package sheets

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ColumnStats summarizes one column. The numeric fields are meaningful only
// when Count is positive; zero is a real value otherwise.
type ColumnStats struct {
	Index   int     `json:"index"`
	Name    string  `json:"name"`
	Numeric bool    `json:"numeric"` // every non-blank cell is a number
	Count   int     `json:"count"`   // numeric cells
	Blank   int     `json:"blank"`
	Text    int     `json:"text"`
	Sum     float64 `json:"sum"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"stddev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Median  float64 `json:"median"`
}

// parseNumber accepts finite decimal numbers, ignoring surrounding space
func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// columnStats computes statistics for every column of t
func columnStats(t *table) []ColumnStats {
	out := make([]ColumnStats, t.Columns)
	values := make([][]float64, t.Columns)
	for i := range out {
		out[i] = ColumnStats{Index: i, Name: t.name(i)}
	}

	for _, rec := range t.Records {
		for i := 0; i < t.Columns; i++ {
			if i >= len(rec.Fields) || strings.TrimSpace(rec.Fields[i]) == "" {
				out[i].Blank++
				continue
			}
			if v, ok := parseNumber(rec.Fields[i]); ok {
				values[i] = append(values[i], v)
			} else {
				out[i].Text++
			}
		}
	}

	for i := range out {
		x := values[i]
		c := &out[i]
		c.Count = len(x)
		c.Numeric = c.Count > 0 && c.Text == 0
		if c.Count == 0 {
			continue
		}
		sort.Float64s(x)
		c.Sum = floats.Sum(x)
		c.Mean = stat.Mean(x, nil)
		if c.Count > 1 {
			c.StdDev = stat.StdDev(x, nil)
		}
		c.Min = floats.Min(x)
		c.Max = floats.Max(x)
		c.Median = median(x)
	}
	return out
}

// median of sorted x, averaging the middle pair for even lengths
func median(x []float64) float64 {
	n := len(x)
	if n%2 == 1 {
		return x[n/2]
	}
	return (x[n/2-1] + x[n/2]) / 2
}

func (p *Provider) stats(params map[string]interface{}) (*types.Result, error) {
	t, err := p.loadTable(params)
	if err != nil {
		return p.tableFailure("stats", err)
	}

	columns := columnStats(t)
	numeric := 0
	for _, c := range columns {
		if c.Numeric {
			numeric++
		}
	}
	return types.Success(map[string]interface{}{
		"uri":             t.URI,
		"rows":            len(t.Records),
		"columns":         columns,
		"numeric_columns": numeric,
		"truncated":       t.Truncated,
	})
}
