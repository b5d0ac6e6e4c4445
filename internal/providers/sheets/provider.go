package sheets

import (
	"context"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/filedeck/internal/domain/delimited"
	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/filedeck/internal/providers/settings"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"go.uber.org/zap"
)

// Provider implements the sheets service
type Provider struct {
	tree    doctree.Tree
	prefs   settings.Preferences
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// Options configures a Provider
type Options struct {
	Tree    doctree.Tree
	Prefs   settings.Preferences
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// NewProvider creates a sheets provider
func NewProvider(opts Options) *Provider {
	p := &Provider{
		tree:    opts.Tree,
		prefs:   opts.Prefs,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
	if p.prefs == nil {
		p.prefs = settings.Defaults()
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	return p
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	sheetParams := []types.Parameter{
		{Name: "uri", Type: "string", Description: "Document URI", Required: true},
		{Name: "delimiter", Type: "string", Description: "comma, tab, semicolon, pipe or a single character (default from the file extension)", Required: false},
		{Name: "header", Type: "boolean", Description: "First record is a header (default true)", Required: false},
		{Name: "strict", Type: "boolean", Description: "Fail on unterminated quotes", Required: false},
	}
	with := func(extra ...types.Parameter) []types.Parameter {
		out := append([]types.Parameter{}, sheetParams...)
		return append(out, extra...)
	}

	return types.Service{
		ID:          "sheets",
		Name:        "Sheets Service",
		Description: "Preview, summarize and convert delimited text files",
		Category:    types.CategorySheets,
		Capabilities: []string{
			"tokenize",
			"preview",
			"statistics",
			"export",
		},
		Tools: []types.Tool{
			{
				ID:          "sheets.tokenize",
				Name:        "Tokenize Line",
				Description: "Split one line into fields, honoring double quotes",
				Parameters: []types.Parameter{
					{Name: "line", Type: "string", Description: "Line to split", Required: true},
					{Name: "delimiter", Type: "string", Description: "Delimiter name or character (default comma)", Required: false},
					{Name: "strict", Type: "boolean", Description: "Fail on unterminated quotes", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "sheets.preview",
				Name:        "Preview Sheet",
				Description: "Read a page of records with the header and column count",
				Parameters: with(
					types.Parameter{Name: "offset", Type: "number", Description: "Records to skip after the header", Required: false},
					types.Parameter{Name: "limit", Type: "number", Description: "Records per page (default from settings)", Required: false},
				),
				Returns: "object",
			},
			{
				ID:          "sheets.stats",
				Name:        "Column Statistics",
				Description: "Count, mean, standard deviation, min, max and median of numeric columns",
				Parameters:  with(),
				Returns:     "object",
			},
			{
				ID:          "sheets.export",
				Name:        "Export Sheet",
				Description: "Convert records to JSON, YAML or TOML, inline or into a document",
				Parameters: with(
					types.Parameter{Name: "format", Type: "string", Description: "json, yaml or toml (default json)", Required: false},
					types.Parameter{Name: "output", Type: "string", Description: "Document URI to write instead of returning inline", Required: false},
					types.Parameter{Name: "overwrite", Type: "boolean", Description: "Replace an existing output document", Required: false},
				),
				Returns: "object",
			},
		},
	}
}

// Execute runs a sheets operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "sheets.tokenize":
		return p.tokenize(params)
	case "sheets.preview":
		return p.preview(params)
	case "sheets.stats":
		return p.stats(params)
	case "sheets.export":
		return p.export(params)
	default:
		return types.Failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

func (p *Provider) tokenize(params map[string]interface{}) (*types.Result, error) {
	line, ok := params["line"].(string)
	if !ok {
		return types.Failure("line parameter required")
	}
	delim, err := parseDelimiter(types.GetString(params, "delimiter"), "")
	if err != nil {
		return types.Failure(err.Error())
	}

	fields, err := delimited.TokenizeWith(line, delimited.Options{
		Delimiter: delim,
		Strict:    types.GetBool(params, "strict", false),
	})
	if err != nil {
		return types.Failure(err.Error())
	}
	return types.Success(map[string]interface{}{
		"fields":    fields,
		"count":     len(fields),
		"delimiter": string(delim),
	})
}

// tableFailure reports load errors; unexpected ones are logged
func (p *Provider) tableFailure(op string, err error) (*types.Result, error) {
	var lineErr *delimited.LineError
	switch {
	case errors.As(err, &lineErr),
		errors.Is(err, errInvalidDelimiter),
		errors.Is(err, errURIRequired),
		errors.Is(err, doctree.ErrNotFound),
		errors.Is(err, doctree.ErrUnknownRoot),
		errors.Is(err, doctree.ErrExists),
		errors.Is(err, doctree.ErrIsDir),
		errors.Is(err, doctree.ErrNotText),
		errors.Is(err, doctree.ErrOutsideRoot):
	default:
		p.log.Warn("sheet operation failed", zap.String("op", op), zap.Error(err))
	}
	return types.Failure(fmt.Sprintf("%s failed: %v", op, err))
}
