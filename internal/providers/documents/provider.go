package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/filedeck/internal/providers/settings"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"go.uber.org/zap"
)

// Provider exposes the granted document tree
type Provider struct {
	tree    doctree.Tree
	prefs   settings.Preferences
	fetcher *Fetcher
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// Options configures a Provider
type Options struct {
	Tree    doctree.Tree
	Prefs   settings.Preferences // nil uses built-in defaults
	Fetcher *Fetcher             // nil uses DefaultFetchConfig
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// NewProvider creates a documents provider
func NewProvider(opts Options) *Provider {
	p := &Provider{
		tree:    opts.Tree,
		prefs:   opts.Prefs,
		fetcher: opts.Fetcher,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
	if p.prefs == nil {
		p.prefs = settings.Defaults()
	}
	if p.fetcher == nil {
		p.fetcher = NewFetcher(DefaultFetchConfig())
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	return p
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	tools := p.browseTools()
	tools = append(tools, p.contentTools()...)
	tools = append(tools, p.manageTools()...)
	tools = append(tools, p.importTools()...)

	return types.Service{
		ID:          "documents",
		Name:        "Documents Service",
		Description: "Browse read and write documents in granted folders",
		Category:    types.CategoryDocuments,
		Capabilities: []string{
			"browse",
			"read",
			"write",
			"preview",
			"create",
			"delete",
			"rename",
			"find",
			"import",
		},
		Tools: tools,
	}
}

// Execute runs a documents operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "documents.roots":
		return p.roots()
	case "documents.grant":
		return p.grant(params)
	case "documents.revoke":
		return p.revoke(params)
	case "documents.list":
		return p.list(params)
	case "documents.stat":
		return p.stat(params)
	case "documents.walk":
		return p.walk(ctx, params)
	case "documents.find":
		return p.find(ctx, params)
	case "documents.read":
		return p.read(params)
	case "documents.preview":
		return p.preview(params)
	case "documents.write":
		return p.write(params)
	case "documents.create":
		return p.create(params)
	case "documents.delete":
		return p.delete(params)
	case "documents.rename":
		return p.rename(params)
	case "documents.import_url":
		return p.importURL(ctx, params)
	default:
		return types.Failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

// treeFailure turns a document tree error into a failed result. Errors the
// caller can act on are reported verbatim; anything else is logged.
func (p *Provider) treeFailure(op string, err error) (*types.Result, error) {
	switch {
	case errors.Is(err, doctree.ErrNotFound),
		errors.Is(err, doctree.ErrUnknownRoot),
		errors.Is(err, doctree.ErrExists),
		errors.Is(err, doctree.ErrIsDir),
		errors.Is(err, doctree.ErrNotDir),
		errors.Is(err, doctree.ErrRootOp),
		errors.Is(err, doctree.ErrOutsideRoot):
	default:
		p.log.Warn("document operation failed", zap.String("op", op), zap.Error(err))
	}
	return types.Failure(fmt.Sprintf("%s failed: %v", op, err))
}

func requireURI(params map[string]interface{}, key string) (string, bool) {
	uri := types.GetString(params, key)
	return uri, uri != ""
}
