package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/providers/settings"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/GriffinCanCode/filedeck/internal/shared/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxListing bounds the documents considered by one name search
const maxListing = 20000

// sourceTimeout bounds each source of search.all
const sourceTimeout = 5 * time.Second

var errListingFull = errors.New("listing limit reached")

// Provider implements search across granted folders
type Provider struct {
	tree  doctree.Tree
	prefs settings.Preferences
	log   *zap.Logger
}

// Options configures a Provider
type Options struct {
	Tree   doctree.Tree
	Prefs  settings.Preferences
	Logger *zap.Logger
}

// NewProvider creates a new search provider
func NewProvider(opts Options) *Provider {
	p := &Provider{tree: opts.Tree, prefs: opts.Prefs, log: opts.Logger}
	if p.prefs == nil {
		p.prefs = settings.Defaults()
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	return p
}

// Definition returns the search service definition
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:           "search",
		Name:         "Document Search",
		Description:  "Find documents by name or content across granted folders",
		Category:     types.CategorySearch,
		Capabilities: []string{"search_files", "search_content", "search_all"},
		Tools:        p.getTools(),
	}
}

// Execute runs a search tool
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "search.files":
		return p.searchFiles(ctx, params)
	case "search.content":
		return p.searchContent(ctx, params)
	case "search.all":
		return p.searchAll(ctx, params)
	default:
		return types.Failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

// scopes returns the folders to search: uri when given, else every root
func (p *Provider) scopes(params map[string]interface{}) []string {
	if uri := types.GetString(params, "uri"); uri != "" {
		return []string{uri}
	}
	roots := p.tree.Roots()
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		out = append(out, r.URI())
	}
	return out
}

func (p *Provider) limit(params map[string]interface{}) int {
	n := types.GetInt(params, "limit", p.prefs.Int(settings.KeySearchMaxResult))
	if n <= 0 {
		n = p.prefs.Int(settings.KeySearchMaxResult)
	}
	return n
}

// listing walks the scopes and returns up to maxListing documents
func (p *Provider) listing(ctx context.Context, scopes []string, keep func(doctree.Document) bool) ([]doctree.Document, bool, error) {
	showHidden := p.prefs.Bool(settings.KeyShowHidden)
	var docs []doctree.Document
	truncated := false
	for _, scope := range scopes {
		err := p.tree.Walk(ctx, scope, 0, func(d doctree.Document) error {
			if !showHidden && hiddenPath(d.Path) {
				return nil
			}
			if keep != nil && !keep(d) {
				return nil
			}
			if len(docs) >= maxListing {
				return errListingFull
			}
			docs = append(docs, d)
			return nil
		})
		if errors.Is(err, errListingFull) {
			truncated = true
			break
		}
		if err != nil {
			return nil, false, err
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	return docs, truncated, nil
}

// hiddenPath reports whether any segment of a root-relative path is hidden
func hiddenPath(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// queryParam returns the query parameter, or a failure message
func queryParam(params map[string]interface{}) (string, string) {
	query := types.GetString(params, "query")
	if strings.TrimSpace(query) == "" {
		return "", "query parameter required"
	}
	if len(query) > utils.MaxQuerySize {
		return "", fmt.Sprintf("query exceeds %d bytes", utils.MaxQuerySize)
	}
	return query, ""
}

// searchAll runs name and content searches in parallel
func (p *Provider) searchAll(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	if _, msg := queryParam(params); msg != "" {
		return types.Failure(msg)
	}

	var (
		mu      sync.Mutex
		g       errgroup.Group
		results = make(map[string]interface{})
	)
	sources := map[string]func(context.Context, map[string]interface{}) (*types.Result, error){
		"files":   p.searchFiles,
		"content": p.searchContent,
	}
	for name, search := range sources {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, sourceTimeout)
			defer cancel()

			result, err := search(ctx, params)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				results[name] = map[string]interface{}{"error": err.Error()}
			case !result.Success:
				results[name] = map[string]interface{}{"error": *result.Error}
			default:
				results[name] = result.Data
			}
			return nil
		})
	}
	_ = g.Wait()

	return types.Success(results)
}

func (p *Provider) searchFailure(op string, err error) (*types.Result, error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return types.Failure(fmt.Sprintf("%s timed out", op))
	case errors.Is(err, doctree.ErrNotFound),
		errors.Is(err, doctree.ErrUnknownRoot),
		errors.Is(err, doctree.ErrNotDir),
		errors.Is(err, doctree.ErrOutsideRoot):
	default:
		p.log.Warn("search failed", zap.String("op", op), zap.Error(err))
	}
	return types.Failure(fmt.Sprintf("%s failed: %v", op, err))
}

// getTools returns the list of available search tools
func (p *Provider) getTools() []types.Tool {
	return []types.Tool{
		{
			ID:          "search.files",
			Name:        "Search Files",
			Description: "Search for documents by name using fuzzy matching",
			Parameters: []types.Parameter{
				{Name: "query", Type: "string", Required: true, Description: "Search query"},
				{Name: "uri", Type: "string", Required: false, Description: "Folder to search (default: all roots)"},
				{Name: "limit", Type: "number", Required: false, Description: "Maximum results (default from settings)"},
				{Name: "files_only", Type: "boolean", Required: false, Description: "Skip folders"},
			},
			Returns: "array",
		},
		{
			ID:          "search.content",
			Name:        "Search Content",
			Description: "Case-insensitive text search inside documents",
			Parameters: []types.Parameter{
				{Name: "query", Type: "string", Required: true, Description: "Text to find"},
				{Name: "uri", Type: "string", Required: false, Description: "Folder to search (default: all roots)"},
				{Name: "extensions", Type: "array", Required: false, Description: "Only these extensions, e.g. [\"txt\", \"csv\"]"},
				{Name: "limit", Type: "number", Required: false, Description: "Maximum matches (default from settings)"},
			},
			Returns: "array",
		},
		{
			ID:          "search.all",
			Name:        "Search All",
			Description: "Search names and content together",
			Parameters: []types.Parameter{
				{Name: "query", Type: "string", Required: true, Description: "Search query"},
				{Name: "uri", Type: "string", Required: false, Description: "Folder to search (default: all roots)"},
				{Name: "limit", Type: "number", Required: false, Description: "Results per category (default from settings)"},
			},
			Returns: "object",
		},
	}
}
