package documents

import (
	"context"
	"errors"
	"sort"

	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/providers/settings"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
)

const (
	defaultWalkLimit = 1000
	maxWalkLimit     = 10000
)

var errLimitReached = errors.New("limit reached")

func (p *Provider) browseTools() []types.Tool {
	return []types.Tool{
		{
			ID:          "documents.roots",
			Name:        "List Roots",
			Description: "List granted folders",
			Parameters:  []types.Parameter{},
			Returns:     "array",
		},
		{
			ID:          "documents.grant",
			Name:        "Grant Folder",
			Description: "Grant access to a folder so its documents can be browsed",
			Parameters: []types.Parameter{
				{Name: "path", Type: "string", Description: "Folder path on the device", Required: true},
			},
			Returns: "object",
		},
		{
			ID:          "documents.revoke",
			Name:        "Revoke Folder",
			Description: "Remove a granted folder",
			Parameters: []types.Parameter{
				{Name: "root_id", Type: "string", Description: "Root ID", Required: true},
			},
			Returns: "boolean",
		},
		{
			ID:          "documents.list",
			Name:        "List Folder",
			Description: "List the documents in a folder",
			Parameters: []types.Parameter{
				{Name: "uri", Type: "string", Description: "Folder URI", Required: true},
				{Name: "show_hidden", Type: "boolean", Description: "Include dot files (default from settings)", Required: false},
				{Name: "sort", Type: "string", Description: "name, size or modified (default from settings)", Required: false},
				{Name: "descending", Type: "boolean", Description: "Reverse the order", Required: false},
			},
			Returns: "array",
		},
		{
			ID:          "documents.stat",
			Name:        "Document Info",
			Description: "Get metadata for a document",
			Parameters: []types.Parameter{
				{Name: "uri", Type: "string", Description: "Document URI", Required: true},
			},
			Returns: "object",
		},
		{
			ID:          "documents.walk",
			Name:        "Walk Folder",
			Description: "List every document below a folder",
			Parameters: []types.Parameter{
				{Name: "uri", Type: "string", Description: "Folder URI", Required: true},
				{Name: "max_depth", Type: "number", Description: "Levels to descend (0 = unlimited)", Required: false},
				{Name: "limit", Type: "number", Description: "Maximum documents (default 1000)", Required: false},
				{Name: "files_only", Type: "boolean", Description: "Skip directories", Required: false},
			},
			Returns: "array",
		},
		{
			ID:          "documents.find",
			Name:        "Find Documents",
			Description: "Find documents matching a glob pattern such as **/*.csv",
			Parameters: []types.Parameter{
				{Name: "uri", Type: "string", Description: "Folder URI", Required: true},
				{Name: "pattern", Type: "string", Description: "Glob pattern", Required: true},
				{Name: "limit", Type: "number", Description: "Maximum documents (default 1000)", Required: false},
			},
			Returns: "array",
		},
	}
}

func (p *Provider) roots() (*types.Result, error) {
	roots := p.tree.Roots()
	out := make([]map[string]interface{}, 0, len(roots))
	for _, r := range roots {
		out = append(out, rootData(r))
	}
	return types.Success(map[string]interface{}{"roots": out, "count": len(out)})
}

func (p *Provider) grant(params map[string]interface{}) (*types.Result, error) {
	path := types.GetString(params, "path")
	if path == "" {
		return types.Failure("path parameter required")
	}
	root, err := p.tree.Grant(path)
	if err != nil {
		return p.treeFailure("grant", err)
	}
	return types.Success(rootData(root))
}

func (p *Provider) revoke(params map[string]interface{}) (*types.Result, error) {
	rootID := types.GetString(params, "root_id")
	if rootID == "" {
		return types.Failure("root_id parameter required")
	}
	if err := p.tree.Revoke(rootID); err != nil {
		return p.treeFailure("revoke", err)
	}
	return types.Success(map[string]interface{}{"revoked": true, "root_id": rootID})
}

func (p *Provider) list(params map[string]interface{}) (*types.Result, error) {
	uri, ok := requireURI(params, "uri")
	if !ok {
		return types.Failure("uri parameter required")
	}

	docs, err := p.tree.List(uri)
	if err != nil {
		return p.treeFailure("list", err)
	}

	showHidden := types.GetBool(params, "show_hidden", p.prefs.Bool(settings.KeyShowHidden))
	docs = doctree.FilterHidden(docs, showHidden)

	order := types.GetString(params, "sort")
	if order == "" {
		order = p.prefs.String(settings.KeySort)
	}
	doctree.SortDocuments(docs, doctree.ParseSortOrder(order))
	if types.GetBool(params, "descending", p.prefs.Bool(settings.KeySortDescending)) {
		reverseWithinKind(docs)
	}

	return types.Success(map[string]interface{}{
		"uri":       uri,
		"documents": docs,
		"count":     len(docs),
		"sort":      string(doctree.ParseSortOrder(order)),
	})
}

// reverseWithinKind reverses files and directories separately so directories stay first
func reverseWithinKind(docs []doctree.Document) {
	split := sort.Search(len(docs), func(i int) bool { return !docs[i].IsDir })
	reverse(docs[:split])
	reverse(docs[split:])
}

func reverse(docs []doctree.Document) {
	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}
}

func (p *Provider) stat(params map[string]interface{}) (*types.Result, error) {
	uri, ok := requireURI(params, "uri")
	if !ok {
		return types.Failure("uri parameter required")
	}
	doc, err := p.tree.Stat(uri)
	if err != nil {
		return p.treeFailure("stat", err)
	}
	return types.Success(documentData(doc))
}

func (p *Provider) walk(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	uri, ok := requireURI(params, "uri")
	if !ok {
		return types.Failure("uri parameter required")
	}
	limit := clampLimit(types.GetInt(params, "limit", defaultWalkLimit))
	filesOnly := types.GetBool(params, "files_only", false)
	showHidden := p.prefs.Bool(settings.KeyShowHidden)

	docs := []doctree.Document{}
	err := p.tree.Walk(ctx, uri, types.GetInt(params, "max_depth", 0), func(d doctree.Document) error {
		if (filesOnly && d.IsDir) || (!showHidden && d.Hidden) {
			return nil
		}
		if len(docs) >= limit {
			return errLimitReached
		}
		docs = append(docs, d)
		return nil
	})
	truncated := errors.Is(err, errLimitReached)
	if err != nil && !truncated {
		return p.treeFailure("walk", err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return types.Success(map[string]interface{}{
		"uri":       uri,
		"documents": docs,
		"count":     len(docs),
		"truncated": truncated,
	})
}

func (p *Provider) find(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	uri, ok := requireURI(params, "uri")
	if !ok {
		return types.Failure("uri parameter required")
	}
	pattern := types.GetString(params, "pattern")
	if pattern == "" {
		return types.Failure("pattern parameter required")
	}
	limit := clampLimit(types.GetInt(params, "limit", defaultWalkLimit))

	docs, err := p.tree.Glob(ctx, uri, pattern)
	if err != nil {
		return p.treeFailure("find", err)
	}
	truncated := len(docs) > limit
	if truncated {
		docs = docs[:limit]
	}
	return types.Success(map[string]interface{}{
		"uri":       uri,
		"pattern":   pattern,
		"documents": docs,
		"count":     len(docs),
		"truncated": truncated,
	})
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultWalkLimit
	}
	if n > maxWalkLimit {
		return maxWalkLimit
	}
	return n
}

func rootData(r doctree.Root) map[string]interface{} {
	return map[string]interface{}{
		"root_id":    r.ID,
		"name":       r.Name,
		"path":       r.Path,
		"uri":        r.URI(),
		"granted_at": r.GrantedAt,
	}
}

func documentData(d doctree.Document) map[string]interface{} {
	return map[string]interface{}{
		"uri":       d.URI,
		"root_id":   d.RootID,
		"path":      d.Path,
		"name":      d.Name,
		"is_dir":    d.IsDir,
		"size":      d.Size,
		"modified":  d.Modified,
		"mime_type": d.MIMEType,
		"hidden":    d.Hidden,
		"is_text":   !d.IsDir && doctree.IsText(d.MIMEType),
	}
}
