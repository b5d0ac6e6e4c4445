package search

import (
	"context"

	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/sahilm/fuzzy"
)

// FileMatch is a document whose name matched a fuzzy query
type FileMatch struct {
	URI     string `json:"uri"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	IsDir   bool   `json:"is_dir"`
	Score   int    `json:"score"`
	Matched []int  `json:"matched"` // byte offsets of matched characters in Name
}

// names adapts a document listing to fuzzy.Source
type names []doctree.Document

func (n names) String(i int) string { return n[i].Name }
func (n names) Len() int            { return len(n) }

// searchFiles searches for documents by name
func (p *Provider) searchFiles(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	query, msg := queryParam(params)
	if msg != "" {
		return types.Failure(msg)
	}
	limit := p.limit(params)
	filesOnly := types.GetBool(params, "files_only", false)

	docs, truncated, err := p.listing(ctx, p.scopes(params), func(d doctree.Document) bool {
		return !filesOnly || !d.IsDir
	})
	if err != nil {
		return p.searchFailure("search.files", err)
	}

	matches := fuzzy.FindFrom(query, names(docs))
	results := make([]FileMatch, 0, min(len(matches), limit))
	for _, m := range matches {
		if len(results) == limit {
			break
		}
		d := docs[m.Index]
		results = append(results, FileMatch{
			URI:     d.URI,
			Name:    d.Name,
			Path:    d.Path,
			IsDir:   d.IsDir,
			Score:   m.Score,
			Matched: m.MatchedIndexes,
		})
	}

	return types.Success(map[string]interface{}{
		"results":   results,
		"count":     len(results),
		"total":     len(matches),
		"scanned":   len(docs),
		"truncated": truncated,
	})
}
