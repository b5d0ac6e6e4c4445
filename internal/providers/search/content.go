package search

import (
	"context"
	"errors"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/domain/editor"
	"github.com/GriffinCanCode/filedeck/internal/providers/settings"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"go.uber.org/zap"
)

// maxPreviewRunes bounds the line text returned with a hit
const maxPreviewRunes = 200

// ContentMatch is one occurrence of the query inside a document
type ContentMatch struct {
	URI     string `json:"uri"`
	Name    string `json:"name"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Preview string `json:"preview"`
}

// extensionFilter returns a predicate for the given extensions, nil for all
func extensionFilter(exts []string) func(string) bool {
	if len(exts) == 0 {
		return nil
	}
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			set[e] = true
		}
	}
	return func(name string) bool {
		return set[strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))]
	}
}

// searchContent searches document contents
func (p *Provider) searchContent(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	query, msg := queryParam(params)
	if msg != "" {
		return types.Failure(msg)
	}
	limit := p.limit(params)
	maxBytes := int64(p.prefs.Int(settings.KeyMaxReadBytes))
	allowed := extensionFilter(types.GetStrings(params, "extensions"))

	docs, truncated, err := p.listing(ctx, p.scopes(params), func(d doctree.Document) bool {
		if d.IsDir || !doctree.IsText(d.MIMEType) {
			return false
		}
		return allowed == nil || allowed(d.Name)
	})
	if err != nil {
		return p.searchFailure("search.content", err)
	}

	results := make([]ContentMatch, 0)
	files, skipped := 0, 0
	for _, d := range docs {
		if len(results) >= limit {
			truncated = true
			break
		}
		if err := ctx.Err(); err != nil {
			return p.searchFailure("search.content", err)
		}
		if d.Size > maxBytes {
			skipped++
			continue
		}

		text, err := doctree.ReadText(p.tree, d.URI, doctree.ReadOptions{MaxBytes: maxBytes})
		if err != nil {
			if !errors.Is(err, doctree.ErrNotText) {
				p.log.Debug("skipping unreadable document", zap.String("uri", d.URI), zap.Error(err))
			}
			skipped++
			continue
		}

		ranges := editor.FindFirst(query, text.Content, limit-len(results))
		if len(ranges) == 0 {
			continue
		}
		files++
		lines := strings.Split(text.Content, "\n")
		for _, pos := range editor.Locate(text.Content, ranges) {
			results = append(results, ContentMatch{
				URI:     d.URI,
				Name:    d.Name,
				Line:    pos.Line,
				Column:  pos.Column,
				Start:   pos.Start,
				End:     pos.End,
				Preview: preview(lines[pos.Line-1]),
			})
		}
	}

	return types.Success(map[string]interface{}{
		"results":   results,
		"count":     len(results),
		"files":     files,
		"scanned":   len(docs),
		"skipped":   skipped,
		"truncated": truncated,
	})
}

// preview trims a line for display
func preview(line string) string {
	line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
	if utf8.RuneCountInString(line) <= maxPreviewRunes {
		return line
	}
	return string([]rune(line)[:maxPreviewRunes]) + "…"
}
