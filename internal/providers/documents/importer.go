package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/shared/paths"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/GriffinCanCode/filedeck/internal/shared/utils"
	"go.uber.org/zap"
)

func (p *Provider) importTools() []types.Tool {
	return []types.Tool{
		{
			ID:          "documents.import_url",
			Name:        "Import From URL",
			Description: "Download a file from an http(s) URL into a folder",
			Parameters: []types.Parameter{
				{Name: "url", Type: "string", Description: "Source URL", Required: true},
				{Name: "parent", Type: "string", Description: "Destination folder URI", Required: true},
				{Name: "name", Type: "string", Description: "File name (default from the response or URL)", Required: false},
				{Name: "overwrite", Type: "boolean", Description: "Replace an existing file", Required: false},
			},
			Returns: "object",
		},
	}
}

func (p *Provider) importURL(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	rawURL := types.GetString(params, "url")
	if rawURL == "" {
		return types.Failure("url parameter required")
	}
	parent, ok := requireURI(params, "parent")
	if !ok {
		return types.Failure("parent parameter required")
	}
	parentRef, err := paths.ParseURI(parent)
	if err != nil {
		return types.Failure(err.Error())
	}
	if dir, err := p.tree.Stat(parent); err != nil {
		return p.treeFailure("import", err)
	} else if !dir.IsDir {
		return p.treeFailure("import", fmt.Errorf("%w: %s", doctree.ErrNotDir, parent))
	}

	name := types.GetString(params, "name")
	overwrite := types.GetBool(params, "overwrite", false)

	var (
		doc     doctree.Document
		written int64
		source  Download
	)
	err = p.fetcher.Fetch(ctx, rawURL, func(d Download) error {
		source = d
		if name == "" {
			name = d.Name
		}
		if err := utils.ValidateFileName(name); err != nil {
			return err
		}
		target := parentRef.Child(name).URI()
		if !overwrite {
			if _, err := p.tree.Stat(target); err == nil {
				return fmt.Errorf("%w: %s", doctree.ErrExists, name)
			}
		}
		var werr error
		doc, written, werr = p.tree.Write(target, d.Body)
		return werr
	})
	if err != nil {
		if errors.Is(err, doctree.ErrExists) || errors.Is(err, doctree.ErrNotFound) || errors.Is(err, doctree.ErrIsDir) {
			return p.treeFailure("import", err)
		}
		p.log.Info("import failed", zap.String("url", rawURL), zap.Error(err))
		return types.Failure(fmt.Sprintf("import failed: %v", err))
	}
	if p.metrics != nil {
		p.metrics.RecordDocumentWrite(written)
	}

	data := documentData(doc)
	data["imported"] = true
	data["bytes"] = written
	data["source_url"] = rawURL
	data["content_type"] = source.ContentType
	return types.Success(data)
}
