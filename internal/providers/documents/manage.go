package documents

import (
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/GriffinCanCode/filedeck/internal/shared/utils"
)

func (p *Provider) manageTools() []types.Tool {
	return []types.Tool{
		{
			ID:          "documents.create",
			Name:        "Create Document",
			Description: "Create an empty file or a folder",
			Parameters: []types.Parameter{
				{Name: "parent", Type: "string", Description: "Parent folder URI", Required: true},
				{Name: "name", Type: "string", Description: "New document name", Required: true},
				{Name: "directory", Type: "boolean", Description: "Create a folder instead of a file", Required: false},
			},
			Returns: "object",
		},
		{
			ID:          "documents.delete",
			Name:        "Delete Document",
			Description: "Delete a file or a folder with its contents",
			Parameters: []types.Parameter{
				{Name: "uri", Type: "string", Description: "Document URI", Required: true},
			},
			Returns: "boolean",
		},
		{
			ID:          "documents.rename",
			Name:        "Rename Document",
			Description: "Rename a document within its folder",
			Parameters: []types.Parameter{
				{Name: "uri", Type: "string", Description: "Document URI", Required: true},
				{Name: "name", Type: "string", Description: "New name", Required: true},
			},
			Returns: "object",
		},
	}
}

func (p *Provider) create(params map[string]interface{}) (*types.Result, error) {
	parent, ok := requireURI(params, "parent")
	if !ok {
		return types.Failure("parent parameter required")
	}
	name := types.GetString(params, "name")
	if err := utils.ValidateFileName(name); err != nil {
		return types.Failure(err.Error())
	}

	doc, err := p.tree.Create(parent, name, types.GetBool(params, "directory", false))
	if err != nil {
		return p.treeFailure("create", err)
	}
	return types.Success(documentData(doc))
}

func (p *Provider) delete(params map[string]interface{}) (*types.Result, error) {
	uri, ok := requireURI(params, "uri")
	if !ok {
		return types.Failure("uri parameter required")
	}
	if err := p.tree.Delete(uri); err != nil {
		return p.treeFailure("delete", err)
	}
	return types.Success(map[string]interface{}{"deleted": true, "uri": uri})
}

func (p *Provider) rename(params map[string]interface{}) (*types.Result, error) {
	uri, ok := requireURI(params, "uri")
	if !ok {
		return types.Failure("uri parameter required")
	}
	name := types.GetString(params, "name")
	if err := utils.ValidateFileName(name); err != nil {
		return types.Failure(err.Error())
	}

	doc, err := p.tree.Rename(uri, name)
	if err != nil {
		return p.treeFailure("rename", err)
	}
	data := documentData(doc)
	data["previous_uri"] = uri
	return types.Success(data)
}
