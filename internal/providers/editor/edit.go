package editor

import (
	"fmt"

	"github.com/GriffinCanCode/filedeck/internal/domain/editor"
	"github.com/GriffinCanCode/filedeck/internal/domain/workspace"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/GriffinCanCode/filedeck/internal/shared/utils"
)

func (p *Provider) editTools() []types.Tool {
	sessionParam := types.Parameter{Name: "session_id", Type: "string", Description: "Edit session ID", Required: true}

	return []types.Tool{
		{
			ID:          "editor.set_content",
			Name:        "Set Content",
			Description: "Replace the editable text, recording an undo step",
			Parameters: []types.Parameter{
				sessionParam,
				{Name: "content", Type: "string", Description: "New text", Required: true},
			},
			Returns: "object",
		},
		{
			ID:          "editor.undo",
			Name:        "Undo",
			Description: "Revert the last change (edit mode only)",
			Parameters:  []types.Parameter{sessionParam},
			Returns:     "object",
		},
		{
			ID:          "editor.redo",
			Name:        "Redo",
			Description: "Reapply the last undone change (edit mode only)",
			Parameters:  []types.Parameter{sessionParam},
			Returns:     "object",
		},
		{
			ID:          "editor.search",
			Name:        "Search",
			Description: "Find case-insensitive matches in the active buffer",
			Parameters: []types.Parameter{
				sessionParam,
				{Name: "query", Type: "string", Description: "Text to find; empty clears the search", Required: false},
			},
			Returns: "object",
		},
		{
			ID:          "editor.next",
			Name:        "Next Match",
			Description: "Select the next match, wrapping at the end",
			Parameters:  []types.Parameter{sessionParam},
			Returns:     "object",
		},
		{
			ID:          "editor.previous",
			Name:        "Previous Match",
			Description: "Select the previous match, wrapping at the start",
			Parameters:  []types.Parameter{sessionParam},
			Returns:     "object",
		},
		{
			ID:          "editor.replace_current",
			Name:        "Replace Match",
			Description: "Replace the selected match",
			Parameters: []types.Parameter{
				sessionParam,
				{Name: "replacement", Type: "string", Description: "Replacement text", Required: false},
			},
			Returns: "object",
		},
		{
			ID:          "editor.replace_all",
			Name:        "Replace All",
			Description: "Replace every match of the current search",
			Parameters: []types.Parameter{
				sessionParam,
				{Name: "replacement", Type: "string", Description: "Replacement text", Required: false},
			},
			Returns: "object",
		},
	}
}

func (p *Provider) setContent(sess *workspace.Session, params map[string]interface{}) (*types.Result, error) {
	content, ok := params["content"].(string)
	if !ok {
		return types.Failure("content parameter required")
	}
	if err := utils.ValidateContent(content); err != nil {
		return types.Failure(err.Error())
	}
	return p.edit(sess, func(e *editor.Engine) (map[string]interface{}, error) {
		if e.Mode() != editor.ModeEdit {
			return nil, editor.ErrReadOnly
		}
		return map[string]interface{}{"changed": e.SetContent(content)}, nil
	})
}

func (p *Provider) undo(sess *workspace.Session) (*types.Result, error) {
	return p.edit(sess, func(e *editor.Engine) (map[string]interface{}, error) {
		if e.Mode() != editor.ModeEdit {
			return nil, editor.ErrReadOnly
		}
		return map[string]interface{}{"changed": e.Undo()}, nil
	})
}

func (p *Provider) redo(sess *workspace.Session) (*types.Result, error) {
	return p.edit(sess, func(e *editor.Engine) (map[string]interface{}, error) {
		if e.Mode() != editor.ModeEdit {
			return nil, editor.ErrReadOnly
		}
		return map[string]interface{}{"changed": e.Redo()}, nil
	})
}

func (p *Provider) search(sess *workspace.Session, params map[string]interface{}) (*types.Result, error) {
	query := types.GetString(params, "query")
	return p.edit(sess, func(e *editor.Engine) (map[string]interface{}, error) {
		count := e.Search(query)
		return map[string]interface{}{
			"count":     count,
			"positions": editor.Locate(e.Active(), e.Matches()),
		}, nil
	})
}

func (p *Provider) step(sess *workspace.Session, forward bool) (*types.Result, error) {
	return p.edit(sess, func(e *editor.Engine) (map[string]interface{}, error) {
		var (
			rg    editor.Range
			found bool
		)
		if forward {
			rg, found = e.NextMatch()
		} else {
			rg, found = e.PreviousMatch()
		}
		data := map[string]interface{}{"found": found}
		if found {
			pos := editor.Locate(e.Active(), []editor.Range{rg})
			data["selection"] = pos[0]
		}
		return data, nil
	})
}

func (p *Provider) replaceCurrent(sess *workspace.Session, params map[string]interface{}) (*types.Result, error) {
	replacement := types.GetString(params, "replacement")
	return p.edit(sess, func(e *editor.Engine) (map[string]interface{}, error) {
		if err := checkReplacement(e, replacement, false); err != nil {
			return nil, err
		}
		if err := e.ReplaceCurrent(replacement); err != nil {
			return nil, err
		}
		return map[string]interface{}{"replaced": 1}, nil
	})
}

func (p *Provider) replaceAll(sess *workspace.Session, params map[string]interface{}) (*types.Result, error) {
	replacement := types.GetString(params, "replacement")
	return p.edit(sess, func(e *editor.Engine) (map[string]interface{}, error) {
		if err := checkReplacement(e, replacement, true); err != nil {
			return nil, err
		}
		n, err := e.ReplaceAll(replacement)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"replaced": n}, nil
	})
}

// checkReplacement rejects replacements that would push the document past the
// editable size limit
func checkReplacement(e *editor.Engine, replacement string, all bool) error {
	if e.Mode() != editor.ModeEdit {
		return editor.ErrReadOnly
	}
	if err := utils.ValidateContent(replacement); err != nil {
		return err
	}
	if size := e.ReplacedSize(replacement, all); size > utils.MaxContentSize {
		return fmt.Errorf("replacement would grow the document to %d bytes, above the %d byte limit", size, utils.MaxContentSize)
	}
	return nil
}
