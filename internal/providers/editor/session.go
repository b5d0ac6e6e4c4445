package editor

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/domain/editor"
	"github.com/GriffinCanCode/filedeck/internal/domain/workspace"
	"github.com/GriffinCanCode/filedeck/internal/providers/settings"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/GriffinCanCode/filedeck/internal/shared/utils"
	"go.uber.org/zap"
)

func (p *Provider) sessionTools() []types.Tool {
	sessionParam := types.Parameter{Name: "session_id", Type: "string", Description: "Edit session ID", Required: true}

	return []types.Tool{
		{
			ID:          "editor.open",
			Name:        "Open Document",
			Description: "Open a text document for viewing or editing",
			Parameters: []types.Parameter{
				{Name: "uri", Type: "string", Description: "Document URI", Required: true},
				{Name: "mode", Type: "string", Description: "view or edit (default from settings)", Required: false},
				{Name: "encoding", Type: "string", Description: "Character set (default: detect)", Required: false},
			},
			Returns: "object",
		},
		{
			ID:          "editor.list",
			Name:        "List Sessions",
			Description: "List your open edit sessions",
			Parameters:  []types.Parameter{},
			Returns:     "array",
		},
		{
			ID:          "editor.state",
			Name:        "Session State",
			Description: "Get the content, mode, history and search state of a session",
			Parameters:  []types.Parameter{sessionParam},
			Returns:     "object",
		},
		{
			ID:          "editor.mode",
			Name:        "Set Mode",
			Description: "Switch between view and edit mode",
			Parameters: []types.Parameter{
				sessionParam,
				{Name: "mode", Type: "string", Description: "view or edit", Required: true},
			},
			Returns: "object",
		},
		{
			ID:          "editor.save",
			Name:        "Save Document",
			Description: "Write the edited text back to its document",
			Parameters:  []types.Parameter{sessionParam},
			Returns:     "object",
		},
		{
			ID:          "editor.close",
			Name:        "Close Session",
			Description: "Close a session; unsaved changes require discard",
			Parameters: []types.Parameter{
				sessionParam,
				{Name: "discard", Type: "boolean", Description: "Drop unsaved changes", Required: false},
			},
			Returns: "boolean",
		},
	}
}

func (p *Provider) open(params map[string]interface{}, owner string) (*types.Result, error) {
	uri := types.GetString(params, "uri")
	if uri == "" {
		return types.Failure("uri parameter required")
	}

	modeName := types.GetString(params, "mode")
	if modeName == "" {
		modeName = p.prefs.String(settings.KeyDefaultMode)
	}
	mode, err := editor.ParseMode(modeName)
	if err != nil {
		return types.Failure(err.Error())
	}

	text, err := doctree.ReadText(p.tree, uri, doctree.ReadOptions{
		MaxBytes: utils.MaxContentSize,
		Encoding: types.GetString(params, "encoding"),
	})
	if err != nil {
		return p.treeFailure("open", err)
	}
	if text.Truncated {
		return types.Failure(fmt.Sprintf("document exceeds the %d byte editing limit", utils.MaxContentSize))
	}

	sess, reused, err := p.workspace.Open(workspace.OpenRequest{
		URI:          uri,
		Name:         text.Name,
		Owner:        owner,
		Text:         text.Content,
		Encoding:     text.Encoding,
		BOM:          text.BOM,
		Mode:         mode,
		HistoryDepth: p.prefs.Int(settings.KeyHistoryDepth),
	})
	if err != nil {
		return types.Failure(err.Error())
	}

	if p.metrics != nil && !reused {
		p.metrics.RecordDocumentRead(int64(text.BytesRead))
	}

	var data map[string]interface{}
	if err := sess.Do(func(e *editor.Engine) error {
		data = stateData(sess, e)
		return nil
	}); err != nil {
		return types.Failure(err.Error())
	}
	data["reused"] = reused
	data["encoding"] = sess.Encoding
	data["bom"] = sess.BOM
	data["confidence"] = text.Confidence
	return types.Success(data)
}

func (p *Provider) list(owner string) (*types.Result, error) {
	sessions := p.workspace.List(owner)
	return types.Success(map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (p *Provider) state(sess *workspace.Session) (*types.Result, error) {
	return p.edit(sess, func(e *editor.Engine) (map[string]interface{}, error) {
		return map[string]interface{}{"encoding": sess.Encoding}, nil
	})
}

func (p *Provider) mode(sess *workspace.Session, params map[string]interface{}) (*types.Result, error) {
	mode, err := editor.ParseMode(types.GetString(params, "mode"))
	if err != nil {
		return types.Failure(err.Error())
	}
	return p.edit(sess, func(e *editor.Engine) (map[string]interface{}, error) {
		e.SetMode(mode)
		return nil, nil
	})
}

func (p *Provider) save(sess *workspace.Session) (*types.Result, error) {
	var written int64
	res, err := p.edit(sess, func(e *editor.Engine) (map[string]interface{}, error) {
		content := e.Content()
		if err := utils.ValidateContent(content); err != nil {
			return nil, err
		}
		doc, n, err := doctree.WriteText(p.tree, sess.URI, content, sess.Encoding, sess.BOM)
		if err != nil {
			return nil, fmt.Errorf("save failed: %w", err)
		}
		e.MarkSaved()
		written = n
		return map[string]interface{}{
			"bytes_written": n,
			"modified":      doc.Modified,
		}, nil
	})
	if err == nil && res.Success {
		if p.metrics != nil {
			p.metrics.RecordDocumentWrite(written)
		}
		p.log.Debug("document saved",
			zap.String("session_id", sess.ID.String()),
			zap.String("uri", sess.URI),
			zap.Int64("bytes", written),
		)
	}
	return res, err
}

func (p *Provider) close(sess *workspace.Session, params map[string]interface{}) (*types.Result, error) {
	var dirty bool
	if err := sess.Do(func(e *editor.Engine) error {
		dirty = e.Dirty()
		return nil
	}); err != nil {
		return types.Failure(err.Error())
	}
	if dirty && !types.GetBool(params, "discard", false) {
		return types.Failure("session has unsaved changes; save first or close with discard")
	}
	if err := p.workspace.Close(sess.ID.String()); err != nil {
		return types.Failure(err.Error())
	}
	return types.Success(map[string]interface{}{
		"closed":    true,
		"discarded": dirty,
	})
}

// treeFailure reports document errors; unexpected ones are logged
func (p *Provider) treeFailure(op string, err error) (*types.Result, error) {
	switch {
	case errors.Is(err, doctree.ErrNotFound),
		errors.Is(err, doctree.ErrUnknownRoot),
		errors.Is(err, doctree.ErrIsDir),
		errors.Is(err, doctree.ErrNotText),
		errors.Is(err, doctree.ErrOutsideRoot):
	default:
		p.log.Warn("editor document operation failed", zap.String("op", op), zap.Error(err))
	}
	return types.Failure(fmt.Sprintf("%s failed: %v", op, err))
}
