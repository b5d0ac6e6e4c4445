package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/domain/editor"
	"github.com/GriffinCanCode/filedeck/internal/domain/workspace"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/filedeck/internal/providers/settings"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"go.uber.org/zap"
)

// Provider exposes editor sessions as tools
type Provider struct {
	tree      doctree.Tree
	workspace *workspace.Manager
	prefs     settings.Preferences
	metrics   *monitoring.Metrics
	log       *zap.Logger
}

// Options configures a Provider
type Options struct {
	Tree      doctree.Tree
	Workspace *workspace.Manager
	Prefs     settings.Preferences
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
}

// NewProvider creates an editor provider
func NewProvider(opts Options) *Provider {
	p := &Provider{
		tree:      opts.Tree,
		workspace: opts.Workspace,
		prefs:     opts.Prefs,
		metrics:   opts.Metrics,
		log:       opts.Logger,
	}
	if p.prefs == nil {
		p.prefs = settings.Defaults()
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if p.workspace == nil {
		p.workspace = workspace.NewManager(workspace.Options{Metrics: opts.Metrics, Logger: p.log})
	}
	return p
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	tools := p.sessionTools()
	tools = append(tools, p.editTools()...)
	tools = append(tools, p.analysisTools()...)

	return types.Service{
		ID:          "editor",
		Name:        "Text Editor Service",
		Description: "Open text documents and edit them with undo redo search and replace",
		Category:    types.CategoryEditor,
		Capabilities: []string{
			"edit",
			"undo",
			"redo",
			"search",
			"replace",
			"diff",
			"summary",
			"save",
		},
		Tools: tools,
	}
}

// Execute runs an editor operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	owner := appCtx.User()

	switch toolID {
	case "editor.open":
		return p.open(params, owner)
	case "editor.list":
		return p.list(owner)
	}

	sess, res := p.session(params, owner)
	if sess == nil {
		return res, nil
	}

	var (
		result *types.Result
		err    error
	)
	switch toolID {
	case "editor.state":
		result, err = p.state(sess)
	case "editor.mode":
		result, err = p.mode(sess, params)
	case "editor.set_content":
		result, err = p.setContent(sess, params)
	case "editor.undo":
		result, err = p.undo(sess)
	case "editor.redo":
		result, err = p.redo(sess)
	case "editor.search":
		result, err = p.search(sess, params)
	case "editor.next":
		result, err = p.step(sess, true)
	case "editor.previous":
		result, err = p.step(sess, false)
	case "editor.replace_current":
		result, err = p.replaceCurrent(sess, params)
	case "editor.replace_all":
		result, err = p.replaceAll(sess, params)
	case "editor.diff":
		result, err = p.diff(sess, params)
	case "editor.summary":
		result, err = p.summary(sess, params)
	case "editor.save":
		result, err = p.save(sess)
	case "editor.close":
		result, err = p.close(sess, params)
	default:
		return types.Failure(fmt.Sprintf("unknown tool: %s", toolID))
	}

	if p.metrics != nil && err == nil && result != nil && result.Success {
		p.metrics.RecordEditOperation(toolID[len("editor."):])
	}
	return result, err
}

// session resolves the session_id parameter for owner. On failure it
// returns a nil session and the failed result.
func (p *Provider) session(params map[string]interface{}, owner string) (*workspace.Session, *types.Result) {
	sessionID := types.GetString(params, "session_id")
	if sessionID == "" {
		res, _ := types.Failure("session_id parameter required")
		return nil, res
	}
	sess, err := p.workspace.GetFor(sessionID, owner)
	if err != nil {
		res, _ := types.Failure(err.Error())
		return nil, res
	}
	return sess, nil
}

// edit runs fn against the session engine and returns its data merged with
// the resulting snapshot. Engine errors become failed results.
func (p *Provider) edit(sess *workspace.Session, fn func(e *editor.Engine) (map[string]interface{}, error)) (*types.Result, error) {
	var data map[string]interface{}
	err := sess.Do(func(e *editor.Engine) error {
		extra, err := fn(e)
		if err != nil {
			return err
		}
		data = stateData(sess, e)
		for k, v := range extra {
			data[k] = v
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, editor.ErrReadOnly):
			return types.Failure("document is in view mode; switch to edit mode first")
		case errors.Is(err, editor.ErrNoMatch):
			return types.Failure("no match selected; run a search first")
		default:
			return types.Failure(err.Error())
		}
	}
	return types.Success(data)
}

func stateData(sess *workspace.Session, e *editor.Engine) map[string]interface{} {
	state := e.Snapshot()
	return map[string]interface{}{
		"session_id":    sess.ID.String(),
		"uri":           sess.URI,
		"name":          sess.Name,
		"content":       state.Content,
		"mode":          string(state.Mode),
		"can_undo":      state.CanUndo,
		"can_redo":      state.CanRedo,
		"undo_depth":    state.UndoDepth,
		"redo_depth":    state.RedoDepth,
		"query":         state.Query,
		"matches":       state.Matches,
		"match_count":   len(state.Matches),
		"current_match": state.CurrentMatch,
		"dirty":         state.Dirty,
	}
}
