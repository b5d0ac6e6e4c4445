package editor

import (
	"strings"

	"github.com/GriffinCanCode/filedeck/internal/domain/editor"
	"github.com/GriffinCanCode/filedeck/internal/domain/summary"
	"github.com/GriffinCanCode/filedeck/internal/domain/workspace"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/sergi/go-diff/diffmatchpatch"
)

func (p *Provider) analysisTools() []types.Tool {
	sessionParam := types.Parameter{Name: "session_id", Type: "string", Description: "Edit session ID", Required: true}

	return []types.Tool{
		{
			ID:          "editor.diff",
			Name:        "Diff Changes",
			Description: "Compare the edited text with the last saved text",
			Parameters: []types.Parameter{
				sessionParam,
				{Name: "patch", Type: "boolean", Description: "Include a unified patch (default true)", Required: false},
			},
			Returns: "object",
		},
		{
			ID:          "editor.summary",
			Name:        "Summarize",
			Description: "Word, line and sentence counts with keywords and highlight sentences",
			Parameters: []types.Parameter{
				sessionParam,
				{Name: "keywords", Type: "number", Description: "Keywords to report (default 10)", Required: false},
				{Name: "sentences", Type: "number", Description: "Highlight sentences (default 3)", Required: false},
			},
			Returns: "object",
		},
	}
}

// Hunk is one run of the character diff
type Hunk struct {
	Op   string `json:"op"` // equal, insert or delete
	Text string `json:"text"`
}

func (p *Provider) diff(sess *workspace.Session, params map[string]interface{}) (*types.Result, error) {
	withPatch := types.GetBool(params, "patch", true)

	var saved, current string
	if err := sess.Do(func(e *editor.Engine) error {
		saved, current = e.Loaded(), e.Content()
		return nil
	}); err != nil {
		return types.Failure(err.Error())
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(saved, current, false))

	hunks := make([]Hunk, 0, len(diffs))
	for _, d := range diffs {
		hunks = append(hunks, Hunk{Op: opName(d.Type), Text: d.Text})
	}

	added, removed := lineChanges(dmp, saved, current)
	data := map[string]interface{}{
		"session_id":    sess.ID.String(),
		"changed":       saved != current,
		"hunks":         hunks,
		"lines_added":   added,
		"lines_removed": removed,
		"distance":      dmp.DiffLevenshtein(diffs),
	}
	if withPatch {
		data["patch"] = dmp.PatchToText(dmp.PatchMake(saved, diffs))
	}
	return types.Success(data)
}

// lineChanges counts added and removed lines using a line-mode diff
func lineChanges(dmp *diffmatchpatch.DiffMatchPatch, a, b string) (added, removed int) {
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			removed += countLines(d.Text)
		}
	}
	return added, removed
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

func opName(op diffmatchpatch.Operation) string {
	switch op {
	case diffmatchpatch.DiffInsert:
		return "insert"
	case diffmatchpatch.DiffDelete:
		return "delete"
	default:
		return "equal"
	}
}

func (p *Provider) summary(sess *workspace.Session, params map[string]interface{}) (*types.Result, error) {
	opts := summary.Options{
		Keywords:     types.GetInt(params, "keywords", 10),
		MaxSentences: types.GetInt(params, "sentences", 3),
	}
	var s summary.Summary
	if err := sess.Do(func(e *editor.Engine) error {
		s = summary.Summarize(e.Active(), opts)
		return nil
	}); err != nil {
		return types.Failure(err.Error())
	}
	return types.Success(map[string]interface{}{
		"session_id": sess.ID.String(),
		"words":      s.Words,
		"lines":      s.Lines,
		"characters": s.Characters,
		"sentences":  s.Sentences,
		"keywords":   s.Keywords,
		"highlights": s.Highlights,
	})
}
