package editor

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"
)

// DefaultHistoryDepth bounds the undo and redo stacks when no depth is configured
const DefaultHistoryDepth = 50

var (
	// ErrReadOnly is returned when a replacement is attempted in view mode
	ErrReadOnly = errors.New("document is in view mode")
	// ErrNoMatch is returned when there is no selected match to replace
	ErrNoMatch = errors.New("no match selected")
	// ErrInvalidMode is returned by ParseMode for unknown modes
	ErrInvalidMode = errors.New("invalid editor mode")
)

// Mode selects which buffer is active
type Mode string

const (
	// ModeView shows the loaded text; replacements are rejected
	ModeView Mode = "view"
	// ModeEdit shows the editable text
	ModeEdit Mode = "edit"
)

// ParseMode parses a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeView, ModeEdit:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Option configures an Engine
type Option func(*Engine)

// WithHistoryDepth sets the undo/redo capacity; values below 1 keep the default
func WithHistoryDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.depth = depth
		}
	}
}

// WithMode sets the initial mode
func WithMode(m Mode) Option {
	return func(e *Engine) {
		e.mode = m
	}
}

// Engine holds one document's text, history and search state
type Engine struct {
	loaded  string
	current string
	mode    Mode
	depth   int

	undo *history[string]
	redo *history[string]

	query    string
	matches  []Range
	selected int
}

// New creates an engine with text as both the loaded and editable buffer
func New(text string, opts ...Option) *Engine {
	e := &Engine{
		loaded:   text,
		current:  text,
		mode:     ModeView,
		depth:    DefaultHistoryDepth,
		selected: -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.undo = newHistory[string](e.depth)
	e.redo = newHistory[string](e.depth)
	return e
}

// Content returns the editable text
func (e *Engine) Content() string {
	return e.current
}

// Loaded returns the text as last loaded or saved
func (e *Engine) Loaded() string {
	return e.loaded
}

// Active returns the buffer searches run against
func (e *Engine) Active() string {
	if e.mode == ModeEdit {
		return e.current
	}
	return e.loaded
}

// Mode returns the current mode
func (e *Engine) Mode() Mode {
	return e.mode
}

// SetMode switches buffers and clears search state
func (e *Engine) SetMode(m Mode) {
	e.mode = m
	e.clearSearch()
}

// HistoryDepth returns the undo/redo capacity
func (e *Engine) HistoryDepth() int {
	return e.depth
}

// SetContent replaces the editable text. It reports false, recording no
// history, when text equals the current content.
func (e *Engine) SetContent(text string) bool {
	if text == e.current {
		return false
	}
	e.undo.push(e.current)
	e.redo.clear()
	e.current = text
	e.refresh()
	return true
}

// Undo restores the previous content
func (e *Engine) Undo() bool {
	prev, ok := e.undo.pop()
	if !ok {
		return false
	}
	e.redo.push(e.current)
	e.current = prev
	e.refresh()
	return true
}

// Redo re-applies the most recently undone content
func (e *Engine) Redo() bool {
	next, ok := e.redo.pop()
	if !ok {
		return false
	}
	e.undo.push(e.current)
	e.current = next
	e.refresh()
	return true
}

// CanUndo reports whether the undo stack is non-empty
func (e *Engine) CanUndo() bool {
	return e.undo.len() > 0
}

// CanRedo reports whether the redo stack is non-empty
func (e *Engine) CanRedo() bool {
	return e.redo.len() > 0
}

// Search finds all occurrences of query in the active buffer, selects the
// first and returns the match count. A blank query clears the results.
func (e *Engine) Search(query string) int {
	e.query = query
	e.matches = FindAll(query, e.Active())
	e.selected = -1
	if len(e.matches) > 0 {
		e.selected = 0
	}
	return len(e.matches)
}

// Query returns the last search query
func (e *Engine) Query() string {
	return e.query
}

// Matches returns a copy of the current match list
func (e *Engine) Matches() []Range {
	return append([]Range(nil), e.matches...)
}

// Selected returns the selected match and whether there is one
func (e *Engine) Selected() (Range, bool) {
	if e.selected < 0 || e.selected >= len(e.matches) {
		return Range{}, false
	}
	return e.matches[e.selected], true
}

// SelectedIndex returns the index of the selected match, or -1
func (e *Engine) SelectedIndex() int {
	return e.selected
}

// NextMatch advances the selection, wrapping at the end
func (e *Engine) NextMatch() (Range, bool) {
	if len(e.matches) == 0 {
		return Range{}, false
	}
	e.selected = (e.selected + 1) % len(e.matches)
	return e.matches[e.selected], true
}

// PreviousMatch moves the selection back, wrapping at the start
func (e *Engine) PreviousMatch() (Range, bool) {
	if len(e.matches) == 0 {
		return Range{}, false
	}
	e.selected = (e.selected - 1 + len(e.matches)) % len(e.matches)
	return e.matches[e.selected], true
}

// ReplaceCurrent replaces the selected match and searches again, which
// selects the first remaining match.
func (e *Engine) ReplaceCurrent(replacement string) error {
	if e.mode != ModeEdit {
		return ErrReadOnly
	}
	rg, ok := e.Selected()
	if !ok {
		return ErrNoMatch
	}
	e.SetContent(string(splice([]rune(e.current), rg, []rune(replacement))))
	e.Search(e.query)
	return nil
}

// ReplaceAll replaces every match as a single undoable edit, clears the
// search state and returns the number of replacements.
func (e *Engine) ReplaceAll(replacement string) (int, error) {
	if e.mode != ModeEdit {
		return 0, ErrReadOnly
	}
	matches := e.Matches()
	if len(matches) == 0 {
		e.clearSearch()
		return 0, nil
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Start > matches[j].Start })
	text := []rune(e.current)
	repl := []rune(replacement)
	for _, rg := range matches {
		text = splice(text, rg, repl)
	}

	e.SetContent(string(text))
	e.clearSearch()
	return len(matches), nil
}

// ReplacedSize returns the length in bytes the active text would have after
// replacing the selected match, or every match when all is set
func (e *Engine) ReplacedSize(replacement string, all bool) int {
	text := e.Active()
	matches := e.matches
	if !all {
		rg, ok := e.Selected()
		if !ok {
			return len(text)
		}
		matches = []Range{rg}
	}
	if len(matches) == 0 {
		return len(text)
	}

	runes := []rune(text)
	size := len(text)
	for _, rg := range matches {
		size += len(replacement)
		for _, r := range runes[rg.Start:rg.End] {
			size -= utf8.RuneLen(r)
		}
	}
	return size
}

// Dirty reports whether the editable text differs from the loaded text
func (e *Engine) Dirty() bool {
	return e.current != e.loaded
}

// MarkSaved records the editable text as the loaded text
func (e *Engine) MarkSaved() {
	e.loaded = e.current
	if e.mode == ModeView {
		e.refresh()
	}
}

// Reload replaces both buffers and drops history and search state
func (e *Engine) Reload(text string) {
	e.loaded = text
	e.current = text
	e.undo.clear()
	e.redo.clear()
	e.clearSearch()
}

func (e *Engine) clearSearch() {
	e.query = ""
	e.matches = nil
	e.selected = -1
}

// refresh recomputes matches for the active buffer, keeping the selection
// index where possible.
func (e *Engine) refresh() {
	if e.query == "" {
		return
	}
	e.matches = FindAll(e.query, e.Active())
	switch {
	case len(e.matches) == 0:
		e.selected = -1
	case e.selected >= len(e.matches):
		e.selected = len(e.matches) - 1
	case e.selected < 0:
		e.selected = 0
	}
}

// State is an immutable view of an engine for transport
type State struct {
	Content      string  `json:"content"`
	Mode         Mode    `json:"mode"`
	CanUndo      bool    `json:"can_undo"`
	CanRedo      bool    `json:"can_redo"`
	UndoDepth    int     `json:"undo_depth"`
	RedoDepth    int     `json:"redo_depth"`
	Query        string  `json:"query,omitempty"`
	Matches      []Range `json:"matches"`
	CurrentMatch int     `json:"current_match"`
	Dirty        bool    `json:"dirty"`
}

// Snapshot captures the engine state; Content is the active buffer
func (e *Engine) Snapshot() State {
	matches := e.Matches()
	if matches == nil {
		matches = []Range{}
	}
	return State{
		Content:      e.Active(),
		Mode:         e.mode,
		CanUndo:      e.CanUndo(),
		CanRedo:      e.CanRedo(),
		UndoDepth:    e.undo.len(),
		RedoDepth:    e.redo.len(),
		Query:        e.query,
		Matches:      matches,
		CurrentMatch: e.selected,
		Dirty:        e.Dirty(),
	}
}
