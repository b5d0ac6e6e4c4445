// Package editor implements the in-memory text edit engine behind the
// document editor: a whole-document buffer with bounded linear undo/redo and
// case-insensitive literal search and replace.
//
// Offsets in Range are rune indices into the active buffer, so they line up
// with what a client renders as characters.
//
// An Engine is not safe for concurrent use. The workspace package serializes
// access per open document.
package editor
