// Package editor exposes workspace edit sessions as editor.* tools. Sessions
// are scoped to the calling user; the view buffer is read-only here even
// though the engine accepts direct content replacement in either mode.
package editor
