// Package workspace tracks the documents open in the editor.
//
// Each open document is a Session holding its own editor.Engine behind a
// mutex, so tool calls on different documents proceed in parallel while calls
// on the same document are serialized. Sessions idle for longer than the
// configured timeout are closed by Sweep, which Run calls periodically.
//
// Example Usage:
//
//	ws := workspace.NewManager(workspace.Options{HistoryDepth: 50, IdleTimeout: 30 * time.Minute})
//	sess, _, err := ws.Open(workspace.OpenRequest{URI: uri, Owner: owner, Text: text})
//	err = sess.Do(func(e *editor.Engine) error {
//	    e.SetContent(newText)
//	    return nil
//	})
package workspace
