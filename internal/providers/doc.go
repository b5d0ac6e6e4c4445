// Package providers groups the FileDeck service providers.
//
// Each provider exposes a set of tools through the service registry and is
// executed over POST /services/execute. Validation problems are returned as
// failed results; Go errors are reserved for infrastructure faults.
//
// Available Providers:
//   - documents: granted roots, listing, reading, writing, URL import
//   - editor: open edit sessions with undo, search and replace
//   - sheets: delimited-text tokenizing, preview, statistics, export
//   - search: fuzzy file-name and content search
//   - cloud: per-user object storage and directory sync
//   - auth: registration, login and bearer sessions
//   - settings: persisted file-manager preferences
//   - system: server info and client diagnostics
//
// Provider Interface:
//   - Definition(): Returns service metadata and tool definitions
//   - Execute(): Executes a tool with parameters and caller context
//
// Example Usage:
//
//	p := search.NewProvider(search.Options{Tree: tree, Prefs: prefs})
//	result, err := p.Execute(ctx, "search.files", params, appCtx)
package providers
