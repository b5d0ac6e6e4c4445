// Package types provides shared data structures for the FileDeck backend.
//
// Core Types:
//   - Service, Tool, Parameter: provider and tool definitions
//   - Context: caller identity for a tool execution
//   - Result: standard tool result
//
// Request Types:
//   - ExecuteRequest, DiscoverRequest: registry access over HTTP
//   - CredentialsRequest: register and login
//   - WSMessage: WebSocket communication
//
// Example Usage:
//
//	result, err := registry.Execute(ctx, "documents.list", map[string]interface{}{
//	    "uri": "doc://3f9a1c2b4d5e6f70/notes",
//	}, nil)
package types
