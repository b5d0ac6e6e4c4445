// Package documents provides the "documents" service: browsing the folders
// the user has granted, reading and writing text documents, previews, and
// importing files from the web.
//
// Documents are addressed by URIs of the form doc://<root-id>/<path>; raw
// filesystem paths only appear in documents.grant.
//
// Example Usage:
//
//	p := documents.NewProvider(documents.Options{Tree: tree, Prefs: settingsProvider})
//	result, err := p.Execute(ctx, "documents.list", map[string]interface{}{
//	    "uri": root.URI(),
//	}, nil)
package documents
