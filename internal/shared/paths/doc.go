// Package paths defines the on-disk data layout and the document URI scheme.
//
// # Data directory
//
//	<data dir>/
//	  ├── filedeck.db    (bbolt store: users, settings, grants, sync manifest)
//	  ├── imports/       (default target for documents.import_url)
//	  ├── exports/       (default target for sheets.export)
//	  └── logs/          (filedeck.log when LOG_TO_FILE is set)
//
// # Document URIs
//
// Documents are never addressed by raw filesystem paths. A granted root gets a
// stable ID and every document below it is addressed as
//
//	doc://<rootID>/<slash separated relative path>
//
// The root itself is doc://<rootID>/ .
//
// # Usage
//
//	uri := paths.DocumentURI(rootID, "notes/todo.txt")
//	ref, err := paths.ParseURI(uri)
//	abs, err := paths.Within(rootPath, ref.Rel)
package paths
