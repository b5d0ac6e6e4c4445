// Package doctree gives access to user-granted document trees.
//
// The client never sees filesystem paths. It grants a directory once, gets a
// root back, and from then on addresses documents with doc:// URIs relative
// to that root (see the paths package). Every URI is resolved against its
// root and rejected if it would leave it, including through symlinks.
//
// LocalTree is the filesystem-backed implementation. Grants are persisted
// through a GrantStore so they survive restarts.
//
// Watcher follows a LocalTree with fsnotify and reports debounced changes
// below every granted root as doc:// URIs.
package doctree
