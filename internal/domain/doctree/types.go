package doctree

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/GriffinCanCode/filedeck/internal/shared/paths"
)

var (
	// ErrUnknownRoot is returned for URIs whose root has not been granted
	ErrUnknownRoot = errors.New("document root not granted")
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned when a create or rename target already exists
	ErrExists = errors.New("document already exists")
	// ErrIsDir is returned for file operations on a directory
	ErrIsDir = errors.New("document is a directory")
	// ErrNotDir is returned for directory operations on a file
	ErrNotDir = errors.New("document is not a directory")
	// ErrRootOp is returned when deleting or renaming a granted root itself
	ErrRootOp = errors.New("operation not allowed on a document root")
	// ErrOutsideRoot is returned when a path escapes its root
	ErrOutsideRoot = paths.ErrOutsideRoot
)

// Root is a granted directory
type Root struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	GrantedAt time.Time `json:"granted_at"`
}

// URI returns the URI of the root directory
func (r Root) URI() string {
	return paths.DocumentURI(r.ID, "")
}

// Document describes a file or directory below a root
type Document struct {
	URI      string    `json:"uri"`
	RootID   string    `json:"root_id"`
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	IsDir    bool      `json:"is_dir"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	MIMEType string    `json:"mime_type,omitempty"`
	Hidden   bool      `json:"hidden"`
}

// Tree is the document access surface used by providers
type Tree interface {
	Roots() []Root
	Root(rootID string) (Root, error)
	Grant(path string) (Root, error)
	Revoke(rootID string) error

	List(uri string) ([]Document, error)
	Stat(uri string) (Document, error)
	Open(uri string) (io.ReadCloser, Document, error)
	ReadAll(uri string, maxBytes int64) (data []byte, truncated bool, err error)
	Write(uri string, r io.Reader) (Document, int64, error)
	Create(parentURI, name string, dir bool) (Document, error)
	Delete(uri string) error
	Rename(uri, newName string) (Document, error)

	Walk(ctx context.Context, uri string, maxDepth int, fn func(Document) error) error
	Glob(ctx context.Context, uri, pattern string) ([]Document, error)

	// Resolve returns the absolute filesystem path of uri, for SDKs that
	// need a path rather than a stream.
	Resolve(uri string) (string, error)
}

// GrantStore persists granted roots
type GrantStore interface {
	Put(bucket, key string, v interface{}) error
	Delete(bucket, key string) error
	ForEach(bucket, prefix string, fn func(key string, raw []byte) error) error
}
