package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned for a missing object
var ErrNotFound = errors.New("object not found")

// Object describes a stored object
type Object struct {
	Key             string            `json:"key"`
	Size            int64             `json:"size"`
	Modified        time.Time         `json:"modified"`
	ETag            string            `json:"etag,omitempty"`
	ContentType     string            `json:"content_type,omitempty"`
	ContentEncoding string            `json:"content_encoding,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// PutOptions carries object headers
type PutOptions struct {
	ContentType     string
	ContentEncoding string
	Metadata        map[string]string
}

// Store is the object storage surface used by the cloud provider
type Store interface {
	// Put stores size bytes read from body under key
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error
	// Get opens an object; the caller closes the reader
	Get(ctx context.Context, key string) (io.ReadCloser, Object, error)
	Head(ctx context.Context, key string) (Object, error)
	// List returns every object whose key starts with prefix, sorted by key
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, key string) error
}
