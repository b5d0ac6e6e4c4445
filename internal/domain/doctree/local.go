package doctree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/filedeck/internal/infrastructure/store"
	"github.com/GriffinCanCode/filedeck/internal/shared/paths"
	"github.com/GriffinCanCode/filedeck/internal/shared/utils"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// LocalTree serves documents from granted directories on the local filesystem
type LocalTree struct {
	mu      sync.RWMutex
	roots   map[string]*grant
	version atomic.Uint64 // bumped on every grant and revoke

	grants GrantStore
	log    *zap.Logger
}

type grant struct {
	Root
	real string // symlink-resolved root path
}

// NewLocalTree creates a tree and restores previously persisted grants.
// grants may be nil, in which case grants live in memory only.
func NewLocalTree(grants GrantStore, log *zap.Logger) (*LocalTree, error) {
	if log == nil {
		log = zap.NewNop()
	}
	t := &LocalTree{
		roots:  make(map[string]*grant),
		grants: grants,
		log:    log,
	}
	if grants == nil {
		return t, nil
	}

	err := grants.ForEach(store.BucketGrants, "", func(key string, raw []byte) error {
		var r Root
		if err := store.Decode(raw, &r); err != nil {
			log.Warn("skipping unreadable grant", zap.String("root_id", key), zap.Error(err))
			return nil
		}
		real, err := filepath.EvalSymlinks(r.Path)
		if err != nil {
			// root vanished while we were down; keep the grant, it may come back
			log.Warn("granted root unavailable", zap.String("root_id", key), zap.String("path", r.Path), zap.Error(err))
			real = r.Path
		}
		t.roots[r.ID] = &grant{Root: r, real: real}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("restore grants: %w", err)
	}
	return t, nil
}

// RootID returns the stable ID for an absolute directory path
func RootID(absPath string) string {
	return utils.HashString(filepath.Clean(absPath))
}

// Roots returns granted roots sorted by name
func (t *LocalTree) Roots() []Root {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Root, 0, len(t.roots))
	for _, g := range t.roots {
		out = append(out, g.Root)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Version changes whenever the set of roots changes
func (t *LocalTree) Version() uint64 {
	return t.version.Load()
}

// Root returns a granted root by ID
func (t *LocalTree) Root(rootID string) (Root, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	g, ok := t.roots[rootID]
	if !ok {
		return Root{}, fmt.Errorf("%w: %s", ErrUnknownRoot, rootID)
	}
	return g.Root, nil
}

// Grant adds a directory as a root. Granting the same directory twice returns
// the existing root.
func (t *LocalTree) Grant(path string) (Root, error) {
	if strings.TrimSpace(path) == "" {
		return Root{}, errors.New("path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Root{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Root{}, mapErr(err)
	}
	if !info.IsDir() {
		return Root{}, fmt.Errorf("%w: %s", ErrNotDir, path)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Root{}, mapErr(err)
	}

	rootID := RootID(abs)

	t.mu.Lock()
	defer t.mu.Unlock()

	if g, ok := t.roots[rootID]; ok {
		return g.Root, nil
	}

	r := Root{
		ID:        rootID,
		Name:      filepath.Base(abs),
		Path:      abs,
		GrantedAt: time.Now().UTC(),
	}
	if t.grants != nil {
		if err := t.grants.Put(store.BucketGrants, rootID, r); err != nil {
			return Root{}, fmt.Errorf("persist grant: %w", err)
		}
	}
	t.roots[rootID] = &grant{Root: r, real: real}
	t.version.Add(1)
	t.log.Info("root granted", zap.String("root_id", rootID), zap.String("path", abs))
	return r, nil
}

// Revoke forgets a root. Files are not touched.
func (t *LocalTree) Revoke(rootID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.roots[rootID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoot, rootID)
	}
	if t.grants != nil {
		if err := t.grants.Delete(store.BucketGrants, rootID); err != nil {
			return fmt.Errorf("delete grant: %w", err)
		}
	}
	delete(t.roots, rootID)
	t.version.Add(1)
	t.log.Info("root revoked", zap.String("root_id", rootID))
	return nil
}

// resolved is a URI mapped onto the filesystem
type resolved struct {
	ref   paths.Ref
	grant *grant
	abs   string
}

func (t *LocalTree) resolve(uri string) (resolved, error) {
	ref, err := paths.ParseURI(uri)
	if err != nil {
		return resolved{}, err
	}

	t.mu.RLock()
	g, ok := t.roots[ref.RootID]
	t.mu.RUnlock()
	if !ok {
		return resolved{}, fmt.Errorf("%w: %s", ErrUnknownRoot, ref.RootID)
	}

	abs, err := paths.Within(g.Path, ref.Rel)
	if err != nil {
		return resolved{}, err
	}

	// a symlink below the root must not lead out of it
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		if _, err := paths.RelTo(g.real, real); err != nil {
			return resolved{}, fmt.Errorf("%w: %s", ErrOutsideRoot, uri)
		}
	}

	return resolved{ref: ref, grant: g, abs: abs}, nil
}

// Resolve returns the absolute path for uri
func (t *LocalTree) Resolve(uri string) (string, error) {
	r, err := t.resolve(uri)
	if err != nil {
		return "", err
	}
	return r.abs, nil
}

func (t *LocalTree) document(ref paths.Ref, abs string, info fs.FileInfo) Document {
	doc := Document{
		URI:      ref.URI(),
		RootID:   ref.RootID,
		Path:     ref.Rel,
		Name:     ref.Name(),
		IsDir:    info.IsDir(),
		Modified: info.ModTime().UTC(),
		Hidden:   strings.HasPrefix(info.Name(), "."),
	}
	if ref.IsRoot() {
		t.mu.RLock()
		if g, ok := t.roots[ref.RootID]; ok {
			doc.Name = g.Name
		}
		t.mu.RUnlock()
		doc.Hidden = false
	}
	if !info.IsDir() {
		doc.Size = info.Size()
		doc.MIMEType = detectMIME(abs)
	}
	return doc
}

func detectMIME(abs string) string {
	mt, err := mimetype.DetectFile(abs)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}

// IsText reports whether a MIME type is safe to show in the text editor
func IsText(mimeType string) bool {
	base, _, _ := strings.Cut(mimeType, ";")
	switch {
	case strings.HasPrefix(base, "text/"):
		return true
	case base == "application/json", base == "application/xml", base == "application/javascript",
		base == "application/x-ndjson", base == "application/toml", base == "application/x-yaml":
		return true
	}
	return false
}

// Stat describes a single document
func (t *LocalTree) Stat(uri string) (Document, error) {
	r, err := t.resolve(uri)
	if err != nil {
		return Document{}, err
	}
	info, err := os.Stat(r.abs)
	if err != nil {
		return Document{}, mapErr(err)
	}
	return t.document(r.ref, r.abs, info), nil
}

// List returns the children of a directory, directories first, then by name
func (t *LocalTree) List(uri string) ([]Document, error) {
	r, err := t.resolve(uri)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.abs)
	if err != nil {
		var pe *fs.PathError
		if errors.As(err, &pe) && !errors.Is(err, fs.ErrNotExist) {
			if info, serr := os.Stat(r.abs); serr == nil && !info.IsDir() {
				return nil, fmt.Errorf("%w: %s", ErrNotDir, uri)
			}
		}
		return nil, mapErr(err)
	}

	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		abs := filepath.Join(r.abs, e.Name())
		docs = append(docs, t.document(r.ref.Child(e.Name()), abs, info))
	}
	SortDocuments(docs, SortByName)
	return docs, nil
}

// Open returns a reader for a file together with its metadata
func (t *LocalTree) Open(uri string) (io.ReadCloser, Document, error) {
	r, err := t.resolve(uri)
	if err != nil {
		return nil, Document{}, err
	}
	f, err := os.Open(r.abs)
	if err != nil {
		return nil, Document{}, mapErr(err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Document{}, mapErr(err)
	}
	if info.IsDir() {
		f.Close()
		return nil, Document{}, fmt.Errorf("%w: %s", ErrIsDir, uri)
	}
	return f, t.document(r.ref, r.abs, info), nil
}

// ReadAll reads up to maxBytes of a file. truncated reports whether the file
// is longer than maxBytes. maxBytes <= 0 reads the whole file.
func (t *LocalTree) ReadAll(uri string, maxBytes int64) ([]byte, bool, error) {
	rc, doc, err := t.Open(uri)
	if err != nil {
		return nil, false, err
	}
	defer rc.Close()

	if maxBytes <= 0 {
		data, err := io.ReadAll(rc)
		return data, false, err
	}
	data, err := io.ReadAll(io.LimitReader(rc, maxBytes))
	if err != nil {
		return nil, false, err
	}
	return data, doc.Size > maxBytes, nil
}

// Write replaces the content of a file, creating it if needed. The parent
// directory must exist. The file is swapped in atomically.
func (t *LocalTree) Write(uri string, src io.Reader) (Document, int64, error) {
	r, err := t.resolve(uri)
	if err != nil {
		return Document{}, 0, err
	}
	if r.ref.IsRoot() {
		return Document{}, 0, fmt.Errorf("%w: %s", ErrIsDir, uri)
	}
	if info, err := os.Stat(r.abs); err == nil && info.IsDir() {
		return Document{}, 0, fmt.Errorf("%w: %s", ErrIsDir, uri)
	}

	dir := filepath.Dir(r.abs)
	if info, err := os.Stat(dir); err != nil {
		return Document{}, 0, mapErr(err)
	} else if !info.IsDir() {
		return Document{}, 0, fmt.Errorf("%w: %s", ErrNotDir, r.ref.Parent().URI())
	}

	tmp, err := os.CreateTemp(dir, ".filedeck-*")
	if err != nil {
		return Document{}, 0, fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, src)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Document{}, n, fmt.Errorf("write %s: %w", uri, err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(r.abs); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return Document{}, n, err
	}
	if err := os.Rename(tmpName, r.abs); err != nil {
		return Document{}, n, fmt.Errorf("replace %s: %w", uri, err)
	}

	info, err := os.Stat(r.abs)
	if err != nil {
		return Document{}, n, mapErr(err)
	}
	return t.document(r.ref, r.abs, info), n, nil
}

// Create makes an empty file or a directory inside parentURI
func (t *LocalTree) Create(parentURI, name string, dir bool) (Document, error) {
	if err := utils.ValidateFileName(name); err != nil {
		return Document{}, err
	}
	p, err := t.resolve(parentURI)
	if err != nil {
		return Document{}, err
	}
	if info, err := os.Stat(p.abs); err != nil {
		return Document{}, mapErr(err)
	} else if !info.IsDir() {
		return Document{}, fmt.Errorf("%w: %s", ErrNotDir, parentURI)
	}

	ref := p.ref.Child(name)
	abs := filepath.Join(p.abs, name)
	if dir {
		err = os.Mkdir(abs, 0o755)
	} else {
		var f *os.File
		f, err = os.OpenFile(abs, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			err = f.Close()
		}
	}
	if err != nil {
		return Document{}, mapErr(err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return Document{}, mapErr(err)
	}
	return t.document(ref, abs, info), nil
}

// Delete removes a document; directories are removed recursively
func (t *LocalTree) Delete(uri string) error {
	r, err := t.resolve(uri)
	if err != nil {
		return err
	}
	if r.ref.IsRoot() {
		return ErrRootOp
	}
	if _, err := os.Lstat(r.abs); err != nil {
		return mapErr(err)
	}
	if err := os.RemoveAll(r.abs); err != nil {
		return fmt.Errorf("delete %s: %w", uri, err)
	}
	return nil
}

// Rename gives a document a new name in the same directory
func (t *LocalTree) Rename(uri, newName string) (Document, error) {
	if err := utils.ValidateFileName(newName); err != nil {
		return Document{}, err
	}
	r, err := t.resolve(uri)
	if err != nil {
		return Document{}, err
	}
	if r.ref.IsRoot() {
		return Document{}, ErrRootOp
	}
	if _, err := os.Lstat(r.abs); err != nil {
		return Document{}, mapErr(err)
	}

	ref := r.ref.Parent().Child(newName)
	abs := filepath.Join(filepath.Dir(r.abs), newName)
	if _, err := os.Lstat(abs); err == nil {
		return Document{}, fmt.Errorf("%w: %s", ErrExists, ref.URI())
	}
	if err := os.Rename(r.abs, abs); err != nil {
		return Document{}, mapErr(err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return Document{}, mapErr(err)
	}
	return t.document(ref, abs, info), nil
}

// Walk visits every document below uri (not uri itself) up to maxDepth
// levels; maxDepth <= 0 means unlimited. Visits happen in no particular order
// but fn is never called concurrently. Unreadable entries are skipped.
func (t *LocalTree) Walk(ctx context.Context, uri string, maxDepth int, fn func(Document) error) error {
	r, err := t.resolve(uri)
	if err != nil {
		return err
	}
	if info, err := os.Stat(r.abs); err != nil {
		return mapErr(err)
	} else if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDir, uri)
	}

	var mu sync.Mutex
	conf := fastwalk.Config{Follow: false}

	err = fastwalk.Walk(&conf, r.abs, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || p == r.abs {
			return nil
		}

		rel, err := filepath.Rel(r.abs, p)
		if err != nil {
			return nil
		}
		depth := strings.Count(rel, string(os.PathSeparator)) + 1
		if maxDepth > 0 && depth > maxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		ref := r.ref
		for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
			ref = ref.Child(seg)
		}
		doc := t.document(ref, p, info)

		mu.Lock()
		defer mu.Unlock()
		return fn(doc)
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", uri, err)
	}
	return nil
}

// Glob matches a doublestar pattern (e.g. "**/*.csv") below uri
func (t *LocalTree) Glob(ctx context.Context, uri, pattern string) ([]Document, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	r, err := t.resolve(uri)
	if err != nil {
		return nil, err
	}

	matches, err := doublestar.Glob(os.DirFS(r.abs), pattern, doublestar.WithFailOnIOErrors())
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	sort.Strings(matches)

	docs := make([]Document, 0, len(matches))
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		abs := filepath.Join(r.abs, filepath.FromSlash(m))
		info, err := os.Stat(abs)
		if err != nil {
			continue
		}
		ref := r.ref
		for _, seg := range strings.Split(m, "/") {
			ref = ref.Child(seg)
		}
		docs = append(docs, t.document(ref, abs, info))
	}
	return docs, nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %v", ErrExists, err)
	}
	return err
}
