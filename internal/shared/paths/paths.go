package paths

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Scheme is the URI scheme for documents below a granted root
const Scheme = "doc"

const uriPrefix = Scheme + "://"

// Files and directories below the data directory
const (
	StoreFile  = "filedeck.db"
	ImportsDir = "imports"
	ExportsDir = "exports"
	LogsDir    = "logs"
	LogFile    = "filedeck.log"
)

var (
	// ErrInvalidURI is returned for strings that are not document URIs
	ErrInvalidURI = errors.New("invalid document uri")
	// ErrOutsideRoot is returned when a relative path escapes its root
	ErrOutsideRoot = errors.New("path escapes document root")
)

// Data returns locations derived from a data directory
type Data struct {
	Dir string
}

// StorePath returns the bbolt database path
func (d Data) StorePath() string {
	return filepath.Join(d.Dir, StoreFile)
}

// ImportsPath returns the directory for downloaded documents
func (d Data) ImportsPath() string {
	return filepath.Join(d.Dir, ImportsDir)
}

// ExportsPath returns the directory for exported sheets
func (d Data) ExportsPath() string {
	return filepath.Join(d.Dir, ExportsDir)
}

// LogPath returns the log file written when file logging is enabled
func (d Data) LogPath() string {
	return filepath.Join(d.Dir, LogsDir, LogFile)
}

// StandardDirectories returns the directories that must exist below the data dir
func (d Data) StandardDirectories() []string {
	return []string{d.Dir, d.ImportsPath(), d.ExportsPath(), filepath.Join(d.Dir, LogsDir)}
}

// Ref is a parsed document URI
type Ref struct {
	RootID string
	Rel    string // slash separated, "" for the root itself
}

// URI renders the reference back to its canonical string form
func (r Ref) URI() string {
	return DocumentURI(r.RootID, r.Rel)
}

// IsRoot reports whether the reference names the root directory
func (r Ref) IsRoot() bool {
	return r.Rel == ""
}

// Name returns the last path element, or the root ID for the root
func (r Ref) Name() string {
	if r.Rel == "" {
		return r.RootID
	}
	return path.Base(r.Rel)
}

// Parent returns the reference of the containing directory
func (r Ref) Parent() Ref {
	if r.Rel == "" {
		return r
	}
	dir := path.Dir(r.Rel)
	if dir == "." {
		dir = ""
	}
	return Ref{RootID: r.RootID, Rel: dir}
}

// Child returns the reference of name inside r
func (r Ref) Child(name string) Ref {
	if r.Rel == "" {
		return Ref{RootID: r.RootID, Rel: name}
	}
	return Ref{RootID: r.RootID, Rel: r.Rel + "/" + name}
}

// DocumentURI builds a canonical document URI
func DocumentURI(rootID, rel string) string {
	return uriPrefix + rootID + "/" + strings.TrimPrefix(rel, "/")
}

// ParseURI parses and cleans a document URI
func ParseURI(uri string) (Ref, error) {
	if !strings.HasPrefix(uri, uriPrefix) {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	rest := strings.TrimPrefix(uri, uriPrefix)
	rootID, rel, _ := strings.Cut(rest, "/")
	if rootID == "" {
		return Ref{}, fmt.Errorf("%w: missing root in %q", ErrInvalidURI, uri)
	}
	clean, err := CleanRel(rel)
	if err != nil {
		return Ref{}, err
	}
	return Ref{RootID: rootID, Rel: clean}, nil
}

// CleanRel normalizes a slash separated relative path and rejects escapes
func CleanRel(rel string) (string, error) {
	if rel == "" || rel == "/" {
		return "", nil
	}
	if strings.Contains(rel, "\x00") {
		return "", fmt.Errorf("%w: invalid characters", ErrInvalidURI)
	}
	rel = strings.ReplaceAll(rel, `\`, "/")
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrOutsideRoot, rel)
		}
	}
	return strings.TrimPrefix(path.Clean("/"+rel), "/"), nil
}

// Within joins rel onto root and verifies the result stays inside root
func Within(root, rel string) (string, error) {
	clean, err := CleanRel(rel)
	if err != nil {
		return "", err
	}
	abs := filepath.Join(root, filepath.FromSlash(clean))
	back, err := filepath.Rel(root, abs)
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, rel)
	}
	return abs, nil
}

// RelTo converts an absolute path below root into a slash separated relative path
func RelTo(root, abs string) (string, error) {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, abs)
	}
	return filepath.ToSlash(rel), nil
}
