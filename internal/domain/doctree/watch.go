package doctree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/filedeck/internal/shared/paths"
)

// Change operations
const (
	OpCreated  = "created"
	OpModified = "modified"
	OpRemoved  = "removed"
	OpRenamed  = "renamed"
)

const (
	defaultDebounce = 250 * time.Millisecond
	defaultMaxDirs  = 4096
)

// Change is a filesystem change below a granted root
type Change struct {
	URI    string `json:"uri"`
	RootID string `json:"root_id"`
	Op     string `json:"op"`
}

// WatchOptions configures a Watcher
type WatchOptions struct {
	// Debounce is how long a path must stay quiet before its change is
	// reported. Rapid saves collapse into one change.
	Debounce time.Duration
	// MaxDirs bounds the number of watched directories across all roots
	MaxDirs int
	Logger  *zap.Logger
}

// Watcher reports changes below every granted root of a LocalTree. Hidden
// files and directories are ignored. Roots granted or revoked while the
// watcher runs are picked up on the next tick.
type Watcher struct {
	tree     *LocalTree
	sink     func([]Change)
	debounce time.Duration
	maxDirs  int
	log      *zap.Logger

	fw      *fsnotify.Watcher
	version uint64
	roots   map[string]Root   // root ID -> root
	dirs    map[string]string // watched dir -> root ID
	pending map[string]pendingChange
}

type pendingChange struct {
	Change
	at time.Time
}

// NewWatcher creates a watcher that hands batches of changes to sink. sink is
// called from the Run goroutine.
func NewWatcher(tree *LocalTree, sink func([]Change), opts WatchOptions) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.MaxDirs <= 0 {
		opts.MaxDirs = defaultMaxDirs
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		tree:     tree,
		sink:     sink,
		debounce: opts.Debounce,
		maxDirs:  opts.MaxDirs,
		log:      log,
	}
}

// Run watches until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	w.fw = fw
	w.roots = make(map[string]Root)
	w.dirs = make(map[string]string)
	w.pending = make(map[string]pendingChange)
	w.version = w.tree.Version()
	w.reconcile(ctx)

	tick := time.NewTicker(max(w.debounce/2, 10*time.Millisecond))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev, time.Now())

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case now := <-tick.C:
			if v := w.tree.Version(); v != w.version {
				w.version = v
				w.reconcile(ctx)
			}
			w.flush(now)
		}
	}
}

// reconcile starts watching new roots and stops watching revoked ones
func (w *Watcher) reconcile(ctx context.Context) {
	current := make(map[string]Root)
	for _, r := range w.tree.Roots() {
		current[r.ID] = r
	}

	for dir, rootID := range w.dirs {
		if _, ok := current[rootID]; !ok {
			_ = w.fw.Remove(dir)
			delete(w.dirs, dir)
		}
	}
	for id := range w.roots {
		if _, ok := current[id]; !ok {
			delete(w.roots, id)
			w.log.Debug("stopped watching root", zap.String("root_id", id))
		}
	}

	for id, r := range current {
		if _, ok := w.roots[id]; ok {
			continue
		}
		w.roots[id] = r
		w.addTree(ctx, r, r.URI(), r.Path)
		w.log.Debug("watching root", zap.String("root_id", id), zap.Int("dirs", len(w.dirs)))
	}
}

// addTree watches dir and every visible directory below it
func (w *Watcher) addTree(ctx context.Context, r Root, uri, dir string) {
	if !w.add(r.ID, dir) {
		return
	}
	var subdirs []string
	err := w.tree.Walk(ctx, uri, 0, func(d Document) error {
		if d.IsDir && !hiddenRel(d.Path) {
			subdirs = append(subdirs, filepath.Join(r.Path, filepath.FromSlash(d.Path)))
		}
		return nil
	})
	if err != nil {
		w.log.Debug("walk for watch failed", zap.String("uri", uri), zap.Error(err))
	}
	sort.Strings(subdirs)
	for _, sub := range subdirs {
		if !w.add(r.ID, sub) {
			return
		}
	}
}

func (w *Watcher) add(rootID, dir string) bool {
	if _, ok := w.dirs[dir]; ok {
		return true
	}
	if len(w.dirs) >= w.maxDirs {
		w.log.Warn("watch limit reached, ignoring directory", zap.String("dir", dir), zap.Int("max_dirs", w.maxDirs))
		return false
	}
	if err := w.fw.Add(dir); err != nil {
		w.log.Debug("failed to watch directory", zap.String("dir", dir), zap.Error(err))
		return true
	}
	w.dirs[dir] = rootID
	return true
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event, now time.Time) {
	rootID, ok := w.dirs[filepath.Dir(ev.Name)]
	if !ok {
		return
	}
	r, ok := w.roots[rootID]
	if !ok {
		return
	}
	rel, err := filepath.Rel(r.Path, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)
	if hiddenRel(rel) {
		return
	}

	var op string
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreated
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.addTree(ctx, r, paths.DocumentURI(r.ID, rel), ev.Name)
		}
	case ev.Has(fsnotify.Write):
		op = OpModified
	case ev.Has(fsnotify.Remove):
		op = OpRemoved
		w.forget(ev.Name)
	case ev.Has(fsnotify.Rename):
		op = OpRenamed
		w.forget(ev.Name)
	default:
		return
	}

	uri := paths.DocumentURI(r.ID, rel)
	if prev, ok := w.pending[uri]; ok && prev.Op == OpCreated && op == OpModified {
		op = OpCreated
	}
	w.pending[uri] = pendingChange{Change: Change{URI: uri, RootID: r.ID, Op: op}, at: now}
}

// forget drops watches for dir and everything below it
func (w *Watcher) forget(dir string) {
	prefix := dir + string(os.PathSeparator)
	for d := range w.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			_ = w.fw.Remove(d)
			delete(w.dirs, d)
		}
	}
}

// flush reports changes that have been quiet for the debounce interval
func (w *Watcher) flush(now time.Time) {
	var ready []Change
	for uri, p := range w.pending {
		if now.Sub(p.at) >= w.debounce {
			ready = append(ready, p.Change)
			delete(w.pending, uri)
		}
	}
	if len(ready) == 0 {
		return
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].URI < ready[j].URI })
	w.sink(ready)
}

// hiddenRel reports whether any segment of a slash separated path is hidden
func hiddenRel(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return true
		}
	}
	return false
}
