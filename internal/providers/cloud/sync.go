package cloud

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/objectstore"
	"github.com/GriffinCanCode/filedeck/internal/providers/settings"
	"github.com/GriffinCanCode/filedeck/internal/shared/id"
	"github.com/GriffinCanCode/filedeck/internal/shared/paths"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sync event topics
const (
	TopicSyncStarted   = "sync.started"
	TopicSyncProgress  = "sync.progress"
	TopicSyncCompleted = "sync.completed"
)

// Sync actions per document
const (
	ActionUploaded = "uploaded"
	ActionSkipped  = "skipped"
	ActionFailed   = "failed"
	ActionPending  = "pending" // dry run
	ActionPruned   = "pruned"
)

// Progress is published once per document
type Progress struct {
	SyncID string `json:"sync_id"`
	URI    string `json:"uri"`
	Key    string `json:"key"`
	Action string `json:"action"`
	Error  string `json:"error,omitempty"`
	Done   int    `json:"done"`
	Total  int    `json:"total"`
}

// Report summarizes a sync run
type Report struct {
	SyncID   string   `json:"sync_id"`
	URI      string   `json:"uri"`
	Total    int      `json:"total"`
	Uploaded int      `json:"uploaded"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Pruned   int      `json:"pruned"`
	Bytes    int64    `json:"bytes"`
	DryRun   bool     `json:"dry_run"`
	Changed  []string `json:"changed"`
	Errors   []string `json:"errors,omitempty"`
}

func (p *Provider) sync(ctx context.Context, user string, params map[string]interface{}) (*types.Result, error) {
	uri := types.GetString(params, "uri")
	if uri == "" {
		return types.Failure("uri parameter required")
	}
	ref, err := paths.ParseURI(uri)
	if err != nil {
		return p.cloudFailure("sync", err)
	}
	dir, err := p.tree.Stat(uri)
	if err != nil {
		return p.cloudFailure("sync", err)
	}
	if !dir.IsDir {
		return p.cloudFailure("sync", fmt.Errorf("%w: %s", doctree.ErrNotDir, uri))
	}

	includeHidden := types.GetBool(params, "include_hidden", false)
	// hidden documents are not uploaded but still exist locally, so prune
	// must leave their remote copies alone
	var docs, hidden []doctree.Document
	err = p.tree.Walk(ctx, uri, 0, func(d doctree.Document) error {
		if d.IsDir {
			return nil
		}
		if !includeHidden && hiddenPath(strings.TrimPrefix(d.Path, ref.Rel)) {
			hidden = append(hidden, d)
			return nil
		}
		docs = append(docs, d)
		return nil
	})
	if err != nil {
		return p.cloudFailure("sync", err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })

	report := Report{
		SyncID:  id.NewSyncID().String(),
		URI:     uri,
		Total:   len(docs),
		DryRun:  types.GetBool(params, "dry_run", false),
		Changed: []string{},
	}
	compress := types.GetBool(params, "compress", p.prefs.Bool(settings.KeyCloudCompress))

	log := p.log.With(zap.String("sync_id", report.SyncID), zap.String("uri", uri))
	log.Info("sync started", zap.Int("documents", len(docs)), zap.Bool("dry_run", report.DryRun))
	p.publish(user, TopicSyncStarted, report)

	type job struct {
		doc doctree.Document
		key string
	}
	local := make(map[string]bool, len(docs)+len(hidden))
	jobs := make([]job, 0, len(docs))
	for _, d := range docs {
		if key, ok := p.syncKey(user, d); ok {
			local[key] = true
			jobs = append(jobs, job{doc: d, key: key})
		}
	}
	for _, d := range hidden {
		if key, ok := p.syncKey(user, d); ok {
			local[key] = true
		}
	}

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.syncWorkers)
	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			action, n, err := p.syncDocument(gctx, user, j.doc, j.key, compress, report.DryRun)
			if action == ActionFailed && gctx.Err() != nil {
				return gctx.Err()
			}

			mu.Lock()
			defer mu.Unlock()
			done++
			ev := Progress{SyncID: report.SyncID, URI: j.doc.URI, Key: strings.TrimPrefix(j.key, p.userPrefix(user)), Action: action, Done: done, Total: len(docs)}
			switch action {
			case ActionUploaded, ActionPending:
				report.Uploaded++
				report.Bytes += n
				report.Changed = append(report.Changed, ev.Key)
			case ActionSkipped:
				report.Skipped++
			case ActionFailed:
				report.Failed++
				ev.Error = err.Error()
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", j.doc.URI, err))
				log.Warn("sync upload failed", zap.String("document", j.doc.URI), zap.Error(err))
			}
			p.publish(user, TopicSyncProgress, ev)
			return nil
		})
	}
	if err := g.Wait(); err != nil || ctx.Err() != nil {
		log.Warn("sync canceled", zap.Int("done", done))
		return types.Failure(fmt.Sprintf("sync canceled after %d of %d documents", done, len(docs)))
	}
	sort.Strings(report.Changed)
	sort.Strings(report.Errors)

	if types.GetBool(params, "prune", false) {
		p.prune(ctx, user, ref, local, &report, log)
	}

	log.Info("sync completed",
		zap.Int("uploaded", report.Uploaded),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("pruned", report.Pruned),
	)
	p.publish(user, TopicSyncCompleted, report)

	return types.Success(map[string]interface{}{
		"sync_id":  report.SyncID,
		"uri":      report.URI,
		"total":    report.Total,
		"uploaded": report.Uploaded,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
		"pruned":   report.Pruned,
		"bytes":    report.Bytes,
		"dry_run":  report.DryRun,
		"changed":  report.Changed,
		"errors":   report.Errors,
	})
}

// syncDocument uploads d when its content differs from the manifest
func (p *Provider) syncDocument(ctx context.Context, user string, d doctree.Document, key string, compress, dryRun bool) (string, int64, error) {
	hash, size, err := p.hashDocument(d.URI)
	if err != nil {
		return ActionFailed, 0, err
	}
	prev, ok, err := p.manifest.get(user, key)
	if err != nil {
		return ActionFailed, 0, err
	}
	if ok && prev.Hash == hash && prev.Size == size && prev.Compressed == compress {
		return ActionSkipped, 0, nil
	}
	if dryRun {
		return ActionPending, size, nil
	}

	up, err := p.putDocument(ctx, d.URI, key, hash, compress)
	if err != nil {
		return ActionFailed, 0, err
	}
	if err := p.manifest.put(user, entryFor(up, d.URI, p.now())); err != nil {
		return ActionFailed, 0, err
	}
	return ActionUploaded, up.StoredSize, nil
}

// syncKey is the object key a synced document is stored under
func (p *Provider) syncKey(user string, d doctree.Document) (string, bool) {
	docRef, err := paths.ParseURI(d.URI)
	if err != nil {
		return "", false
	}
	key, err := p.objectKey(user, defaultKey(docRef))
	if err != nil {
		return "", false
	}
	return key, true
}

// prune deletes remote objects below the synced folder that have no local
// document
func (p *Provider) prune(ctx context.Context, user string, ref paths.Ref, local map[string]bool, report *Report, log *zap.Logger) {
	folder := ref.RootID + "/"
	if ref.Rel != "" {
		folder += ref.Rel + "/"
	}
	prefix := p.userPrefix(user) + folder

	var remote []objectstore.Object
	err := p.guard(ctx, func(ctx context.Context) error {
		var err error
		remote, err = p.store.List(ctx, prefix)
		return err
	})
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("prune: %v", err))
		log.Warn("sync prune listing failed", zap.Error(err))
		return
	}

	for _, obj := range remote {
		if local[obj.Key] {
			continue
		}
		rel := strings.TrimPrefix(obj.Key, p.userPrefix(user))
		if report.DryRun {
			report.Pruned++
			report.Changed = append(report.Changed, rel)
			continue
		}
		err := p.guard(ctx, func(ctx context.Context) error {
			return p.store.Delete(ctx, obj.Key)
		})
		if err != nil && !errors.Is(err, objectstore.ErrNotFound) {
			report.Errors = append(report.Errors, fmt.Sprintf("prune %s: %v", rel, err))
			continue
		}
		if err := p.manifest.remove(user, obj.Key); err != nil {
			log.Warn("failed to update sync manifest", zap.String("key", obj.Key), zap.Error(err))
		}
		report.Pruned++
		report.Changed = append(report.Changed, rel)
		p.publish(user, TopicSyncProgress, Progress{SyncID: report.SyncID, Key: rel, Action: ActionPruned, Done: report.Total, Total: report.Total})
	}
}

// hiddenPath reports whether any element of a slash separated path is hidden.
// Empty elements from a leading slash are ignored.
func hiddenPath(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
