package cloud

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/objectstore"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/filedeck/internal/providers/settings"
	"github.com/GriffinCanCode/filedeck/internal/shared/paths"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"go.uber.org/zap"
)

const (
	// DefaultPrefix is the bucket prefix when none is configured
	DefaultPrefix = "filedeck"
	// DefaultSyncWorkers is the upload concurrency of cloud.sync
	DefaultSyncWorkers = 4
)

var (
	// ErrDisabled is returned when no object store is configured
	ErrDisabled = errors.New("cloud storage is not configured")
	// ErrUnauthenticated is returned for anonymous callers
	ErrUnauthenticated = errors.New("sign in to use cloud storage")
	// ErrHashMismatch is returned when a download does not match its recorded digest
	ErrHashMismatch = errors.New("downloaded content does not match its hash")
)

// Publisher delivers progress events to a user's live connections
type Publisher interface {
	Publish(userID, topic string, payload interface{})
}

// Backend persists the sync manifest. *store.Store satisfies it.
type Backend interface {
	Get(bucket, key string, v interface{}) error
	Put(bucket, key string, v interface{}) error
	Delete(bucket, key string) error
	ForEach(bucket, prefix string, fn func(key string, raw []byte) error) error
}

// Provider implements the cloud service
type Provider struct {
	store    objectstore.Store
	tree     doctree.Tree
	manifest *manifest
	prefs    settings.Preferences
	prefix   string
	breaker  *resilience.Breaker
	events   Publisher
	metrics  *monitoring.Metrics
	log      *zap.Logger
	now      func() time.Time

	syncWorkers int
}

// Options configures a Provider
type Options struct {
	Store     objectstore.Store // nil disables every tool but cloud.status
	Tree      doctree.Tree
	Backend   Backend // nil keeps the manifest in memory
	Prefs     settings.Preferences
	Prefix    string
	Breaker   resilience.Settings
	Publisher Publisher
	// SyncWorkers bounds concurrent uploads of one cloud.sync run
	SyncWorkers int
	Metrics     *monitoring.Metrics
	Logger      *zap.Logger
	Now         func() time.Time
}

// NewProvider creates a cloud provider
func NewProvider(opts Options) *Provider {
	p := &Provider{
		store:   opts.Store,
		tree:    opts.Tree,
		prefs:   opts.Prefs,
		prefix:  strings.Trim(opts.Prefix, "/"),
		events:  opts.Publisher,
		metrics: opts.Metrics,
		log:     opts.Logger,
		now:     opts.Now,

		syncWorkers: opts.SyncWorkers,
	}
	if p.syncWorkers <= 0 {
		p.syncWorkers = DefaultSyncWorkers
	}
	if p.prefs == nil {
		p.prefs = settings.Defaults()
	}
	if p.prefix == "" {
		p.prefix = DefaultPrefix
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if p.now == nil {
		p.now = time.Now
	}
	p.manifest = newManifest(opts.Backend)

	bs := opts.Breaker
	onChange := bs.OnStateChange
	bs.OnStateChange = func(name string, from, to resilience.State) {
		p.log.Warn("cloud circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		if p.metrics != nil {
			p.metrics.SetCloudBreakerState(int(to))
		}
		if onChange != nil {
			onChange(name, from, to)
		}
	}
	if bs.ReadyToTrip == nil {
		bs.ReadyToTrip = func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 5 }
	}
	if bs.IsSuccessful == nil {
		bs.IsSuccessful = isSuccessful
	}
	p.breaker = resilience.New("cloud", bs)
	return p
}

// isSuccessful keeps missing objects from tripping the breaker
func isSuccessful(err error) bool {
	return err == nil || errors.Is(err, objectstore.ErrNotFound)
}

// Breaker exposes the circuit breaker guarding the object store
func (p *Provider) Breaker() *resilience.Breaker {
	return p.breaker
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	keyParam := types.Parameter{Name: "key", Type: "string", Description: "Object key relative to your cloud folder", Required: true}

	return types.Service{
		ID:          "cloud",
		Name:        "Cloud Storage Service",
		Description: "Mirror documents to object storage",
		Category:    types.CategoryCloud,
		Capabilities: []string{
			"upload",
			"download",
			"list",
			"delete",
			"sync",
		},
		Tools: []types.Tool{
			{
				ID:          "cloud.status",
				Name:        "Cloud Status",
				Description: "Report whether cloud storage is configured and reachable",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "cloud.upload",
				Name:        "Upload Document",
				Description: "Upload a document to your cloud folder",
				Parameters: []types.Parameter{
					{Name: "uri", Type: "string", Description: "Document URI", Required: true},
					{Name: "key", Type: "string", Description: "Object key (default <root>/<path>)", Required: false},
					{Name: "compress", Type: "boolean", Description: "Store gzip compressed (default from settings)", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "cloud.download",
				Name:        "Download Object",
				Description: "Download an object into a document",
				Parameters: []types.Parameter{
					keyParam,
					{Name: "uri", Type: "string", Description: "Destination document URI", Required: true},
					{Name: "overwrite", Type: "boolean", Description: "Replace an existing document", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "cloud.list",
				Name:        "List Objects",
				Description: "List objects in your cloud folder",
				Parameters: []types.Parameter{
					{Name: "prefix", Type: "string", Description: "Key prefix filter", Required: false},
				},
				Returns: "array",
			},
			{
				ID:          "cloud.delete",
				Name:        "Delete Object",
				Description: "Delete an object from your cloud folder",
				Parameters:  []types.Parameter{keyParam},
				Returns:     "boolean",
			},
			{
				ID:          "cloud.sync",
				Name:        "Sync Folder",
				Description: "Upload new and changed documents below a folder",
				Parameters: []types.Parameter{
					{Name: "uri", Type: "string", Description: "Folder URI", Required: true},
					{Name: "dry_run", Type: "boolean", Description: "Report what would change without uploading", Required: false},
					{Name: "prune", Type: "boolean", Description: "Delete remote objects with no local document", Required: false},
					{Name: "include_hidden", Type: "boolean", Description: "Include hidden files", Required: false},
					{Name: "compress", Type: "boolean", Description: "Store gzip compressed (default from settings)", Required: false},
				},
				Returns: "object",
			},
		},
	}
}

// Execute runs a cloud operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	if toolID == "cloud.status" {
		return p.status(appCtx.User())
	}

	switch toolID {
	case "cloud.upload", "cloud.download", "cloud.list", "cloud.delete", "cloud.sync":
	default:
		return types.Failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
	if p.store == nil {
		return types.Failure(ErrDisabled.Error())
	}
	user := appCtx.User()
	if user == "" {
		return types.Failure(ErrUnauthenticated.Error())
	}

	switch toolID {
	case "cloud.upload":
		return p.upload(ctx, user, params)
	case "cloud.download":
		return p.download(ctx, user, params)
	case "cloud.list":
		return p.list(ctx, user, params)
	case "cloud.delete":
		return p.delete(ctx, user, params)
	default:
		return p.sync(ctx, user, params)
	}
}

func (p *Provider) status(user string) (*types.Result, error) {
	breaker := p.breaker.Snapshot()
	return types.Success(map[string]interface{}{
		"enabled":       p.store != nil,
		"authenticated": user != "",
		"prefix":        p.prefix,
		"compress":      p.prefs.Bool(settings.KeyCloudCompress),
		"breaker":       breaker.State,
		"failures":      breaker.Counts.ConsecutiveFailures,
	})
}

// userPrefix is the key prefix owned by user, with a trailing slash
func (p *Provider) userPrefix(user string) string {
	return path.Join(p.prefix, user) + "/"
}

// objectKey validates a user-relative key and returns the full bucket key
func (p *Provider) objectKey(user, rel string) (string, error) {
	clean, err := paths.CleanRel(rel)
	if err != nil {
		return "", err
	}
	if clean == "" {
		return "", errors.New("object key required")
	}
	return p.userPrefix(user) + clean, nil
}

// defaultKey names the object for a document: <rootID>/<path>
func defaultKey(ref paths.Ref) string {
	return ref.RootID + "/" + ref.Rel
}

// guard runs fn through the circuit breaker
func (p *Provider) guard(ctx context.Context, fn func(ctx context.Context) error) error {
	return p.breaker.Do(ctx, fn)
}

func (p *Provider) record(direction string, err error, n int64) {
	if p.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	p.metrics.RecordCloudTransfer(direction, status, n)
}

func (p *Provider) publish(user, topic string, payload interface{}) {
	if p.events != nil {
		p.events.Publish(user, topic, payload)
	}
}

// cloudFailure turns an error into a failed result. Store and breaker
// failures are logged; caller mistakes are not.
func (p *Provider) cloudFailure(op string, err error) (*types.Result, error) {
	switch {
	case errors.Is(err, objectstore.ErrNotFound):
		return types.Failure(fmt.Sprintf("%s failed: object not found", op))
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return types.Failure(fmt.Sprintf("%s failed: cloud storage is unavailable, try again later", op))
	case errors.Is(err, doctree.ErrNotFound),
		errors.Is(err, doctree.ErrUnknownRoot),
		errors.Is(err, doctree.ErrExists),
		errors.Is(err, doctree.ErrIsDir),
		errors.Is(err, doctree.ErrNotDir),
		errors.Is(err, doctree.ErrOutsideRoot),
		errors.Is(err, paths.ErrInvalidURI),
		errors.Is(err, ErrHashMismatch):
	default:
		p.log.Warn("cloud operation failed", zap.String("op", op), zap.Error(err))
	}
	return types.Failure(fmt.Sprintf("%s failed: %v", op, err))
}
