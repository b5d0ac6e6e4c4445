package cloud

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/objectstore"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/store"
	"github.com/GriffinCanCode/filedeck/internal/shared/paths"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	user    string
	topic   string
	payload interface{}
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Publish(userID, topic string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{user: userID, topic: topic, payload: payload})
}

func (r *recorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.topic)
	}
	return out
}

// flakyStore fails every Put with err while err is set
type flakyStore struct {
	*objectstore.Memory
	err error
}

func (f *flakyStore) Put(ctx context.Context, key string, body io.Reader, size int64, opts objectstore.PutOptions) error {
	if f.err != nil {
		return f.err
	}
	return f.Memory.Put(ctx, key, body, size, opts)
}

type fixture struct {
	p       *Provider
	objects *objectstore.Memory
	tree    *doctree.LocalTree
	root    doctree.Root
	dir     string
	events  *recorder
	metrics *monitoring.Metrics
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.txt"), strings.Repeat("cloud notes ", 50))
	writeFile(t, filepath.Join(dir, "docs", "a.txt"), "alpha")
	writeFile(t, filepath.Join(dir, "docs", "sub", "b.txt"), "bravo")
	writeFile(t, filepath.Join(dir, "docs", ".secret"), "hidden")

	tree, err := doctree.NewLocalTree(nil, nil)
	require.NoError(t, err)
	root, err := tree.Grant(dir)
	require.NoError(t, err)

	objects := objectstore.NewMemory()
	events := &recorder{}
	metrics := monitoring.NewMetrics()

	opts.Tree = tree
	if opts.Store == nil {
		opts.Store = objects
	}
	opts.Publisher = events
	opts.Metrics = metrics
	opts.Prefix = "test"

	return &fixture{
		p:       NewProvider(opts),
		objects: objects,
		tree:    tree,
		root:    root,
		dir:     dir,
		events:  events,
		metrics: metrics,
	}
}

func (f *fixture) uri(rel string) string {
	return paths.DocumentURI(f.root.ID, rel)
}

func asUser(id string) *types.Context {
	return &types.Context{UserID: &id}
}

func (f *fixture) exec(t *testing.T, user, tool string, params map[string]interface{}) *types.Result {
	t.Helper()
	var appCtx *types.Context
	if user != "" {
		appCtx = asUser(user)
	}
	result, err := f.p.Execute(context.Background(), tool, params, appCtx)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestStatus(t *testing.T) {
	p := NewProvider(Options{})
	result, err := p.Execute(context.Background(), "cloud.status", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, false, result.Data["enabled"])
	assert.Equal(t, false, result.Data["authenticated"])
	assert.Equal(t, "closed", result.Data["breaker"])
	assert.Equal(t, DefaultPrefix, result.Data["prefix"])

	result, err = p.Execute(context.Background(), "cloud.list", nil, asUser("usr_1"))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ErrDisabled.Error(), *result.Error)
}

func TestRequiresUser(t *testing.T) {
	f := newFixture(t, Options{})
	for _, tool := range []string{"cloud.upload", "cloud.download", "cloud.list", "cloud.delete", "cloud.sync"} {
		result := f.exec(t, "", tool, map[string]interface{}{"uri": f.uri("notes.txt")})
		assert.False(t, result.Success, tool)
		assert.Equal(t, ErrUnauthenticated.Error(), *result.Error)
	}
	assert.False(t, f.exec(t, "usr_1", "cloud.nope", nil).Success)
}

func TestUploadDownload(t *testing.T) {
	f := newFixture(t, Options{})

	result := f.exec(t, "usr_1", "cloud.upload", map[string]interface{}{"uri": f.uri("notes.txt")})
	require.True(t, result.Success, "upload failed: %v", result.Error)
	key := result.Data["key"].(string)
	assert.Equal(t, f.root.ID+"/notes.txt", key)
	assert.Equal(t, int64(600), result.Data["size"])
	assert.Equal(t, false, result.Data["compressed"])

	obj, err := f.objects.Head(context.Background(), "test/usr_1/"+key)
	require.NoError(t, err)
	assert.Equal(t, result.Data["hash"], obj.Metadata[metaHash])
	assert.Equal(t, "600", obj.Metadata[metaSize])

	result = f.exec(t, "usr_1", "cloud.download", map[string]interface{}{"key": key, "uri": f.uri("copy.txt")})
	require.True(t, result.Success, "download failed: %v", result.Error)
	assert.Equal(t, true, result.Data["verified"])

	data, err := os.ReadFile(filepath.Join(f.dir, "copy.txt"))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("cloud notes ", 50), string(data))

	result = f.exec(t, "usr_1", "cloud.download", map[string]interface{}{"key": key, "uri": f.uri("copy.txt")})
	assert.False(t, result.Success, "existing destination needs overwrite")

	result = f.exec(t, "usr_1", "cloud.download", map[string]interface{}{"key": key, "uri": f.uri("copy.txt"), "overwrite": true})
	assert.True(t, result.Success)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CloudTransfers.WithLabelValues("upload", "success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.CloudTransfers.WithLabelValues("download", "success")))
}

func TestCompressedUpload(t *testing.T) {
	f := newFixture(t, Options{})

	result := f.exec(t, "usr_1", "cloud.upload", map[string]interface{}{
		"uri":      f.uri("notes.txt"),
		"key":      "backup/notes.txt",
		"compress": true,
	})
	require.True(t, result.Success)
	assert.Equal(t, true, result.Data["compressed"])
	assert.Less(t, result.Data["stored_size"].(int64), int64(600))

	rc, obj, err := f.objects.Get(context.Background(), "test/usr_1/backup/notes.txt")
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "gzip", obj.ContentEncoding)
	zr, err := gzip.NewReader(rc)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Len(t, plain, 600)

	result = f.exec(t, "usr_1", "cloud.download", map[string]interface{}{"key": "backup/notes.txt", "uri": f.uri("restored.txt")})
	require.True(t, result.Success)
	assert.Equal(t, int64(600), result.Data["bytes_written"])
}

func TestDownloadHashMismatch(t *testing.T) {
	f := newFixture(t, Options{})
	err := f.objects.Put(context.Background(), "test/usr_1/bad.txt", bytes.NewReader([]byte("tampered")), 8, objectstore.PutOptions{
		Metadata: map[string]string{metaHash: "0000000000000000"},
	})
	require.NoError(t, err)

	result := f.exec(t, "usr_1", "cloud.download", map[string]interface{}{"key": "bad.txt", "uri": f.uri("bad.txt")})
	require.False(t, result.Success)
	assert.Contains(t, *result.Error, "does not match")
	_, err = os.Stat(filepath.Join(f.dir, "bad.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestListDeleteIsolation(t *testing.T) {
	f := newFixture(t, Options{})
	require.True(t, f.exec(t, "usr_1", "cloud.upload", map[string]interface{}{"uri": f.uri("notes.txt"), "key": "one.txt"}).Success)
	require.True(t, f.exec(t, "usr_1", "cloud.upload", map[string]interface{}{"uri": f.uri("docs/a.txt"), "key": "dir/two.txt"}).Success)

	result := f.exec(t, "usr_1", "cloud.list", nil)
	require.True(t, result.Success)
	objects := result.Data["objects"].([]Object)
	require.Len(t, objects, 2)
	assert.Equal(t, "dir/two.txt", objects[0].Key)
	assert.Equal(t, "one.txt", objects[1].Key)
	assert.Equal(t, int64(605), result.Data["total_bytes"])

	result = f.exec(t, "usr_1", "cloud.list", map[string]interface{}{"prefix": "dir/"})
	assert.Equal(t, 1, result.Data["count"])

	result = f.exec(t, "usr_2", "cloud.list", nil)
	assert.Equal(t, 0, result.Data["count"])

	result = f.exec(t, "usr_2", "cloud.delete", map[string]interface{}{"key": "one.txt"})
	assert.False(t, result.Success)
	assert.Contains(t, *result.Error, "object not found")

	result = f.exec(t, "usr_1", "cloud.delete", map[string]interface{}{"key": "one.txt"})
	require.True(t, result.Success)
	assert.Equal(t, 1, f.objects.Len())

	for _, key := range []string{"", "../usr_2/x", "/"} {
		result = f.exec(t, "usr_1", "cloud.delete", map[string]interface{}{"key": key})
		assert.False(t, result.Success, "key %q", key)
	}
}

func TestBreakerTrips(t *testing.T) {
	flaky := &flakyStore{Memory: objectstore.NewMemory(), err: errors.New("connection reset")}
	f := newFixture(t, Options{Store: flaky})

	for i := 0; i < 5; i++ {
		result := f.exec(t, "usr_1", "cloud.upload", map[string]interface{}{"uri": f.uri("docs/a.txt")})
		require.False(t, result.Success)
		assert.Contains(t, *result.Error, "connection reset")
	}
	assert.Equal(t, resilience.StateOpen, f.p.Breaker().State())
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.CloudBreakerState))

	flaky.err = nil
	result := f.exec(t, "usr_1", "cloud.upload", map[string]interface{}{"uri": f.uri("docs/a.txt")})
	require.False(t, result.Success)
	assert.Contains(t, *result.Error, "unavailable")

	status := f.exec(t, "usr_1", "cloud.status", nil)
	assert.Equal(t, "open", status.Data["breaker"])
	assert.Equal(t, float64(6), testutil.ToFloat64(f.metrics.CloudTransfers.WithLabelValues("upload", "failure")))
}

func TestMissingObjectDoesNotTrip(t *testing.T) {
	f := newFixture(t, Options{})
	for i := 0; i < 8; i++ {
		result := f.exec(t, "usr_1", "cloud.download", map[string]interface{}{"key": "missing.txt", "uri": f.uri("m.txt")})
		require.False(t, result.Success)
	}
	assert.Equal(t, resilience.StateClosed, f.p.Breaker().State())
}

func TestManifestPersists(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "filedeck.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := newFixture(t, Options{Backend: db})
	result := f.exec(t, "usr_1", "cloud.sync", map[string]interface{}{"uri": f.uri("docs")})
	require.True(t, result.Success)
	assert.Equal(t, 2, result.Data["uploaded"])

	again := NewProvider(Options{Store: f.objects, Tree: f.tree, Backend: db, Prefix: "test"})
	res, err := again.Execute(context.Background(), "cloud.sync", map[string]interface{}{"uri": f.uri("docs")}, asUser("usr_1"))
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 0, res.Data["uploaded"])
	assert.Equal(t, 2, res.Data["skipped"])
}
