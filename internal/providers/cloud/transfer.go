package cloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/objectstore"
	"github.com/GriffinCanCode/filedeck/internal/providers/settings"
	"github.com/GriffinCanCode/filedeck/internal/shared/paths"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

// Object metadata keys
const (
	metaHash = "xxhash"
	metaSize = "original-size"
)

const encodingGzip = "gzip"

// Object is a bucket object as seen by its owner
type Object struct {
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

// uploaded describes a finished upload
type uploaded struct {
	Key        string
	Hash       string
	Size       int64
	StoredSize int64
	Compressed bool
}

// hashDocument returns the hex xxhash of a document's content
func (p *Provider) hashDocument(uri string) (string, int64, error) {
	rc, _, err := p.tree.Open(uri)
	if err != nil {
		return "", 0, err
	}
	defer rc.Close()

	h := xxhash.New()
	n, err := io.Copy(h, rc)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", uri, err)
	}
	return formatHash(h.Sum64()), n, nil
}

func formatHash(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}

// putDocument uploads a document under key, compressing it when asked
func (p *Provider) putDocument(ctx context.Context, uri, key, hash string, compress bool) (uploaded, error) {
	rc, doc, err := p.tree.Open(uri)
	if err != nil {
		return uploaded{}, err
	}
	defer rc.Close()

	opts := objectstore.PutOptions{
		ContentType: doc.MIMEType,
		Metadata: map[string]string{
			metaHash: hash,
			metaSize: strconv.FormatInt(doc.Size, 10),
		},
	}
	var (
		body io.Reader = rc
		size           = doc.Size
	)
	if compress {
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
		if err != nil {
			return uploaded{}, err
		}
		if _, err := io.Copy(zw, rc); err != nil {
			return uploaded{}, fmt.Errorf("compress %s: %w", uri, err)
		}
		if err := zw.Close(); err != nil {
			return uploaded{}, fmt.Errorf("compress %s: %w", uri, err)
		}
		body = &buf
		size = int64(buf.Len())
		opts.ContentEncoding = encodingGzip
	}

	err = p.guard(ctx, func(ctx context.Context) error {
		return p.store.Put(ctx, key, body, size, opts)
	})
	p.record("upload", err, size)
	if err != nil {
		return uploaded{}, err
	}
	return uploaded{Key: key, Hash: hash, Size: doc.Size, StoredSize: size, Compressed: compress}, nil
}

func (p *Provider) upload(ctx context.Context, user string, params map[string]interface{}) (*types.Result, error) {
	uri := types.GetString(params, "uri")
	if uri == "" {
		return types.Failure("uri parameter required")
	}
	ref, err := paths.ParseURI(uri)
	if err != nil {
		return p.cloudFailure("upload", err)
	}
	doc, err := p.tree.Stat(uri)
	if err != nil {
		return p.cloudFailure("upload", err)
	}
	if doc.IsDir {
		return p.cloudFailure("upload", fmt.Errorf("%w: %s", doctree.ErrIsDir, uri))
	}

	rel := types.GetString(params, "key")
	if rel == "" {
		rel = defaultKey(ref)
	}
	key, err := p.objectKey(user, rel)
	if err != nil {
		return types.Failure(err.Error())
	}

	hash, _, err := p.hashDocument(uri)
	if err != nil {
		return p.cloudFailure("upload", err)
	}
	compress := types.GetBool(params, "compress", p.prefs.Bool(settings.KeyCloudCompress))
	up, err := p.putDocument(ctx, uri, key, hash, compress)
	if err != nil {
		return p.cloudFailure("upload", err)
	}
	if err := p.manifest.put(user, entryFor(up, uri, p.now())); err != nil {
		p.log.Warn("failed to record upload in sync manifest", zap.String("key", key), zap.Error(err))
	}

	return types.Success(map[string]interface{}{
		"key":         strings.TrimPrefix(key, p.userPrefix(user)),
		"size":        up.Size,
		"stored_size": up.StoredSize,
		"compressed":  up.Compressed,
		"hash":        up.Hash,
	})
}

func (p *Provider) download(ctx context.Context, user string, params map[string]interface{}) (*types.Result, error) {
	key, err := p.objectKey(user, types.GetString(params, "key"))
	if err != nil {
		return types.Failure(err.Error())
	}
	uri := types.GetString(params, "uri")
	if uri == "" {
		return types.Failure("uri parameter required")
	}
	if !types.GetBool(params, "overwrite", false) {
		if _, err := p.tree.Stat(uri); err == nil {
			return p.cloudFailure("download", fmt.Errorf("%w: %s", doctree.ErrExists, uri))
		}
	}

	var (
		rc  io.ReadCloser
		obj objectstore.Object
	)
	err = p.guard(ctx, func(ctx context.Context) error {
		var err error
		rc, obj, err = p.store.Get(ctx, key)
		return err
	})
	if err != nil {
		p.record("download", err, 0)
		return p.cloudFailure("download", err)
	}
	defer rc.Close()

	var body io.Reader = rc
	if obj.ContentEncoding == encodingGzip {
		zr, err := gzip.NewReader(rc)
		if err != nil {
			p.record("download", err, 0)
			return p.cloudFailure("download", fmt.Errorf("decompress %s: %w", key, err))
		}
		defer zr.Close()
		body = zr
	}

	h := xxhash.New()
	doc, n, err := p.tree.Write(uri, io.TeeReader(body, h))
	p.record("download", err, n)
	if err != nil {
		return p.cloudFailure("download", err)
	}

	want := obj.Metadata[metaHash]
	got := formatHash(h.Sum64())
	if want != "" && want != got {
		if derr := p.tree.Delete(uri); derr != nil {
			p.log.Warn("failed to remove corrupt download", zap.String("uri", uri), zap.Error(derr))
		}
		return p.cloudFailure("download", fmt.Errorf("%w: %s", ErrHashMismatch, key))
	}

	return types.Success(map[string]interface{}{
		"key":           strings.TrimPrefix(key, p.userPrefix(user)),
		"document":      doc,
		"bytes_written": n,
		"verified":      want != "",
	})
}

func (p *Provider) list(ctx context.Context, user string, params map[string]interface{}) (*types.Result, error) {
	base := p.userPrefix(user)
	prefix := base + strings.TrimPrefix(types.GetString(params, "prefix"), "/")

	var objects []objectstore.Object
	err := p.guard(ctx, func(ctx context.Context) error {
		var err error
		objects, err = p.store.List(ctx, prefix)
		return err
	})
	if err != nil {
		return p.cloudFailure("list", err)
	}

	out := make([]Object, 0, len(objects))
	var total int64
	for _, o := range objects {
		total += o.Size
		out = append(out, Object{
			Key:      strings.TrimPrefix(o.Key, base),
			Size:     o.Size,
			Modified: o.Modified.UTC().Format(time.RFC3339),
		})
	}
	return types.Success(map[string]interface{}{
		"objects":     out,
		"count":       len(out),
		"total_bytes": total,
	})
}

func (p *Provider) delete(ctx context.Context, user string, params map[string]interface{}) (*types.Result, error) {
	key, err := p.objectKey(user, types.GetString(params, "key"))
	if err != nil {
		return types.Failure(err.Error())
	}

	err = p.guard(ctx, func(ctx context.Context) error {
		if _, err := p.store.Head(ctx, key); err != nil {
			return err
		}
		return p.store.Delete(ctx, key)
	})
	if err != nil {
		return p.cloudFailure("delete", err)
	}
	if err := p.manifest.remove(user, key); err != nil {
		p.log.Warn("failed to update sync manifest", zap.String("key", key), zap.Error(err))
	}
	return types.Success(map[string]interface{}{
		"deleted": true,
		"key":     strings.TrimPrefix(key, p.userPrefix(user)),
	})
}
