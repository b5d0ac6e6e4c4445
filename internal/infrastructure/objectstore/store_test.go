package objectstore

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves the path-style subset of the S3 API the adapter uses
type fakeS3 struct {
	bucket  string
	mu      sync.Mutex
	objects map[string]fakeObject
}

type fakeObject struct {
	data   []byte
	header http.Header
	mod    time.Time
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: make(map[string]fakeObject)}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != f.bucket {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && key == "":
		f.list(w, r.URL.Query().Get("prefix"))
	case r.Method == http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeS3Error(w, http.StatusBadRequest, "IncompleteBody")
			return
		}
		header := http.Header{}
		for name, values := range r.Header {
			if strings.HasPrefix(name, "X-Amz-Meta-") || name == "Content-Type" || name == "Content-Encoding" {
				header[name] = values
			}
		}
		f.objects[key] = fakeObject{data: data, header: header, mod: time.Now().UTC().Truncate(time.Second)}
		w.Header().Set("ETag", fmt.Sprintf("%q", strconv.Itoa(len(data))))
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		obj, ok := f.objects[key]
		if !ok {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		for name, values := range obj.header {
			w.Header()[name] = values
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
		w.Header().Set("Last-Modified", obj.mod.Format(http.TimeFormat))
		w.Header().Set("ETag", fmt.Sprintf("%q", strconv.Itoa(len(obj.data))))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(obj.data)
		}
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeS3Error(w, http.StatusMethodNotAllowed, "MethodNotAllowed")
	}
}

func (f *fakeS3) list(w http.ResponseWriter, prefix string) {
	type contents struct {
		Key          string `xml:"Key"`
		LastModified string `xml:"LastModified"`
		ETag         string `xml:"ETag"`
		Size         int    `xml:"Size"`
	}
	type result struct {
		XMLName     xml.Name   `xml:"ListBucketResult"`
		Name        string     `xml:"Name"`
		Prefix      string     `xml:"Prefix"`
		KeyCount    int        `xml:"KeyCount"`
		MaxKeys     int        `xml:"MaxKeys"`
		IsTruncated bool       `xml:"IsTruncated"`
		Contents    []contents `xml:"Contents"`
	}

	res := result{Name: f.bucket, Prefix: prefix, MaxKeys: 1000}
	for key, obj := range f.objects {
		if strings.HasPrefix(key, prefix) {
			res.Contents = append(res.Contents, contents{
				Key:          key,
				LastModified: obj.mod.Format(time.RFC3339),
				ETag:         fmt.Sprintf("%q", strconv.Itoa(len(obj.data))),
				Size:         len(obj.data),
			})
		}
	}
	sort.Slice(res.Contents, func(i, j int) bool { return res.Contents[i].Key < res.Contents[j].Key })
	res.KeyCount = len(res.Contents)

	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(res)
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "%s<Error><Code>%s</Code><Message>%s</Message></Error>", xml.Header, code, code)
}

func newTestS3(t *testing.T) *S3 {
	t.Helper()
	srv := httptest.NewServer(newFakeS3("test-bucket"))
	t.Cleanup(srv.Close)

	t.Setenv("AWS_CONFIG_FILE", "/dev/null")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/dev/null")

	store, err := NewS3(context.Background(), S3Config{
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		Bucket:    "test-bucket",
		AccessKey: "test",
		SecretKey: "secret",
		PathStyle: true,
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	return store
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemory() },
		"s3":     func(t *testing.T) Store { return newTestS3(t) },
	}

	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := build(t)

			body := "hello object"
			err := s.Put(ctx, "users/u1/docs/a.txt", strings.NewReader(body), int64(len(body)), PutOptions{
				ContentType:     "text/plain",
				ContentEncoding: "gzip",
				Metadata:        map[string]string{"hash": "abc"},
			})
			require.NoError(t, err)
			require.NoError(t, s.Put(ctx, "users/u1/b.txt", strings.NewReader("b"), 1, PutOptions{}))
			require.NoError(t, s.Put(ctx, "users/u2/c.txt", strings.NewReader("c"), 1, PutOptions{}))

			rc, obj, err := s.Get(ctx, "users/u1/docs/a.txt")
			require.NoError(t, err)
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, body, string(data))
			assert.Equal(t, int64(len(body)), obj.Size)
			assert.Equal(t, "gzip", obj.ContentEncoding)
			assert.Equal(t, "abc", obj.Metadata["hash"])

			head, err := s.Head(ctx, "users/u1/docs/a.txt")
			require.NoError(t, err)
			assert.Equal(t, int64(len(body)), head.Size)
			assert.Equal(t, "abc", head.Metadata["hash"])

			objects, err := s.List(ctx, "users/u1/")
			require.NoError(t, err)
			keys := make([]string, 0, len(objects))
			for _, o := range objects {
				keys = append(keys, o.Key)
			}
			assert.Equal(t, []string{"users/u1/b.txt", "users/u1/docs/a.txt"}, keys)

			_, _, err = s.Get(ctx, "users/u1/missing.txt")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.Head(ctx, "users/u1/missing.txt")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Delete(ctx, "users/u1/b.txt"))
			_, err = s.Head(ctx, "users/u1/b.txt")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

// onlyReader hides io.Seeker so the S3 adapter must buffer
type onlyReader struct{ io.Reader }

func TestS3BuffersUnseekableBody(t *testing.T) {
	s := newTestS3(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "stream.txt", onlyReader{strings.NewReader("streamed")}, -1, PutOptions{}))
	head, err := s.Head(ctx, "stream.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(8), head.Size)
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{})
	assert.Error(t, err)
}

func TestMemorySizeMismatch(t *testing.T) {
	m := NewMemory()
	err := m.Put(context.Background(), "k", strings.NewReader("abc"), 5, PutOptions{})
	assert.Error(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryCanceledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Put(ctx, "k", strings.NewReader(""), 0, PutOptions{}), context.Canceled)
	_, err := m.List(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}
