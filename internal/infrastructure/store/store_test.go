package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := openTemp(t)

	require.NoError(t, s.Put(BucketSettings, "a", record{Name: "alpha", Count: 1}))

	var got record
	require.NoError(t, s.Get(BucketSettings, "a", &got))
	assert.Equal(t, record{Name: "alpha", Count: 1}, got)

	err := s.Get(BucketSettings, "missing", &got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnknownBucket(t *testing.T) {
	s := openTemp(t)
	assert.Error(t, s.Put("nope", "k", 1))
	assert.Error(t, s.Get("nope", "k", new(int)))
}

func TestDeleteAndPrefix(t *testing.T) {
	s := openTemp(t)

	require.NoError(t, s.Batch(BucketManifest, map[string]interface{}{
		"u1/a": 1,
		"u1/b": 2,
		"u2/a": 3,
	}))

	keys, err := s.Keys(BucketManifest, "u1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1/a", "u1/b"}, keys)

	require.NoError(t, s.Delete(BucketManifest, "u1/a"))
	require.NoError(t, s.Delete(BucketManifest, "u1/a"), "deleting twice is fine")

	n, err := s.DeletePrefix(BucketManifest, "u1/")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	keys, err = s.Keys(BucketManifest, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2/a"}, keys)
}

func TestForEachDecode(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Put(BucketUsers, "x", record{Name: "x", Count: 7}))

	var seen []record
	err := s.ForEach(BucketUsers, "", func(key string, raw []byte) error {
		var r record
		if err := Decode(raw, &r); err != nil {
			return err
		}
		seen = append(seen, r)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []record{{Name: "x", Count: 7}}, seen)
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")

	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(BucketGrants, "root", "/tmp/docs"))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	var got string
	require.NoError(t, s.Get(BucketGrants, "root", &got))
	assert.Equal(t, "/tmp/docs", got)
	assert.Equal(t, path, s.Path())
}
