package cloud

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/filedeck/internal/infrastructure/store"
)

// Entry records the last upload of a document
type Entry struct {
	Key        string    `json:"key"`
	URI        string    `json:"uri"`
	Hash       string    `json:"hash"`
	Size       int64     `json:"size"`
	StoredSize int64     `json:"stored_size"`
	Compressed bool      `json:"compressed"`
	SyncedAt   time.Time `json:"synced_at"`
}

func entryFor(up uploaded, uri string, now time.Time) Entry {
	return Entry{
		Key:        up.Key,
		URI:        uri,
		Hash:       up.Hash,
		Size:       up.Size,
		StoredSize: up.StoredSize,
		Compressed: up.Compressed,
		SyncedAt:   now,
	}
}

// manifest maps <user>/<object key> to the entry of its last upload. Without
// a backend entries live only in memory.
type manifest struct {
	backend Backend
	mem     sync.Map
}

func newManifest(b Backend) *manifest {
	return &manifest{backend: b}
}

func manifestKey(user, key string) string {
	return user + "|" + key
}

func (m *manifest) get(user, key string) (Entry, bool, error) {
	if m.backend == nil {
		v, ok := m.mem.Load(manifestKey(user, key))
		if !ok {
			return Entry{}, false, nil
		}
		return v.(Entry), true, nil
	}
	var e Entry
	if err := m.backend.Get(store.BucketManifest, manifestKey(user, key), &e); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return e, true, nil
}

func (m *manifest) put(user string, e Entry) error {
	if m.backend == nil {
		m.mem.Store(manifestKey(user, e.Key), e)
		return nil
	}
	return m.backend.Put(store.BucketManifest, manifestKey(user, e.Key), e)
}

func (m *manifest) remove(user, key string) error {
	if m.backend == nil {
		m.mem.Delete(manifestKey(user, key))
		return nil
	}
	return m.backend.Delete(store.BucketManifest, manifestKey(user, key))
}

// entries returns the user's entries whose key starts with prefix
func (m *manifest) entries(user, prefix string) ([]Entry, error) {
	var out []Entry
	scan := manifestKey(user, prefix)
	if m.backend == nil {
		m.mem.Range(func(k, v interface{}) bool {
			if strings.HasPrefix(k.(string), scan) {
				out = append(out, v.(Entry))
			}
			return true
		})
		return out, nil
	}
	err := m.backend.ForEach(store.BucketManifest, scan, func(_ string, raw []byte) error {
		var e Entry
		if err := store.Decode(raw, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}
