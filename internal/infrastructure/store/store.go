// Package store persists small records (users, settings, granted roots, the
// cloud sync manifest) in a single bbolt file. Values are JSON encoded with
// sonic.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// Buckets
const (
	BucketUsers    = "users"
	BucketSessions = "sessions"
	BucketSettings = "settings"
	BucketGrants   = "grants"
	BucketManifest = "sync_manifest"
)

var allBuckets = []string{BucketUsers, BucketSessions, BucketSettings, BucketGrants, BucketManifest}

// ErrNotFound is returned by Get for a missing key
var ErrNotFound = errors.New("store: key not found")

// Store is a bucketed key/value store
type Store struct {
	db  *bbolt.DB
	log *zap.Logger
}

// Open opens or creates the database at path and ensures all buckets exist
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, e := tx.CreateBucketIfNotExists([]byte(name)); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	log.Debug("store opened", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.db.Path()
}

func bucket(tx *bbolt.Tx, name string) (*bbolt.Bucket, error) {
	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("store: unknown bucket %q", name)
	}
	return b, nil
}

// Get decodes the value at key into v
func (s *Store) Get(bucketName, key string, v interface{}) error {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketName)
		if err != nil {
			return err
		}
		if data := b.Get([]byte(key)); data != nil {
			raw = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, bucketName, key)
	}
	return Decode(raw, v)
}

// Put encodes v and stores it at key
func (s *Store) Put(bucketName, key string, v interface{}) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", bucketName, key, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketName)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// Delete removes key; deleting a missing key is not an error
func (s *Store) Delete(bucketName, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketName)
		if err != nil {
			return err
		}
		return b.Delete([]byte(key))
	})
}

// DeletePrefix removes every key starting with prefix and returns the count
func (s *Store) DeletePrefix(bucketName, prefix string) (int, error) {
	n := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketName)
		if err != nil {
			return err
		}
		var keys [][]byte
		c := b.Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(keys)
		return nil
	})
	return n, err
}

// ForEach calls fn for every key with the given prefix, in key order. The raw
// value is only valid during the call; use Decode to read it.
func (s *Store) ForEach(bucketName, prefix string, fn func(key string, raw []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketName)
		if err != nil {
			return err
		}
		c := b.Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			if err := fn(string(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Keys lists keys with the given prefix
func (s *Store) Keys(bucketName, prefix string) ([]string, error) {
	var keys []string
	err := s.ForEach(bucketName, prefix, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	return keys, err
}

// Batch writes several key/value pairs in one transaction
func (s *Store) Batch(bucketName string, values map[string]interface{}) error {
	encoded := make(map[string][]byte, len(values))
	for k, v := range values {
		data, err := sonic.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", bucketName, k, err)
		}
		encoded[k] = data
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketName)
		if err != nil {
			return err
		}
		for k, data := range encoded {
			if err := b.Put([]byte(k), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Decode decodes a raw stored value
func Decode(raw []byte, v interface{}) error {
	if err := sonic.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
