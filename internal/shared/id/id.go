// Package id provides prefixed, sortable identifiers for the backend.
//
// IDs are ULIDs with a short type prefix so they stay readable in logs:
//   - edit_*: open editor sessions
//   - usr_*:  registered users
//   - sync_*: cloud sync runs
//   - req_*:  HTTP requests
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EditSessionID identifies an open editor session
type EditSessionID string

// UserID identifies a registered user
type UserID string

// SyncID identifies a single cloud sync run
type SyncID string

// RequestID identifies an API request
type RequestID string

const (
	EditPrefix    = "edit"
	UserPrefix    = "usr"
	SyncPrefix    = "sync"
	RequestPrefix = "req"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand with monotonic
// entropy, so IDs minted within the same millisecond still sort in order.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(ulid.Monotonic(rand.Reader, 0))
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Tests use it for deterministic IDs.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewEditSessionID generates a new editor session ID
func NewEditSessionID() EditSessionID {
	return EditSessionID(Default().GenerateWithPrefix(EditPrefix))
}

// NewUserID generates a new user ID
func NewUserID() UserID {
	return UserID(Default().GenerateWithPrefix(UserPrefix))
}

// NewSyncID generates a new sync run ID
func NewSyncID() SyncID {
	return SyncID(Default().GenerateWithPrefix(SyncPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id EditSessionID) String() string { return string(id) }
func (id UserID) String() string        { return string(id) }
func (id SyncID) String() string        { return string(id) }
func (id RequestID) String() string     { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// HasPrefix reports whether id is "<prefix>_<ulid>" with a valid ULID part.
func HasPrefix(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"_")
	return ok && IsValid(rest)
}
