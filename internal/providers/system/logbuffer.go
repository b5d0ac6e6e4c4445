package system

import (
	"sync"
	"time"
)

// LogEntry is a diagnostic line reported by a client
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	UserID    string                 `json:"user_id,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// CircularLogBuffer is a thread-safe ring of the most recent entries
type CircularLogBuffer struct {
	entries []*LogEntry
	head    int
	size    int
	maxSize int
	mu      sync.RWMutex
}

// NewCircularLogBuffer creates a buffer holding up to maxSize entries
func NewCircularLogBuffer(maxSize int) *CircularLogBuffer {
	if maxSize < 1 {
		maxSize = 1
	}
	return &CircularLogBuffer{
		entries: make([]*LogEntry, maxSize),
		maxSize: maxSize,
	}
}

// Add inserts an entry, overwriting the oldest when full
func (cb *CircularLogBuffer) Add(entry *LogEntry) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.entries[cb.head] = entry
	cb.head = (cb.head + 1) % cb.maxSize
	if cb.size < cb.maxSize {
		cb.size++
	}
}

// GetRecent returns up to limit entries, newest first, that pass keep
func (cb *CircularLogBuffer) GetRecent(limit int, keep func(*LogEntry) bool) []LogEntry {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	result := make([]LogEntry, 0, min(limit, cb.size))
	for i := 0; i < cb.size && len(result) < limit; i++ {
		entry := cb.entries[(cb.head-1-i+cb.maxSize)%cb.maxSize]
		if entry != nil && (keep == nil || keep(entry)) {
			result = append(result, *entry)
		}
	}
	return result
}

// Len returns the number of buffered entries
func (cb *CircularLogBuffer) Len() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.size
}
