package logging

import (
	"sync"
	"time"
)

// DefaultBufferCapacity is the number of entries the log panel keeps.
const DefaultBufferCapacity = 5000

// Buffer is a bounded ring of log entries. When it is full the oldest entry
// is evicted to make room for the newest one.
type Buffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	start   int
	count   int
	seq     uint64
	metrics BufferStats
}

// BufferStats is a snapshot of buffer activity.
type BufferStats struct {
	Appended         uint64
	Evicted          uint64
	LastEvictionTime time.Time
}

// NewBuffer creates a ring buffer holding at most capacity entries.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{entries: make([]LogEntry, capacity)}
}

// Append stores an entry, evicting the oldest one if the buffer is full.
func (b *Buffer) Append(e LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.entries)
	if b.count < capacity {
		b.entries[(b.start+b.count)%capacity] = e
		b.count++
	} else {
		b.entries[b.start] = e
		b.start = (b.start + 1) % capacity
		b.metrics.Evicted++
		b.metrics.LastEvictionTime = time.Now()
	}
	b.seq++
	b.metrics.Appended++
}

// Entries returns a copy of the buffered entries, oldest first.
func (b *Buffer) Entries() []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]LogEntry, b.count)
	capacity := len(b.entries)
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(b.start+i)%capacity]
	}
	return out
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.entries)
}

// Seq increases on every append and on Clear, so viewers can tell when to
// re-render without copying the entries.
func (b *Buffer) Seq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}

// Clear drops all entries.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.entries {
		b.entries[i] = LogEntry{}
	}
	b.start = 0
	b.count = 0
	b.seq++
}

// Stats returns a copy of the buffer counters.
func (b *Buffer) Stats() BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}
