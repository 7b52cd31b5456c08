package execlog

import "sync"

// DefaultCapacity bounds the log when no capacity is configured.
const DefaultCapacity = 256

// Log is a bounded, concurrency-safe ring buffer of execution records.
// When full, appending evicts the oldest record.
type Log struct {
	mu       sync.Mutex
	records  []Record
	head     int
	size     int
	capacity int
}

// NewLog creates a log bounded at capacity records. Non-positive
// capacities fall back to DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		records:  make([]Record, capacity),
		capacity: capacity,
	}
}

// Append adds a finalized record, evicting the oldest when full.
func (l *Log) Append(rec Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tail := (l.head + l.size) % l.capacity
	l.records[tail] = rec
	if l.size < l.capacity {
		l.size++
	} else {
		l.head = (l.head + 1) % l.capacity
	}
}

// Snapshot returns a copy of all retained records in insertion order.
func (l *Log) Snapshot() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.records[(l.head+i)%l.capacity]
	}
	return out
}

// Recent returns a copy of the n most recent records, oldest first.
func (l *Log) Recent(n int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 {
		return nil
	}
	if n > l.size {
		n = l.size
	}
	out := make([]Record, n)
	for i := 0; i < n; i++ {
		out[i] = l.records[(l.head+l.size-n+i)%l.capacity]
	}
	return out
}

// Len returns the number of retained records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Capacity returns the configured bound.
func (l *Log) Capacity() int {
	return l.capacity
}

// Clear drops all retained records.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.head = 0
	l.size = 0
}
