// Package mirror forwards persisted audit records to an external stream
// without ever blocking the write path.
package mirror

import (
	"sync"

	"boxoffice/internal/audit"
)

// RingBuffer is a bounded, thread-safe queue of records.
// When full, the oldest records are dropped to make room for new ones.
type RingBuffer struct {
	mu       sync.Mutex
	records  []audit.Record
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	dropped int64
}

const defaultCapacity = 10000

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &RingBuffer{
		records:  make([]audit.Record, capacity),
		capacity: capacity,
	}
}

// Push adds a record, dropping the oldest if necessary. It reports whether
// a record was dropped.
func (b *RingBuffer) Push(rec audit.Record) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := false
	if b.count >= b.capacity {
		b.records[b.tail] = audit.Record{}
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		dropped = true
	}

	b.records[b.head] = rec
	b.head = (b.head + 1) % b.capacity
	b.count++
	return dropped
}

// PopBatch removes up to n records, oldest first.
func (b *RingBuffer) PopBatch(n int) []audit.Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 || n <= 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	out := make([]audit.Record, n)
	for i := range n {
		out[i] = b.records[b.tail]
		b.records[b.tail] = audit.Record{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return out
}

// Unshift returns records to the front of the queue after a failed
// publish. Records that no longer fit are dropped.
func (b *RingBuffer) Unshift(recs []audit.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(recs) - 1; i >= 0; i-- {
		if b.count >= b.capacity {
			b.dropped += int64(i + 1)
			return
		}
		b.tail = (b.tail - 1 + b.capacity) % b.capacity
		b.records[b.tail] = recs[i]
		b.count++
	}
}

func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns the total number of dropped records.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
