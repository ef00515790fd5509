package router

import (
	"context"
	"sync"
)

// GrowableBuffer is a thread-safe FIFO queue that doubles its capacity when
// it reaches 70% full, up to an optional ceiling. Once the ceiling is reached
// the oldest item is evicted to make room, so a stalled consumer never blocks
// the producer.
type GrowableBuffer[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	max      int // 0 = unbounded
	closed   bool

	// ready receives a token whenever an item is added or the buffer closes.
	ready chan struct{}

	// Stats
	totalReceived int64
	totalSent     int64
	dropped       int64
	resizeCount   int
}

// NewGrowableBuffer creates a new buffer with the given initial capacity.
// maxCapacity <= 0 means the buffer grows without bound.
func NewGrowableBuffer[T any](initialCapacity, maxCapacity int) *GrowableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if maxCapacity > 0 && maxCapacity < initialCapacity {
		maxCapacity = initialCapacity
	}
	return &GrowableBuffer[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
		max:      maxCapacity,
		ready:    make(chan struct{}, 1),
	}
}

// Send adds an item to the buffer. Returns false if the buffer is closed.
func (b *GrowableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	threshold := (b.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if b.count+1 >= threshold && (b.max == 0 || b.capacity < b.max) {
		b.grow()
	}

	if b.count == b.capacity {
		// At the ceiling: evict the oldest item.
		b.pop()
		b.dropped++
	}

	b.buf[b.tail] = item
	b.tail = (b.tail + 1) % b.capacity
	b.count++
	b.totalReceived++

	b.signal()
	return true
}

// Receive removes and returns an item from the buffer.
// Blocks until an item is available, the buffer is closed, or ctx is done.
// Returns the zero value and false if closed and empty or ctx is done.
func (b *GrowableBuffer[T]) Receive(ctx context.Context) (T, bool) {
	for {
		if item, ok, closed := b.next(); ok || closed {
			return item, ok
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, false
		case <-b.ready:
		}
	}
}

// TryReceive attempts to receive without blocking.
func (b *GrowableBuffer[T]) TryReceive() (T, bool) {
	item, ok, _ := b.next()
	return item, ok
}

// Close closes the buffer. After closing, Send returns false.
// Receivers drain the remaining items and then observe the close.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.signal()
}

// Len returns the current number of items in the buffer.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Stats returns buffer statistics.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:         b.count,
		Capacity:      b.capacity,
		TotalReceived: b.totalReceived,
		TotalSent:     b.totalSent,
		Dropped:       b.dropped,
		ResizeCount:   b.resizeCount,
	}
}

// DrainTo removes up to max items (all items when max <= 0).
func (b *GrowableBuffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	n := b.count
	if max > 0 && max < n {
		n = max
	}

	result := make([]T, n)
	for i := 0; i < n; i++ {
		result[i] = b.pop()
		b.totalSent++
	}

	return result
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count         int
	Capacity      int
	TotalReceived int64
	TotalSent     int64
	Dropped       int64
	ResizeCount   int
}

func (b *GrowableBuffer[T]) next() (item T, ok bool, closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		if b.closed {
			// Pass the close on to any other waiting receiver.
			b.signal()
		}
		return item, false, b.closed
	}

	item = b.pop()
	b.totalSent++

	// Leave a token for the next receiver if items remain.
	if b.count > 0 || b.closed {
		b.signal()
	}
	return item, true, b.closed
}

// pop removes the head item. Must be called with lock held and count > 0.
func (b *GrowableBuffer[T]) pop() T {
	item := b.buf[b.head]
	var zero T
	b.buf[b.head] = zero // Clear reference for GC
	b.head = (b.head + 1) % b.capacity
	b.count--
	return item
}

// signal wakes one waiting receiver. Must be called with lock held.
func (b *GrowableBuffer[T]) signal() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// grow doubles the buffer capacity, clamped to max. Must be called with lock held.
func (b *GrowableBuffer[T]) grow() {
	newCapacity := b.capacity * 2
	if b.max > 0 && newCapacity > b.max {
		newCapacity = b.max
	}
	if newCapacity == b.capacity {
		return
	}
	newBuf := make([]T, newCapacity)

	if b.count > 0 {
		if b.head < b.tail {
			copy(newBuf, b.buf[b.head:b.tail])
		} else {
			// Wrapped: [head...end) + [0...tail)
			n := copy(newBuf, b.buf[b.head:])
			copy(newBuf[n:], b.buf[:b.tail])
		}
	}

	b.buf = newBuf
	b.head = 0
	b.tail = b.count
	b.capacity = newCapacity
	b.resizeCount++
}
