// Package ring provides a fixed-capacity circular byte queue used as the
// building block of the serial transport. The buffer itself carries no
// synchronization: the owning transport is expected to guard every access
// with its own critical section, so that one producer and one consumer can
// share a buffer across goroutine boundaries.
package ring

// Buffer is a circular byte queue. Capacity must be a power of two so the
// indices can wrap with a bitmask. One slot is always held back, which lets
// head == tail mean empty without a separate element counter; a buffer of
// capacity N therefore stores at most N-1 bytes.
type Buffer struct {
	buf  []byte
	mask uint32
	head uint32 // write index
	tail uint32 // read index
}

// New returns a buffer with the given capacity. It panics if capacity is
// not a power of two; capacities are init-time constants, not runtime input.
func New(capacity int) *Buffer {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("ring: capacity must be a power of two")
	}
	return &Buffer{
		buf:  make([]byte, capacity),
		mask: uint32(capacity - 1),
	}
}

// Push appends v to the buffer. When the buffer is full it returns false
// and drops the byte; it never blocks and never grows.
func (b *Buffer) Push(v byte) bool {
	next := (b.head + 1) & b.mask
	if next == b.tail {
		return false
	}
	b.buf[b.head] = v
	b.head = next
	return true
}

// Pop removes and returns the oldest byte. The second return value is false
// when the buffer is empty.
func (b *Buffer) Pop() (byte, bool) {
	if b.head == b.tail {
		return 0, false
	}
	v := b.buf[b.tail]
	b.tail = (b.tail + 1) & b.mask
	return v, true
}

// Available returns the number of buffered bytes. The modular arithmetic is
// correct across index wraparound.
func (b *Buffer) Available() int {
	return int((uint32(len(b.buf)) + b.head - b.tail) & b.mask)
}

// Empty reports whether no bytes are buffered.
func (b *Buffer) Empty() bool {
	return b.head == b.tail
}

// Full reports whether a Push would be dropped.
func (b *Buffer) Full() bool {
	return (b.head+1)&b.mask == b.tail
}

// Size returns the total capacity, including the held-back slot.
func (b *Buffer) Size() int {
	return len(b.buf)
}

// Reset discards all buffered bytes by resetting both indices.
func (b *Buffer) Reset() {
	b.head = 0
	b.tail = 0
}
