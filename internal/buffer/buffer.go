package buffer

import "errors"

var ErrCapacityExceeded = errors.New("buffer: maximal capacity exceeded")

// Ring is a growable circular byte buffer. Data is appended to the end and consumed from
// the beginning, so the logical content may wrap around the physical storage. This is why
// Peek and Read return two segments: the second one is non-empty only if the requested
// window wraps.
//
// The buffer never grows beyond its maximal capacity: appending data that doesn't fit
// fails instead of being truncated.
type Ring struct {
	memory  []byte
	start   int
	length  int
	maxSize int
}

func NewRing(initialSize, maxSize int) *Ring {
	if initialSize > maxSize {
		initialSize = maxSize
	}

	return &Ring{
		memory:  make([]byte, initialSize),
		maxSize: maxSize,
	}
}

// Append copies the chunk into the buffer, growing it if there's not enough free space left.
// The new capacity is min(max(cap*2, len+len(chunk)), maxCap).
func (r *Ring) Append(chunk []byte) error {
	required := r.length + len(chunk)
	if required > r.maxSize {
		return ErrCapacityExceeded
	}

	if required > len(r.memory) {
		r.grow(min(max(len(r.memory)*2, required), r.maxSize))
	}

	end := r.end()
	n := copy(r.memory[end:], chunk)
	copy(r.memory, chunk[n:])
	r.length += len(chunk)

	return nil
}

// grow reallocates the memory, linearizing the content at the offset 0. This is the only
// place where copying of already buffered data happens.
func (r *Ring) grow(newSize int) {
	memory := make([]byte, newSize)
	head, tail := r.Peek(r.length)
	copy(memory[copy(memory, head):], tail)
	r.memory = memory
	r.start = 0
}

// Peek returns the first n bytes of the buffer without consuming them.
func (r *Ring) Peek(n int) (head, tail []byte) {
	if n > r.length || n < 0 {
		panic("buffer: peeking out of bounds")
	}

	if r.start+n <= len(r.memory) {
		return r.memory[r.start : r.start+n], nil
	}

	return r.memory[r.start:], r.memory[:r.start+n-len(r.memory)]
}

// Read behaves like Peek, but consumes the returned bytes. The segments stay valid only
// until the next Append.
func (r *Ring) Read(n int) (head, tail []byte) {
	head, tail = r.Peek(n)
	r.Discard(n)

	return head, tail
}

// Discard consumes first n bytes.
func (r *Ring) Discard(n int) {
	if n > r.length || n < 0 {
		panic("buffer: discarding out of bounds")
	}

	r.length -= n
	if r.length == 0 {
		// no reason to keep wrapping around if the buffer is empty anyway
		r.start = 0
		return
	}

	r.start = (r.start + n) % len(r.memory)
}

// Len returns the number of buffered bytes.
func (r *Ring) Len() int {
	return r.length
}

// Cap returns current capacity.
func (r *Ring) Cap() int {
	return len(r.memory)
}

// MaxCap returns maximal capacity, the buffer is allowed to grow to.
func (r *Ring) MaxCap() int {
	return r.maxSize
}

// Free returns how many bytes can be appended at most.
func (r *Ring) Free() int {
	return r.maxSize - r.length
}

// Reset just resets the pointers, so old values may be overridden by new ones.
func (r *Ring) Reset() {
	r.start, r.length = 0, 0
}

func (r *Ring) end() int {
	if len(r.memory) == 0 {
		return 0
	}

	return (r.start + r.length) % len(r.memory)
}
