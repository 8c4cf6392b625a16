// Package ring implements the fixed-capacity byte ring used between the UART
// receive side (producer) and the AT command client (consumer).
//
// There must be exactly one producer and one consumer. The producer never
// blocks: if the ring is full the byte is dropped and the overrun flag is set.
// The consumer may poll with Get/Read or wait for the Readable notification.
package ring

import "sync/atomic"

// Ring is a single-producer, single-consumer byte ring.
type Ring struct {
	buf      []byte
	mask     uint32
	rd       atomic.Uint32 // consumer index (monotonic)
	wr       atomic.Uint32 // producer index (monotonic)
	overrun  atomic.Bool
	readable chan struct{}
}

// New returns a ring with the given capacity. Size must be a power of two
// >= 2.
func New(size int) *Ring {
	if size < 2 || size&(size-1) != 0 {
		panic("ring: size must be power of two >= 2")
	}
	return &Ring{
		buf:      make([]byte, size),
		mask:     uint32(size - 1),
		readable: make(chan struct{}, 1),
	}
}

// Cap returns the capacity of the ring.
func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the number of bytes ready to be consumed.
func (r *Ring) Len() int {
	return int(r.wr.Load() - r.rd.Load())
}

// Put appends one byte. It is the only producer-side method. If the ring is
// full Put drops b, sets the overrun flag and returns false.
func (r *Ring) Put(b byte) bool {
	wr := r.wr.Load()
	rd := r.rd.Load()
	if wr-rd == uint32(len(r.buf)) {
		r.overrun.Store(true)
		return false
	}
	r.buf[wr&r.mask] = b
	r.wr.Store(wr + 1) // release
	select {
	case r.readable <- struct{}{}:
	default:
	}
	return true
}

// Get removes one byte from the ring. It reports false if the ring is empty.
func (r *Ring) Get() (byte, bool) {
	rd := r.rd.Load()
	if r.wr.Load() == rd { // acquire
		return 0, false
	}
	b := r.buf[rd&r.mask]
	r.rd.Store(rd + 1)
	return b, true
}

// Read moves up to len(p) available bytes into p without waiting.
func (r *Ring) Read(p []byte) (n int) {
	rd := r.rd.Load()
	avail := int(r.wr.Load() - rd)
	if avail > len(p) {
		avail = len(p)
	}
	for n < avail {
		p[n] = r.buf[(rd+uint32(n))&r.mask]
		n++
	}
	r.rd.Store(rd + uint32(n))
	return n
}

// Readable returns a channel that receives a value after the producer added
// data. It has capacity one so a single pending notification may cover many
// bytes. Always check Len (or Get) after receiving from it.
func (r *Ring) Readable() <-chan struct{} {
	return r.readable
}

// Overrun reports whether a byte was dropped since the last Clear.
func (r *Ring) Overrun() bool {
	return r.overrun.Load()
}

// Clear discards all buffered data and clears the overrun flag. It must be
// called from the consumer side.
func (r *Ring) Clear() {
	r.rd.Store(r.wr.Load())
	r.overrun.Store(false)
}
