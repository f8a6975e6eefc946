// Package arena provides a small bump allocator for short-lived string data
// produced while analyzing one document's chunks, so that a caller processing
// many chunks can reuse one backing buffer instead of allocating a new string
// per token.
//
// This is a deliberately trimmed sibling of a generation-tracked, off-heap
// bump allocator used elsewhere for long-lived graph structures: token
// scratch storage is short-lived and single-threaded per worker, so it needs
// none of that machinery (no mmap-backed chunks, no reference counting, no
// generation invalidation) — just a growable byte buffer that is reset
// between documents.
package arena

import "unsafe"

// Arena is a bump allocator for byte-backed strings. It is not safe for
// concurrent use; each pipeline worker owns one.
type Arena struct {
	buf []byte
}

// New creates an Arena with room pre-reserved for capacity bytes.
func New(capacity int) *Arena {
	return &Arena{buf: make([]byte, 0, capacity)}
}

// String copies s into the arena's backing buffer and returns a string
// header pointing directly at that copy without a further allocation. The
// returned string is valid only until the next Reset.
func (a *Arena) String(s string) string {
	start := len(a.buf)
	a.buf = append(a.buf, s...)
	b := a.buf[start:len(a.buf)]
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// Reset discards all allocations, retaining the backing buffer's capacity.
func (a *Arena) Reset() {
	a.buf = a.buf[:0]
}

// Len reports the number of bytes currently allocated from the arena.
func (a *Arena) Len() int {
	return len(a.buf)
}
