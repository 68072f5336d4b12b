// Package bufs implements the coder's Buffer List: an ordered sequence of
// owning or non-owning byte slices that every pipeline stage reads from and
// writes into. Segments that are shared (non-owning) must not outlive the
// segment that owns the backing array; the pipeline never introduces cycles
// in this ownership graph, only a forest rooted at owners.
package bufs

import "fmt"

// segment is one entry of a List. Owned segments were allocated (or pulled
// from a Pool) by this list and must be released on Free; shared segments
// are views into someone else's backing array and are never released here.
type segment struct {
	data  []byte
	owned bool
}

// List is the coder's buffer-list container. The zero value is an empty list.
type List struct {
	segs []segment
	pool *Pool
}

// New returns an empty buffer list, optionally backed by a pool for owned
// allocations. A nil pool falls back to plain make([]byte, n).
func New(pool *Pool) *List {
	return &List{pool: pool}
}

// AppendOwned appends buf as a segment this list owns; it will be released
// (and, if a pool is set, recycled) on Free.
func (l *List) AppendOwned(buf []byte) {
	l.segs = append(l.segs, segment{data: buf, owned: true})
}

// AppendShared appends buf as a non-owning view into another owner's buffer.
// The caller is responsible for ensuring the owner outlives this list.
func (l *List) AppendShared(buf []byte) {
	l.segs = append(l.segs, segment{data: buf, owned: false})
}

// AppendZeros appends n zero bytes as a freshly owned segment.
func (l *List) AppendZeros(n int) {
	if n <= 0 {
		return
	}
	buf := l.alloc(n)
	for i := range buf {
		buf[i] = 0
	}
	l.AppendOwned(buf)
}

// Len returns the total length across all segments.
func (l *List) Len() int {
	total := 0
	for _, s := range l.segs {
		total += len(s.data)
	}
	return total
}

// NumSegments reports how many segments make up the list.
func (l *List) NumSegments() int {
	return len(l.segs)
}

// Segments returns the raw segment byte slices in order. The returned slices
// must not be retained past the list's lifetime if they reference shared
// (non-owning) data.
func (l *List) Segments() [][]byte {
	out := make([][]byte, len(l.segs))
	for i, s := range l.segs {
		out[i] = s.data
	}
	return out
}

// Truncate shrinks the list so its total length equals total. total must not
// exceed the list's current length.
func (l *List) Truncate(total int) error {
	if total < 0 || total > l.Len() {
		return fmt.Errorf("bufs: truncate length %d out of range [0,%d]", total, l.Len())
	}
	remaining := total
	kept := l.segs[:0]
	for _, s := range l.segs {
		if remaining <= 0 {
			break
		}
		if len(s.data) <= remaining {
			kept = append(kept, s)
			remaining -= len(s.data)
			continue
		}
		kept = append(kept, segment{data: s.data[:remaining], owned: s.owned})
		remaining = 0
	}
	l.segs = kept
	return nil
}

// Merge materializes a contiguous view of the whole list. If the list already
// has a single segment its backing slice is returned directly (no copy);
// otherwise a fresh owned copy is allocated and replaces all of the list's
// segments, so the list becomes that one segment and the result's lifetime
// follows the list.
func (l *List) Merge() []byte {
	if len(l.segs) == 1 {
		return l.segs[0].data
	}
	total := l.Len()
	merged := l.alloc(total)
	off := 0
	for _, s := range l.segs {
		off += copy(merged[off:], s.data)
	}
	l.segs = []segment{{data: merged, owned: true}}
	return merged
}

// Free releases every owned segment (returning it to the pool if one is
// set) and clears the list. Shared segments are dropped without being
// released, since this list never owned them.
func (l *List) Free() {
	for _, s := range l.segs {
		if s.owned && l.pool != nil {
			l.pool.Put(s.data)
		}
	}
	l.segs = nil
}

func (l *List) alloc(n int) []byte {
	if l.pool != nil {
		return l.pool.Get(n)[:n]
	}
	return make([]byte, n)
}

// FromOwned is a convenience constructor for a single-segment owned list.
func FromOwned(buf []byte, pool *Pool) *List {
	l := New(pool)
	l.AppendOwned(buf)
	return l
}

// FromShared is a convenience constructor for a single-segment shared list.
func FromShared(buf []byte, pool *Pool) *List {
	l := New(pool)
	l.AppendShared(buf)
	return l
}
