package bufs

import (
	"bytes"
	"testing"
)

func TestListAppendAndLen(t *testing.T) {
	l := New(nil)
	l.AppendOwned([]byte("abc"))
	l.AppendShared([]byte("de"))
	l.AppendZeros(2)

	if got, want := l.Len(), 7; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
	if got, want := l.NumSegments(), 3; got != want {
		t.Fatalf("NumSegments() = %d, want %d", got, want)
	}
}

func TestListMergeSingleSegmentNoCopy(t *testing.T) {
	buf := []byte("hello")
	l := New(nil)
	l.AppendOwned(buf)

	merged := l.Merge()
	if &merged[0] != &buf[0] {
		t.Fatalf("Merge() copied a single-segment list, expected the same backing array")
	}
}

func TestListMergeMultiSegmentCopies(t *testing.T) {
	l := New(nil)
	l.AppendOwned([]byte("foo"))
	l.AppendShared([]byte("bar"))

	merged := l.Merge()
	if !bytes.Equal(merged, []byte("foobar")) {
		t.Fatalf("Merge() = %q, want %q", merged, "foobar")
	}
	if l.NumSegments() != 1 {
		t.Fatalf("Merge() did not collapse the list to one segment")
	}
}

func TestListTruncate(t *testing.T) {
	l := New(nil)
	l.AppendOwned([]byte("0123"))
	l.AppendOwned([]byte("4567"))

	if err := l.Truncate(5); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if got := l.Merge(); !bytes.Equal(got, []byte("01234")) {
		t.Fatalf("after truncate, merged = %q, want %q", got, "01234")
	}
}

func TestListTruncateOutOfRange(t *testing.T) {
	l := New(nil)
	l.AppendOwned([]byte("abc"))
	if err := l.Truncate(10); err == nil {
		t.Fatalf("Truncate(10) on a 3-byte list should have failed")
	}
}

func TestListFreeReturnsToPool(t *testing.T) {
	pool := NewPool()
	l := New(pool)
	l.AppendOwned(pool.Get(64))
	l.AppendShared(make([]byte, 64)) // not owned, must not be recycled

	l.Free()
	if l.NumSegments() != 0 {
		t.Fatalf("Free() left %d segments", l.NumSegments())
	}
}

func TestPoolGetPutRoundTrip(t *testing.T) {
	pool := NewPool()
	buf := pool.Get(128)
	if len(buf) != 128 {
		t.Fatalf("Get(128) returned len %d", len(buf))
	}
	for i := range buf {
		buf[i] = 0xAB
	}
	pool.Put(buf)

	again := pool.Get(128)
	for i, b := range again {
		if b != 0 {
			t.Fatalf("recycled buffer not zeroized at index %d: %x", i, b)
		}
	}
}

func TestPoolOversizeBypassesBuckets(t *testing.T) {
	pool := NewPool()
	buf := pool.Get(1024 * 1024)
	if len(buf) != 1024*1024 {
		t.Fatalf("Get(1MiB) returned len %d", len(buf))
	}
	m := pool.Metrics()
	if m.HitsOversize != 1 {
		t.Fatalf("HitsOversize = %d, want 1", m.HitsOversize)
	}
}
