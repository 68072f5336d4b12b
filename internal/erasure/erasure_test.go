package erasure

import (
	"bytes"
	"math/rand"
	"testing"
)

func randFrags(t *testing.T, n, size int) [][]byte {
	t.Helper()
	r := rand.New(rand.NewSource(42))
	out := make([][]byte, n)
	for i := range out {
		out[i] = make([]byte, size)
		r.Read(out[i])
	}
	return out
}

func TestMatrixBackendRoundTripDropData(t *testing.T) {
	for _, typ := range []string{C1, RS} {
		t.Run(typ, func(t *testing.T) {
			const dataFrags, parityFrags, fragSize = 4, 2, 256
			b, err := New(typ, dataFrags, parityFrags)
			if err != nil {
				t.Fatal(err)
			}
			data := randFrags(t, dataFrags, fragSize)
			parity := make([][]byte, parityFrags)
			for i := range parity {
				parity[i] = make([]byte, fragSize)
			}
			if err := b.Encode(data, parity); err != nil {
				t.Fatal(err)
			}

			shards := make([][]byte, dataFrags+parityFrags)
			copy(shards, data)
			copy(shards[dataFrags:], parity)

			// Drop two data fragments (scenario: at most parityFrags losses
			// are recoverable).
			shards[0], shards[2] = nil, nil

			recovered, err := b.Decode(shards, dataFrags)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(recovered[0], data[0]) {
				t.Fatal("fragment 0 not correctly recovered")
			}
			if !bytes.Equal(recovered[2], data[2]) {
				t.Fatal("fragment 2 not correctly recovered")
			}
		})
	}
}

func TestMatrixBackendTooManyLossesFails(t *testing.T) {
	const dataFrags, parityFrags, fragSize = 4, 2, 64
	b, err := New(RS, dataFrags, parityFrags)
	if err != nil {
		t.Fatal(err)
	}
	data := randFrags(t, dataFrags, fragSize)
	parity := make([][]byte, parityFrags)
	for i := range parity {
		parity[i] = make([]byte, fragSize)
	}
	if err := b.Encode(data, parity); err != nil {
		t.Fatal(err)
	}
	shards := make([][]byte, dataFrags+parityFrags)
	copy(shards, data)
	copy(shards[dataFrags:], parity)

	// Drop three of four data fragments with only two parity: unrecoverable.
	shards[0], shards[1], shards[2] = nil, nil, nil
	if _, err := b.Decode(shards, dataFrags); err == nil {
		t.Fatal("expected decode failure when losses exceed parity")
	}
}

func TestZeroParityBackendNeverRecovers(t *testing.T) {
	b, err := New(RS, 4, 0)
	if err != nil {
		t.Fatal(err)
	}
	data := randFrags(t, 4, 32)
	if err := b.Encode(data, nil); err != nil {
		t.Fatal(err)
	}
	shards := append([][]byte(nil), data...)
	shards[1] = nil
	if _, err := b.Decode(shards, 4); err == nil {
		t.Fatal("expected decode failure with zero parity configured")
	}
}

func TestCM256BackendRoundTrip(t *testing.T) {
	const dataFrags, parityFrags, fragSize = 6, 4, 128
	b, err := New(CM256, dataFrags, parityFrags)
	if err != nil {
		t.Fatal(err)
	}
	cb, ok := b.(*cm256Backend)
	if !ok {
		t.Fatalf("New(CM256, ...) returned %T, want *cm256Backend", b)
	}

	data := randFrags(t, dataFrags, fragSize)
	originals := make([]Block, dataFrags)
	for i, d := range data {
		originals[i] = Block{Index: i, Data: d}
	}

	parityBlocks, err := cb.EncodeBlocks(originals, parityFrags)
	if err != nil {
		t.Fatal(err)
	}
	if len(parityBlocks) != parityFrags {
		t.Fatalf("got %d parity blocks, want %d", len(parityBlocks), parityFrags)
	}

	// Keep data[2], data[4] and drop the rest of the originals, surviving on
	// parity blocks instead.
	available := []Block{originals[2], originals[4]}
	available = append(available, parityBlocks...)

	recovered, err := cb.DecodeBlocks(available, dataFrags, parityFrags)
	if err != nil {
		t.Fatal(err)
	}
	byIndex := make(map[int][]byte, len(recovered))
	for _, blk := range recovered {
		byIndex[blk.Index] = blk.Data
	}
	for i := 0; i < dataFrags; i++ {
		if i == 2 || i == 4 {
			continue
		}
		if !bytes.Equal(byIndex[i], data[i]) {
			t.Fatalf("fragment %d not correctly recovered via cm256 block API", i)
		}
	}
}

func TestUnknownParityType(t *testing.T) {
	_, err := New("not-a-real-type", 4, 2)
	if err == nil {
		t.Fatal("expected ErrBadType for an unrecognized parity type")
	}
	if _, ok := err.(*ErrBadType); !ok {
		t.Fatalf("got error of type %T, want *ErrBadType", err)
	}
}
