package erasure

import "fmt"

// Block mirrors Steve Reid's cm256_block{Index, Block} pair: an external
// caller of the CM256 parity type addresses fragments by an explicit Index
// rather than positional order. No maintained Go binding of cm256 exists,
// so cm256Backend is built on reedsolomon instead, while preserving this
// Index/Block-shaped surface for anything constructing fragments directly
// against it.
type Block struct {
	Index int
	Data  []byte
}

// cm256Backend satisfies the shared Backend contract like matrixBackend,
// but also exposes EncodeBlocks/DecodeBlocks, the Index/Block-shaped entry
// points a caller migrating from the original cm256_encode/cm256_decode
// signatures would expect.
type cm256Backend struct {
	inner *matrixBackend
}

func newCM256Backend(dataFrags, parityFrags int) (Backend, error) {
	b, err := newMatrixBackend(dataFrags, parityFrags)
	if err != nil {
		return nil, err
	}
	mb, ok := b.(*matrixBackend)
	if !ok {
		// parityFrags == 0: fall through with the same no-redundancy
		// semantics zeroParityBackend already provides.
		return b, nil
	}
	return &cm256Backend{inner: mb}, nil
}

func (b *cm256Backend) Encode(dataShards [][]byte, parityShards [][]byte) error {
	return b.inner.Encode(dataShards, parityShards)
}

func (b *cm256Backend) Decode(shards [][]byte, dataFrags int) (map[int][]byte, error) {
	return b.inner.Decode(shards, dataFrags)
}

// EncodeBlocks takes exactly dataFrags original blocks, each carrying its
// own Index (0..dataFrags-1), and returns parityFrags recovery blocks
// indexed dataFrags..dataFrags+parityFrags-1 — the shape of
// cm256_encode(params, originals, recoveryBlocks).
func (b *cm256Backend) EncodeBlocks(originals []Block, parityFrags int) ([]Block, error) {
	dataFrags := b.inner.dataFrags
	if len(originals) != dataFrags {
		return nil, fmt.Errorf("erasure: cm256 encode expects %d original blocks, got %d", dataFrags, len(originals))
	}
	dataShards := make([][]byte, dataFrags)
	for _, blk := range originals {
		if blk.Index < 0 || blk.Index >= dataFrags {
			return nil, fmt.Errorf("erasure: cm256 original block index %d out of range", blk.Index)
		}
		dataShards[blk.Index] = blk.Data
	}
	parityShards := make([][]byte, parityFrags)
	fragSize := len(originals[0].Data)
	for i := range parityShards {
		parityShards[i] = make([]byte, fragSize)
	}
	if err := b.inner.Encode(dataShards, parityShards); err != nil {
		return nil, err
	}
	out := make([]Block, parityFrags)
	for i, p := range parityShards {
		out[i] = Block{Index: dataFrags + i, Data: p}
	}
	return out, nil
}

// DecodeBlocks takes any dataFrags surviving blocks (original or recovery,
// addressed by global Index) and returns the reconstructed original blocks
// — the shape of cm256_decode(params, blocks).
func (b *cm256Backend) DecodeBlocks(available []Block, dataFrags, parityFrags int) ([]Block, error) {
	total := dataFrags + parityFrags
	shards := make([][]byte, total)
	for _, blk := range available {
		if blk.Index < 0 || blk.Index >= total {
			return nil, fmt.Errorf("erasure: cm256 block index %d out of range", blk.Index)
		}
		shards[blk.Index] = blk.Data
	}
	recovered, err := b.inner.Decode(shards, dataFrags)
	if err != nil {
		return nil, err
	}
	out := make([]Block, 0, len(recovered))
	for idx, data := range recovered {
		out = append(out, Block{Index: idx, Data: data})
	}
	return out, nil
}
