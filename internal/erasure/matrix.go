package erasure

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// matrixBackend implements both the C1 (Cauchy) and RS (Vandermonde)
// parity types: they differ only in which generator-matrix construction
// reedsolomon.New is told to use, not in how encode/decode are driven.
type matrixBackend struct {
	enc         reedsolomon.Encoder
	dataFrags   int
	parityFrags int
}

func newMatrixBackend(dataFrags, parityFrags int, opts ...reedsolomon.Option) (Backend, error) {
	if parityFrags == 0 {
		return &zeroParityBackend{dataFrags: dataFrags}, nil
	}
	enc, err := reedsolomon.New(dataFrags, parityFrags, opts...)
	if err != nil {
		return nil, fmt.Errorf("erasure: constructing generator matrix: %w", err)
	}
	return &matrixBackend{enc: enc, dataFrags: dataFrags, parityFrags: parityFrags}, nil
}

func (b *matrixBackend) Encode(dataShards [][]byte, parityShards [][]byte) error {
	if len(dataShards) != b.dataFrags {
		return fmt.Errorf("erasure: expected %d data shards, got %d", b.dataFrags, len(dataShards))
	}
	if len(parityShards) != b.parityFrags {
		return fmt.Errorf("erasure: expected %d parity shards, got %d", b.parityFrags, len(parityShards))
	}
	shards := make([][]byte, b.dataFrags+b.parityFrags)
	copy(shards, dataShards)
	copy(shards[b.dataFrags:], parityShards)
	if err := b.enc.Encode(shards); err != nil {
		return &ErrEncodeFailed{Cause: err}
	}
	return nil
}

func (b *matrixBackend) Decode(shards [][]byte, dataFrags int) (map[int][]byte, error) {
	if dataFrags != b.dataFrags {
		return nil, fmt.Errorf("erasure: backend built for %d data frags, decode called with %d", b.dataFrags, dataFrags)
	}
	work := make([][]byte, len(shards))
	missing := make(map[int]bool, len(shards))
	for i, s := range shards {
		if s == nil {
			missing[i] = true
			continue
		}
		work[i] = s
	}

	// ReconstructData only fills in missing data shards (index < dataFrags),
	// leaving missing parity shards nil — recovering just the missing data
	// fragments without paying to regenerate parity the pipeline doesn't
	// need back.
	if err := b.enc.ReconstructData(work); err != nil {
		if err == reedsolomon.ErrTooFewShards {
			return nil, &ErrDecodeInvert{Cause: err}
		}
		return nil, &ErrDecodeFailed{Cause: err}
	}

	recovered := make(map[int][]byte, len(missing))
	for i := range missing {
		if i < dataFrags && work[i] != nil {
			recovered[i] = work[i]
		}
	}
	return recovered, nil
}

// zeroParityBackend services parity_frags == 0 configurations: there is no
// redundancy to generate or consume. Encode is a no-op (there's nothing to
// fill); Decode always fails, since with zero parity shards any missing
// data fragment is unrecoverable — the pipeline must have already turned
// this into MissingDataFragsNoParity before ever reaching here.
type zeroParityBackend struct{ dataFrags int }

func (b *zeroParityBackend) Encode(dataShards [][]byte, parityShards [][]byte) error {
	if len(parityShards) != 0 {
		return fmt.Errorf("erasure: zero-parity backend given %d parity shards", len(parityShards))
	}
	return nil
}

func (b *zeroParityBackend) Decode(shards [][]byte, dataFrags int) (map[int][]byte, error) {
	return nil, fmt.Errorf("erasure: no parity configured, cannot reconstruct")
}
