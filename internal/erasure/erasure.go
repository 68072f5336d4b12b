// Package erasure implements the coder's Erasure Adapter: three backends
// sharing one contract over GF(256) — C1 (systematic Cauchy), RS
// (systematic Vandermonde/Reed-Solomon), and CM (a distinctly-shaped
// index/block API). All three backends are built on
// github.com/klauspost/reedsolomon, a widely used GF(256) erasure-coding
// library.
package erasure

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// Parity type names recognized as valid parity_type values.
const (
	C1    = "isa-c1"
	RS    = "isa-rs"
	CM256 = "cm256"
)

// ErrBadType is returned for an unrecognized parity_type at decode time.
type ErrBadType struct{ Name string }

func (e *ErrBadType) Error() string { return fmt.Sprintf("erasure: unknown parity type %q", e.Name) }

// ErrEncodeFailed wraps a non-nil error returned by a backend's encode step.
type ErrEncodeFailed struct{ Cause error }

func (e *ErrEncodeFailed) Error() string { return fmt.Sprintf("erasure: encode failed: %v", e.Cause) }
func (e *ErrEncodeFailed) Unwrap() error { return e.Cause }

// ErrDecodeFailed wraps a non-nil error returned by a backend's
// reconstruct step (distinct from ErrDecodeInvert, which is specific to
// the C1/RS matrix-inversion failure mode).
type ErrDecodeFailed struct{ Cause error }

func (e *ErrDecodeFailed) Error() string { return fmt.Sprintf("erasure: decode failed: %v", e.Cause) }
func (e *ErrDecodeFailed) Unwrap() error { return e.Cause }

// ErrDecodeInvert signals a singular generator-matrix submatrix: the
// surviving fragment positions don't span a usable generator, so recovery
// is mathematically impossible.
type ErrDecodeInvert struct{ Cause error }

func (e *ErrDecodeInvert) Error() string {
	return fmt.Sprintf("erasure: generator matrix singular under this fragment loss pattern: %v", e.Cause)
}
func (e *ErrDecodeInvert) Unwrap() error { return e.Cause }

// Backend is the shared contract all three parity types implement.
type Backend interface {
	// Encode fills parityShards (len == parityFrags, each frag_size bytes)
	// from dataShards (len == dataFrags, each frag_size bytes).
	Encode(dataShards [][]byte, parityShards [][]byte) error

	// Decode takes shards, a len == dataFrags+parityFrags slice positionally
	// indexed by global fragment index (nil entries are missing), and
	// returns freshly-allocated buffers for every missing data index
	// (index < dataFrags) it could reconstruct. Parity-only losses are
	// never reconstructed — the pipeline doesn't need them back.
	Decode(shards [][]byte, dataFrags int) (recoveredData map[int][]byte, err error)
}

// New constructs the backend named by parityType for the given data/parity
// fragment counts. parityFrags may be 0 (no redundancy at all); backends
// still have to exist in that case so the pipeline can report
// MissingDataFragsNoParity instead of crashing on a nil backend.
func New(parityType string, dataFrags, parityFrags int) (Backend, error) {
	switch parityType {
	case C1:
		return newMatrixBackend(dataFrags, parityFrags, reedsolomon.WithCauchyMatrix())
	case RS:
		return newMatrixBackend(dataFrags, parityFrags)
	case CM256:
		return newCM256Backend(dataFrags, parityFrags)
	default:
		return nil, &ErrBadType{Name: parityType}
	}
}
