// Package digest implements the coder's Digest Adapter: computing a
// keyed-by-name cryptographic digest over a buffer list and comparing
// digests in constant time.
package digest

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"github.com/cespare/xxhash/v2"
)

// Registry resolves digest algorithm names to hash.Hash constructors. The
// set of recognized names is seeded from internal/config at startup so a
// deployment can restrict which algorithms its fleet of coders accepts.
type Registry struct {
	factories map[string]func() hash.Hash
}

// DefaultNames lists every digest algorithm this build knows how to
// construct. NewRegistry intersects its built-in set with the allow-list it
// is given (from internal/config's RegistryConfig.Digests) to build the
// effective Registry.
var DefaultNames = []string{"sha256", "sha512", "sha1", "md5", "xxhash"}

// NewRegistry builds a registry restricted to names. A nil or empty names
// slice falls back to every built-in algorithm.
func NewRegistry(names []string) *Registry {
	all := map[string]func() hash.Hash{
		"sha256": sha256.New,
		"sha512": sha512.New,
		"sha1":   sha1.New,
		"md5":    md5.New,
		"xxhash": func() hash.Hash { return xxhash.New() },
	}
	if len(names) == 0 {
		return &Registry{factories: all}
	}
	r := &Registry{factories: make(map[string]func() hash.Hash, len(names))}
	for _, n := range names {
		if f, ok := all[n]; ok {
			r.factories[n] = f
		}
	}
	return r
}

// ErrUnsupportedAlgorithm is returned by Compute/Match for an unresolvable name.
type ErrUnsupportedAlgorithm struct{ Name string }

func (e *ErrUnsupportedAlgorithm) Error() string {
	return fmt.Sprintf("digest: unsupported algorithm %q", e.Name)
}

// Compute feeds each segment of segs sequentially into the named hash
// context and returns the resulting digest.
func (r *Registry) Compute(name string, segs [][]byte) ([]byte, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, &ErrUnsupportedAlgorithm{Name: name}
	}
	h := factory()
	for _, s := range segs {
		// hash.Hash.Write never returns an error per its documented contract.
		h.Write(s)
	}
	return h.Sum(nil), nil
}

// Match computes the named digest over segs and compares it against
// expected in constant time, so a caller checking a caller-supplied digest
// doesn't leak timing information about where a mismatch occurs.
func (r *Registry) Match(name string, segs [][]byte, expected []byte) (bool, error) {
	got, err := r.Compute(name, segs)
	if err != nil {
		return false, err
	}
	if len(got) != len(expected) {
		return false, nil
	}
	return hmac.Equal(got, expected), nil
}

// Supports reports whether name resolves in this registry.
func (r *Registry) Supports(name string) bool {
	_, ok := r.factories[name]
	return ok
}
