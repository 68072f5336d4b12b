// Package cipheradapter implements the coder's Cipher Adapter: symmetric,
// stream-mode-only encryption across a buffer list. Only ciphers whose
// effective block size is 1 — true stream ciphers, and CTR/GCM modes, which
// OpenSSL also reports as block size 1 — are accepted; anything else is
// UnsupportedCipher.
package cipheradapter

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
)

// captureTag is a single compile-time toggle, never half-enabled, for
// whether GCM's authentication tag is captured and verified at all. With it
// false (the default, and the only value this module ships with),
// AEAD-capable ciphers are driven through their raw keystream instead of
// Seal/Open, so a missing or corrupt tag never blocks decode; the
// whole-chunk digest is what's authoritative. Flipping it to true routes
// Encrypt/Decrypt through Seal/Open instead, capturing and verifying the
// tag out-of-band in Job.CipherAuthTag.
const captureTag = false

// Entry describes one resolvable cipher_type.
type Entry struct {
	Name     string
	KeyLen   int
	NonceLen int

	newStream func(key, nonce []byte) (cipher.Stream, error)
	newAEAD   func(key []byte) (cipher.AEAD, error) // nil if this cipher has no AEAD form
}

// ErrUnsupportedCipher is returned when a cipher_type name is unknown, or
// (defensively) when a resolved entry's underlying mode isn't block-size-1.
type ErrUnsupportedCipher struct {
	Name   string
	Reason string
}

func (e *ErrUnsupportedCipher) Error() string {
	return fmt.Sprintf("cipheradapter: unsupported cipher %q: %s", e.Name, e.Reason)
}

// Registry resolves cipher_type names to Entry definitions.
type Registry struct {
	entries map[string]Entry
}

// DefaultNames lists every cipher this build can construct.
var DefaultNames = []string{
	"aes-128-ctr", "aes-192-ctr", "aes-256-ctr",
	"aes-128-gcm", "aes-256-gcm",
	"chacha20", "chacha20-poly1305",
}

// NewRegistry builds a registry restricted to names (nil/empty means every
// built-in cipher).
func NewRegistry(names []string) *Registry {
	all := map[string]Entry{
		"aes-128-ctr": aesCTREntry("aes-128-ctr", 16),
		"aes-192-ctr": aesCTREntry("aes-192-ctr", 24),
		"aes-256-ctr": aesCTREntry("aes-256-ctr", 32),
		"aes-128-gcm": aesGCMEntry("aes-128-gcm", 16),
		"aes-256-gcm": aesGCMEntry("aes-256-gcm", 32),
		"chacha20":    chacha20Entry(),
		"chacha20-poly1305": chacha20Poly1305Entry(),
	}
	if len(names) == 0 {
		return &Registry{entries: all}
	}
	r := &Registry{entries: make(map[string]Entry, len(names))}
	for _, n := range names {
		if e, ok := all[n]; ok {
			r.entries[n] = e
		}
	}
	return r
}

func aesCTREntry(name string, keyLen int) Entry {
	return Entry{
		Name:     name,
		KeyLen:   keyLen,
		NonceLen: aes.BlockSize,
		newStream: func(key, nonce []byte) (cipher.Stream, error) {
			block, err := aes.NewCipher(key)
			if err != nil {
				return nil, err
			}
			return cipher.NewCTR(block, nonce), nil
		},
	}
}

func aesGCMEntry(name string, keyLen int) Entry {
	return Entry{
		Name:     name,
		KeyLen:   keyLen,
		NonceLen: 12,
		newStream: func(key, nonce []byte) (cipher.Stream, error) {
			block, err := aes.NewCipher(key)
			if err != nil {
				return nil, err
			}
			return gcmKeystream(block, nonce)
		},
		newAEAD: func(key []byte) (cipher.AEAD, error) {
			block, err := aes.NewCipher(key)
			if err != nil {
				return nil, err
			}
			return cipher.NewGCM(block)
		},
	}
}

func chacha20Entry() Entry {
	return Entry{
		Name:     "chacha20",
		KeyLen:   chacha20.KeySize,
		NonceLen: chacha20.NonceSize,
		newStream: func(key, nonce []byte) (cipher.Stream, error) {
			return chacha20.NewUnauthenticatedCipher(key, nonce)
		},
	}
}

func chacha20Poly1305Entry() Entry {
	return Entry{
		Name:     "chacha20-poly1305",
		KeyLen:   chacha20poly1305.KeySize,
		NonceLen: chacha20poly1305.NonceSize,
		// Tag-suppressed mode is byte-for-byte the AEAD's own keystream:
		// chacha20 starting at block counter 1, since block 0 only derives
		// the Poly1305 key. Poly1305 never touches the ciphertext bytes.
		newStream: func(key, nonce []byte) (cipher.Stream, error) {
			s, err := chacha20.NewUnauthenticatedCipher(key, nonce)
			if err != nil {
				return nil, err
			}
			s.SetCounter(1)
			return s, nil
		},
		newAEAD: func(key []byte) (cipher.AEAD, error) {
			return chacha20poly1305.New(key)
		},
	}
}

// gcmKeystream reconstructs the raw CTR keystream NIST SP 800-38D defines
// under GCM, skipping the GHASH/tag machinery entirely: J0 = nonce ||
// 0x00000001, and ciphertext is produced starting at inc32(J0). This is
// what lets Decrypt tolerate a missing or wrong authentication tag — there
// never was one to check.
func gcmKeystream(block cipher.Block, nonce []byte) (cipher.Stream, error) {
	if len(nonce) != 12 {
		return nil, fmt.Errorf("cipheradapter: gcm keystream requires a 12-byte nonce, got %d", len(nonce))
	}
	j0 := make([]byte, 16)
	copy(j0, nonce)
	binary.BigEndian.PutUint32(j0[12:], 1)
	incrementCounter32(j0)
	return cipher.NewCTR(block, j0), nil
}

func incrementCounter32(block []byte) {
	for i := len(block) - 1; i >= len(block)-4; i-- {
		block[i]++
		if block[i] != 0 {
			return
		}
	}
}

// Resolve looks up name, failing with ErrUnsupportedCipher for an unknown
// name. Every built-in entry is block-size-1 by construction; the explicit
// check below is a defensive assertion kept so a future entry can never
// silently slip past it.
func (r *Registry) Resolve(name string) (Entry, error) {
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, &ErrUnsupportedCipher{Name: name, Reason: "unknown cipher_type"}
	}
	if e.newStream == nil {
		return Entry{}, &ErrUnsupportedCipher{Name: name, Reason: "block size != 1 (no stream-mode keystream available)"}
	}
	return e, nil
}

// GenerateKey returns key_len fresh random bytes for entry.
func GenerateKey(e Entry) ([]byte, error) {
	key := make([]byte, e.KeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("cipheradapter: key generation failed: %w", err)
	}
	return key, nil
}

// ZeroNonce returns a nonce_len buffer of zeros. Safe only because the key
// is unique per chunk: never reuse a key across chunks without also
// deriving a fresh nonce.
func ZeroNonce(e Entry) []byte {
	return make([]byte, e.NonceLen)
}

// Encrypt produces ciphertext the same length as plaintext, and — only
// when captureTag is true and e supports AEAD — a detached authentication
// tag. With captureTag false, tag is always nil and ciphertext is the raw
// keystream XOR, identical to what Seal would have produced minus its tag.
func Encrypt(e Entry, key, nonce, plaintext []byte) (ciphertext, tag []byte, err error) {
	if captureTag && e.newAEAD != nil {
		aead, err := e.newAEAD(key)
		if err != nil {
			return nil, nil, fmt.Errorf("cipheradapter: aead init failed: %w", err)
		}
		sealed := aead.Seal(nil, nonce, plaintext, nil)
		tagLen := aead.Overhead()
		return sealed[:len(sealed)-tagLen], sealed[len(sealed)-tagLen:], nil
	}
	stream, err := e.newStream(key, nonce)
	if err != nil {
		return nil, nil, fmt.Errorf("cipheradapter: stream init failed: %w", err)
	}
	out := make([]byte, len(plaintext))
	stream.XORKeyStream(out, plaintext)
	return out, nil, nil
}

// Decrypt reverses Encrypt. skipAuth tolerates a missing/invalid tag (only
// meaningful when captureTag is true); with captureTag false, decryption
// never touches the tag at all regardless of skipAuth.
func Decrypt(e Entry, key, nonce, ciphertext, tag []byte, skipAuth bool) ([]byte, error) {
	if captureTag && e.newAEAD != nil && !skipAuth {
		aead, err := e.newAEAD(key)
		if err != nil {
			return nil, fmt.Errorf("cipheradapter: aead init failed: %w", err)
		}
		sealed := append(append([]byte(nil), ciphertext...), tag...)
		plaintext, err := aead.Open(nil, nonce, sealed, nil)
		if err != nil {
			return nil, fmt.Errorf("cipheradapter: aead open failed: %w", err)
		}
		return plaintext, nil
	}
	stream, err := e.newStream(key, nonce)
	if err != nil {
		return nil, fmt.Errorf("cipheradapter: stream init failed: %w", err)
	}
	out := make([]byte, len(ciphertext))
	stream.XORKeyStream(out, ciphertext)
	return out, nil
}
