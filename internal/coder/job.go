package coder

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/telraneng/chunkcoder/internal/bufs"
	"github.com/telraneng/chunkcoder/internal/cipheradapter"
	"github.com/telraneng/chunkcoder/internal/compression"
	"github.com/telraneng/chunkcoder/internal/debug"
	"github.com/telraneng/chunkcoder/internal/digest"
	"github.com/telraneng/chunkcoder/internal/erasure"
)

// zeroNonce is the fixed all-zero IV used whenever a cipher is configured:
// safe only because the key is unique per chunk. 64 bytes covers every
// registered cipher's NonceLen with room to spare.
var zeroNonce = make([]byte, 64)

// Job is one Coder Job: populated by a caller, run once, then read back or
// discarded. The job is consumed by the call — it is not reusable.
type Job struct {
	Cfg Config

	// Encode input.
	Data *bufs.List

	// Decode input.
	Frags []Fragment

	// Shared in/out fields.
	Digest        []byte
	CipherKey     []byte
	CipherAuthTag []byte
	FragSize      int
	CompressSize  int

	// Encode output.
	OutFrags []Fragment
	// Decode output.
	OutData *bufs.List

	Errors ErrorList

	Pool     *bufs.Pool
	Digests  *digest.Registry
	Ciphers  *cipheradapter.Registry
	Log      *logrus.Logger

	// parityBacking is the single shared allocation backing every parity
	// fragment. Ownership is tracked here, at the job level, rather
	// than on fragment 0: a forest rooted at the job is easier to free
	// exactly once than threading an owned/shared distinction through
	// individual Fragment.Block lists that otherwise behave uniformly.
	parityBacking []byte
}

// Run executes the configured direction's pipeline, mutating the job's
// state in place. It never returns an error directly — failures land in
// Errors; callers check Errors.HasErrors() after Run returns.
func (j *Job) Run() {
	start := time.Now()
	switch j.Cfg.Direction {
	case Encode:
		j.encode()
	case Decode:
		j.decode()
	default:
		j.Errors.Add(KindInternal, fmt.Sprintf("unknown direction %v", j.Cfg.Direction), nil)
	}
	j.logCompletion(time.Since(start))
}

func (j *Job) logCompletion(elapsed time.Duration) {
	if j.Log == nil {
		return
	}
	fields := logrus.Fields{
		"direction":    j.Cfg.Direction.String(),
		"parity_type":  j.Cfg.ParityType,
		"data_frags":   j.Cfg.DataFrags,
		"parity_frags": j.Cfg.ParityFrags,
		"frag_size":    j.FragSize,
		"elapsed_ms":   elapsed.Milliseconds(),
	}
	if j.Errors.HasErrors() {
		fields["errors"] = j.Errors.Strings()
		j.Log.WithFields(fields).Warn("coder job failed")
		return
	}
	j.Log.WithFields(fields).Info("coder job completed")
}

// resolveAlgorithms looks up the digest/frag-digest/cipher names
// configured for this job, recording UnsupportedAlgorithm/UnsupportedCipher
// on failure. It returns ok=false if this job cannot proceed.
func (j *Job) resolveAlgorithms() (cipherEntry cipheradapter.Entry, hasCipher bool, ok bool) {
	ok = true
	if j.Cfg.DigestType != "" && j.Digests != nil && !j.Digests.Supports(j.Cfg.DigestType) {
		j.Errors.Add(KindUnsupportedAlgorithm, "digest_type "+j.Cfg.DigestType, nil)
		ok = false
	}
	if j.Cfg.FragDigestType != "" && j.Digests != nil && !j.Digests.Supports(j.Cfg.FragDigestType) {
		j.Errors.Add(KindUnsupportedAlgorithm, "frag_digest_type "+j.Cfg.FragDigestType, nil)
		ok = false
	}
	if j.Cfg.CipherType != "" {
		if j.Ciphers == nil {
			j.Errors.Add(KindUnsupportedCipher, j.Cfg.CipherType, nil)
			ok = false
			return
		}
		entry, err := j.Ciphers.Resolve(j.Cfg.CipherType)
		if err != nil {
			j.Errors.Add(KindUnsupportedCipher, j.Cfg.CipherType, err)
			ok = false
			return
		}
		cipherEntry, hasCipher = entry, true
	}
	return
}

// ---- Encode ----------------------------------------------------------

func (j *Job) encode() {
	if err := j.Cfg.Validate(); err != nil {
		j.Errors.Add(KindInvalidConfig, "encode", err)
		return
	}

	cipherEntry, hasCipher, ok := j.resolveAlgorithms()
	if !ok {
		return
	}

	if j.Data == nil || j.Data.Len() != j.Cfg.Size {
		got := 0
		if j.Data != nil {
			got = j.Data.Len()
		}
		j.Errors.Add(KindSizeMismatch, fmt.Sprintf("input length %d != configured size %d", got, j.Cfg.Size), nil)
		return
	}

	if j.Cfg.DigestType != "" {
		sum, err := j.Digests.Compute(j.Cfg.DigestType, j.Data.Segments())
		if err != nil {
			j.Errors.Add(KindUnsupportedAlgorithm, j.Cfg.DigestType, err)
			return
		}
		j.Digest = sum
	}

	currentLen := j.Cfg.Size
	if j.Cfg.CompressType != "" {
		compressed, err := compression.Compress(j.Cfg.CompressType, j.Data.Merge())
		if err != nil {
			j.Errors.Add(KindUnsupportedCompressor, j.Cfg.CompressType, err)
			return
		}
		j.Data = bufs.FromOwned(compressed, j.Pool)
		j.CompressSize = len(compressed)
		currentLen = j.CompressSize
	}

	padded := paddedSize(currentLen, j.Cfg.DataFrags)
	j.Data.AppendZeros(padded - currentLen)
	j.FragSize = padded / j.Cfg.DataFrags

	total := j.Cfg.TotalFrags()
	frags := make([]Fragment, total)
	for i := 0; i < j.Cfg.DataFrags; i++ {
		frags[i] = Fragment{Role: RoleData, Index: i}
	}
	for i := 0; i < j.Cfg.ParityFrags; i++ {
		frags[j.Cfg.DataFrags+i] = Fragment{Role: RoleParity, Index: i}
	}
	for i := 0; i < j.Cfg.TotalFrags()-j.Cfg.DataFrags-j.Cfg.ParityFrags; i++ {
		frags[j.Cfg.DataFrags+j.Cfg.ParityFrags+i] = Fragment{Role: RoleLRC, Index: i} // reserved, left unpopulated
	}

	if hasCipher {
		if !j.encryptDataFrags(cipherEntry, frags) {
			return
		}
	} else {
		padded := j.Data.Merge()
		for i := 0; i < j.Cfg.DataFrags; i++ {
			frags[i].Block = bufs.FromShared(padded[i*j.FragSize:(i+1)*j.FragSize], j.Pool)
		}
	}

	if j.Cfg.ParityType != "" && j.Cfg.ParityFrags > 0 {
		if !j.encodeParity(frags) {
			return
		}
	}

	if j.Cfg.FragDigestType != "" {
		for i := range frags {
			if frags[i].Block == nil {
				continue // reserved LRC slot
			}
			sum, err := j.Digests.Compute(j.Cfg.FragDigestType, frags[i].Block.Segments())
			if err != nil {
				j.Errors.Add(KindUnsupportedAlgorithm, j.Cfg.FragDigestType, err)
				return
			}
			frags[i].Digest = sum
			if debug.Enabled() && j.Log != nil {
				j.Log.WithFields(logrus.Fields{
					"role":  frags[i].Role,
					"index": frags[i].Index,
					"bytes": frags[i].Block.Len(),
				}).Debug("coder: fragment digested")
			}
		}
	}

	j.OutFrags = frags
}

func (j *Job) encryptDataFrags(entry cipheradapter.Entry, frags []Fragment) bool {
	key := j.CipherKey
	if key == nil {
		key = make([]byte, entry.KeyLen)
		if _, err := rand.Read(key); err != nil {
			j.Errors.Add(KindCipherInitFailed, "key generation", err)
			return false
		}
	} else if len(key) != entry.KeyLen {
		j.Errors.Add(KindCipherInitFailed, fmt.Sprintf("cipher_key length %d != %d", len(key), entry.KeyLen), nil)
		return false
	}
	j.CipherKey = key
	nonce := zeroNonce[:entry.NonceLen]

	plaintext := j.Data.Merge()
	ciphertext, tag, err := cipheradapter.Encrypt(entry, key, nonce, plaintext)
	if err != nil {
		j.Errors.Add(KindCipherUpdateFailed, entry.Name, err)
		return false
	}
	j.CipherAuthTag = tag

	for i := 0; i < j.Cfg.DataFrags; i++ {
		chunk := ciphertext[i*j.FragSize : (i+1)*j.FragSize]
		frags[i].Block = bufs.FromOwned(chunk, j.Pool)
	}
	return true
}

func (j *Job) encodeParity(frags []Fragment) bool {
	backend, err := erasure.New(j.Cfg.ParityType, j.Cfg.DataFrags, j.Cfg.ParityFrags)
	if err != nil {
		j.Errors.Add(KindErasureBadType, j.Cfg.ParityType, err)
		return false
	}

	j.parityBacking = j.alloc(j.Cfg.ParityFrags * j.FragSize)
	parityShards := make([][]byte, j.Cfg.ParityFrags)
	for i := 0; i < j.Cfg.ParityFrags; i++ {
		shard := j.parityBacking[i*j.FragSize : (i+1)*j.FragSize]
		parityShards[i] = shard
		frags[j.Cfg.DataFrags+i].Block = bufs.FromShared(shard, j.Pool)
	}

	dataShards := make([][]byte, j.Cfg.DataFrags)
	for i := 0; i < j.Cfg.DataFrags; i++ {
		dataShards[i] = frags[i].Block.Merge()
	}

	if err := backend.Encode(dataShards, parityShards); err != nil {
		j.Errors.Add(KindErasureEncodeFailed, j.Cfg.ParityType, err)
		return false
	}
	return true
}

func (j *Job) alloc(n int) []byte {
	if j.Pool != nil {
		return j.Pool.Get(n)[:n]
	}
	return make([]byte, n)
}

// ---- Decode ------------------------------------------------------------

func (j *Job) decode() {
	if err := j.Cfg.Validate(); err != nil {
		j.Errors.Add(KindInvalidConfig, "decode", err)
		return
	}

	cipherEntry, hasCipher, ok := j.resolveAlgorithms()
	if !ok {
		return
	}

	if len(j.Frags) < j.Cfg.DataFrags {
		j.Errors.Add(KindMissingDataFrags, fmt.Sprintf("got %d fragments, need at least %d", len(j.Frags), j.Cfg.DataFrags), nil)
		return
	}

	decryptedSize := j.Cfg.Size
	if j.CompressSize != 0 {
		decryptedSize = j.CompressSize
	}
	padded := paddedSize(decryptedSize, j.Cfg.DataFrags)
	expectedFragSize := padded / j.Cfg.DataFrags
	if j.FragSize != 0 && j.FragSize != expectedFragSize {
		j.Errors.Add(KindFragSizeMismatch, fmt.Sprintf("job frag_size %d != expected %d", j.FragSize, expectedFragSize), nil)
		return
	}
	j.FragSize = expectedFragSize

	mapLen := j.Cfg.DataFrags + j.Cfg.ParityFrags
	positional := make([]*Fragment, mapLen)
	for i := range j.Frags {
		f := &j.Frags[i]
		if f.Role == RoleLRC {
			continue // LRC decode is not yet implemented; reserved-but-unused
		}
		idx := f.GlobalIndex(j.Cfg)
		if idx < 0 || idx >= mapLen {
			continue
		}
		if positional[idx] != nil {
			continue // duplicate: first one seen wins
		}
		if f.Block == nil || f.Block.Len() != j.FragSize {
			continue // rejected: wrong size, treated as unavailable
		}
		if j.Cfg.FragDigestType != "" {
			if f.Digest == nil {
				continue // rejected: digest required but absent, treated as unavailable
			}
			ok, err := j.Digests.Match(j.Cfg.FragDigestType, f.Block.Segments(), f.Digest)
			if err != nil || !ok {
				continue // rejected: corrupt, treated as unavailable
			}
		}
		if debug.Enabled() && j.Log != nil {
			j.Log.WithFields(logrus.Fields{
				"role":  f.Role,
				"index": f.Index,
				"slot":  idx,
			}).Debug("coder: fragment accepted")
		}
		positional[idx] = f
	}

	availableData := 0
	for i := 0; i < j.Cfg.DataFrags; i++ {
		if positional[i] != nil {
			availableData++
		}
	}
	availableTotal := 0
	for _, f := range positional {
		if f != nil {
			availableTotal++
		}
	}

	if availableData < j.Cfg.DataFrags {
		if j.Cfg.ParityFrags == 0 {
			j.Errors.Add(KindMissingDataFragsNoParity, fmt.Sprintf("have %d/%d data fragments, no parity configured", availableData, j.Cfg.DataFrags), nil)
			return
		}
		if availableTotal < j.Cfg.DataFrags {
			j.Errors.Add(KindNotEnoughParity, fmt.Sprintf("have %d fragments total, need %d", availableTotal, j.Cfg.DataFrags), nil)
			return
		}
		if !j.reconstruct(positional) {
			return
		}
	}

	plaintext, ok2 := j.concatenateData(positional, cipherEntry, hasCipher)
	if !ok2 {
		return
	}

	if err := plaintext.Truncate(decryptedSize); err != nil {
		j.Errors.Add(KindInternal, "truncate to decrypted size", err)
		return
	}

	if j.Cfg.CompressType != "" {
		decompressed, err := compression.Decompress(j.Cfg.CompressType, plaintext.Merge())
		if err != nil {
			j.Errors.Add(KindUnsupportedCompressor, j.Cfg.CompressType, err)
			return
		}
		plaintext = bufs.FromOwned(decompressed, j.Pool)
	}

	if plaintext.Len() != j.Cfg.Size {
		j.Errors.Add(KindSizeMismatch, fmt.Sprintf("final length %d != configured size %d", plaintext.Len(), j.Cfg.Size), nil)
		return
	}

	if j.Cfg.DigestType != "" && j.Digest != nil {
		matched, err := j.Digests.Match(j.Cfg.DigestType, plaintext.Segments(), j.Digest)
		if err != nil {
			j.Errors.Add(KindUnsupportedAlgorithm, j.Cfg.DigestType, err)
			return
		}
		if !matched {
			j.Errors.Add(KindChunkDigestMismatch, "recomputed chunk digest does not match recorded digest", nil)
			return
		}
	}

	j.OutData = plaintext
}

func (j *Job) reconstruct(positional []*Fragment) bool {
	backend, err := erasure.New(j.Cfg.ParityType, j.Cfg.DataFrags, j.Cfg.ParityFrags)
	if err != nil {
		j.Errors.Add(KindErasureBadType, j.Cfg.ParityType, err)
		return false
	}

	shards := make([][]byte, len(positional))
	for i, f := range positional {
		if f != nil {
			shards[i] = f.Block.Merge()
		}
	}

	recovered, err := backend.Decode(shards, j.Cfg.DataFrags)
	if err != nil {
		switch err.(type) {
		case *erasure.ErrDecodeInvert:
			j.Errors.Add(KindErasureDecodeInvert, j.Cfg.ParityType, err)
		default:
			j.Errors.Add(KindErasureDecodeFailed, j.Cfg.ParityType, err)
		}
		return false
	}

	for idx, data := range recovered {
		positional[idx] = &Fragment{Role: RoleData, Index: idx, Block: bufs.FromOwned(data, j.Pool)}
	}
	return true
}

func (j *Job) concatenateData(positional []*Fragment, cipherEntry cipheradapter.Entry, hasCipher bool) (*bufs.List, bool) {
	if hasCipher {
		ciphertext := make([]byte, j.Cfg.DataFrags*j.FragSize)
		for i := 0; i < j.Cfg.DataFrags; i++ {
			copy(ciphertext[i*j.FragSize:(i+1)*j.FragSize], positional[i].Block.Merge())
		}
		nonce := zeroNonce[:cipherEntry.NonceLen]
		plaintext, err := cipheradapter.Decrypt(cipherEntry, j.CipherKey, nonce, ciphertext, j.CipherAuthTag, true)
		if err != nil {
			j.Errors.Add(KindCipherUpdateFailed, cipherEntry.Name, err)
			return nil, false
		}
		return bufs.FromOwned(plaintext, j.Pool), true
	}

	out := bufs.New(j.Pool)
	for i := 0; i < j.Cfg.DataFrags; i++ {
		out.AppendShared(positional[i].Block.Merge())
	}
	return out, true
}
