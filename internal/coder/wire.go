package coder

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// encodeBase64/decodeBase64 are small base64 helpers for the wire DTO's
// byte fields.
func encodeBase64(data []byte) string {
	if data == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

func decodeBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("coder: invalid base64 field: %w", err)
	}
	return data, nil
}

// WireFragment is a fragment's over-the-wire metadata. The on-disk
// representation of a fragment is just the raw block bytes; metadata
// (indices, digest) travels out-of-band. Block carries the raw fragment
// bytes alongside the metadata here only for convenience in this DTO — real
// storage backends are expected to keep Block separate from this envelope.
type WireFragment struct {
	Role   string `json:"role"`
	Index  int    `json:"index"`
	Block  string `json:"block"`
	Digest string `json:"digest,omitempty"`
}

// WireResult is the JSON-serializable form of a completed Job's output,
// covering both encode and decode outcomes.
type WireResult struct {
	Direction     string         `json:"direction"`
	Digest        string         `json:"digest,omitempty"`
	CipherKey     string         `json:"cipher_key,omitempty"`
	CipherAuthTag string         `json:"cipher_auth_tag,omitempty"`
	FragSize      int            `json:"frag_size"`
	CompressSize  int            `json:"compress_size,omitempty"`
	Frags         []WireFragment `json:"frags,omitempty"`
	Data          string         `json:"data,omitempty"`
	Errors        []string       `json:"errors,omitempty"`
}

// ToWire renders a completed Job's output fields into a WireResult. If the
// job failed, only Direction and Errors are populated; other output fields
// are left unset.
func (j *Job) ToWire() WireResult {
	out := WireResult{Direction: j.Cfg.Direction.String()}
	if j.Errors.HasErrors() {
		out.Errors = j.Errors.Strings()
		return out
	}

	out.Digest = encodeBase64(j.Digest)
	out.CipherKey = encodeBase64(j.CipherKey)
	out.CipherAuthTag = encodeBase64(j.CipherAuthTag)
	out.FragSize = j.FragSize
	out.CompressSize = j.CompressSize

	if j.Cfg.Direction == Encode {
		out.Frags = make([]WireFragment, len(j.OutFrags))
		for i, f := range j.OutFrags {
			wf := WireFragment{Role: f.Role.String(), Index: f.Index, Digest: encodeBase64(f.Digest)}
			if f.Block != nil {
				wf.Block = encodeBase64(f.Block.Merge())
			}
			out.Frags[i] = wf
		}
	} else if j.OutData != nil {
		out.Data = encodeBase64(j.OutData.Merge())
	}
	return out
}

// MarshalJSON satisfies json.Marshaler by delegating to ToWire.
func (j *Job) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.ToWire())
}
