package coder

import "github.com/telraneng/chunkcoder/internal/bufs"

// Role identifies which slot kind a Fragment occupies. Exactly one of
// data_index, parity_index, or lrc_index is meaningful per fragment; Role
// and Index together encode whichever one applies.
type Role int

const (
	RoleData Role = iota
	RoleParity
	RoleLRC
)

func (r Role) String() string {
	switch r {
	case RoleData:
		return "data"
	case RoleParity:
		return "parity"
	case RoleLRC:
		return "lrc"
	default:
		return "unknown"
	}
}

// Fragment is one coder output/input unit: a role-tagged Buffer List plus
// an optional per-fragment digest.
type Fragment struct {
	Role   Role
	Index  int // data_index, parity_index, or lrc_index, per Role
	Block  *bufs.List
	Digest []byte
}

// GlobalIndex maps a Fragment's role-relative Index to its position in the
// pipeline's positional map, given the job's data/parity fragment counts.
// LRC fragments report their slot past data+parity, but decode never looks
// them up — they're skipped as not yet applicable.
func (f Fragment) GlobalIndex(cfg Config) int {
	switch f.Role {
	case RoleData:
		return f.Index
	case RoleParity:
		return cfg.DataFrags + f.Index
	default: // RoleLRC
		return cfg.DataFrags + cfg.ParityFrags + f.Index
	}
}
