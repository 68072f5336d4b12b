// Package hardware reports the CPU acceleration available to the cipher
// adapter.
package hardware

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// Config selects which detected acceleration paths the coder is allowed to
// report as active.
type Config struct {
	EnableAESNI    bool
	EnableARMv8AES bool
}

// HasAESHardwareSupport reports whether this CPU offers AES instructions,
// regardless of whether Config enables using them.
func HasAESHardwareSupport() bool {
	switch runtime.GOARCH {
	case "amd64", "386":
		return cpu.X86.HasAES
	case "arm64":
		return cpu.ARM64.HasAES
	case "s390x":
		return cpu.S390X.HasAES
	default:
		return false
	}
}

// AccelerationEnabled reports whether hardware AES is both present and
// turned on in cfg. No cipher in internal/cipheradapter consults this value
// — it's informational (metrics/admin surface), not a code path selector,
// since crypto/aes already dispatches to hardware AES-NI internally when
// present.
func AccelerationEnabled(cfg Config) bool {
	if !HasAESHardwareSupport() {
		return false
	}
	switch runtime.GOARCH {
	case "amd64", "386":
		return cfg.EnableAESNI
	case "arm64":
		return cfg.EnableARMv8AES
	default:
		return true
	}
}

// Info summarizes hardware support for the admin/health surface.
type Info struct {
	AESHardwareSupport bool   `json:"aes_hardware_support"`
	Architecture       string `json:"architecture"`
	OS                 string `json:"goos"`
	GoVersion          string `json:"go_version"`
	AESNIEnabled       bool   `json:"aes_ni_enabled"`
	ARMv8AESEnabled    bool   `json:"armv8_aes_enabled"`
	AccelerationActive bool   `json:"hardware_acceleration_active"`
}

// Detect returns an Info snapshot for cfg.
func Detect(cfg Config) Info {
	return Info{
		AESHardwareSupport: HasAESHardwareSupport(),
		Architecture:       runtime.GOARCH,
		OS:                 runtime.GOOS,
		GoVersion:          runtime.Version(),
		AESNIEnabled:       cfg.EnableAESNI,
		ARMv8AESEnabled:    cfg.EnableARMv8AES,
		AccelerationActive: AccelerationEnabled(cfg),
	}
}
