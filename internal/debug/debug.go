// Package debug holds the coder's process-wide fragment-trace toggle: a
// single flag, read by internal/coder's job pipeline, deciding whether each
// fragment's digest/role is logged individually in addition to the one
// summary line Job.Run always emits.
package debug

import (
	"os"
	"sync"
)

var (
	enabled bool
	mu      sync.RWMutex
)

func init() {
	InitFromEnv()
}

// Enabled reports whether per-fragment trace logging is turned on.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// SetEnabled sets the trace flag directly, bypassing the environment.
func SetEnabled(value bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = value
}

// InitFromEnv reads CODER_TRACE=true, falling back to LOG_LEVEL=debug, to
// decide the trace flag's initial value. It runs at package init so a test
// or a caller that never touches cmd/codercli's -verbose flag still gets
// the environment's answer.
func InitFromEnv() {
	if os.Getenv("CODER_TRACE") == "true" {
		SetEnabled(true)
		return
	}
	if os.Getenv("LOG_LEVEL") == "debug" {
		SetEnabled(true)
		return
	}
	SetEnabled(false)
}

// InitFromLogLevel derives the trace flag from a logrus-style level name,
// but only when neither CODER_TRACE nor LOG_LEVEL is already set in the
// environment — an explicit env var always wins over a flag-derived level.
func InitFromLogLevel(logLevel string) {
	if os.Getenv("CODER_TRACE") == "" && os.Getenv("LOG_LEVEL") == "" {
		SetEnabled(logLevel == "debug")
	}
}
