package app

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// TestModeEnv is set by importing the repository's testing package, which
// makes the cmd mains return before dialing Postgres, Redis, or the queue.
const TestModeEnv = "ODYSSEY_TEST_MODE"

var testMode struct {
	mu     sync.RWMutex
	loaded bool
	on     bool
}

// parseTestMode accepts the strconv.ParseBool spellings; anything else is off.
func parseTestMode(raw string) bool {
	on, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && on
}

// InTestMode reports whether the ledger binaries should skip their runtime
// wiring. The environment is read on first use and cached.
func InTestMode() bool {
	testMode.mu.RLock()
	loaded, on := testMode.loaded, testMode.on
	testMode.mu.RUnlock()
	if loaded {
		return on
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads TestModeEnv and returns the new setting.
func RefreshTestMode() bool {
	on := parseTestMode(os.Getenv(TestModeEnv))
	testMode.mu.Lock()
	testMode.loaded, testMode.on = true, on
	testMode.mu.Unlock()
	return on
}
