package app

import (
	"os"
	"sync"
	"sync/atomic"
)

// Build metadata, overridden with -ldflags "-X".
var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

const testModeEnv = "PROPOSTAS_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// InTestMode reports whether binaries should skip connecting to external services.
func InTestMode() bool {
	testModeOnce.Do(RefreshTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads PROPOSTAS_TEST_MODE after environment changes.
func RefreshTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}
