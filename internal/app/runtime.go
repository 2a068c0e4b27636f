package app

import (
	"os"
	"strconv"
)

// TestModeEnv makes the binaries return before touching Postgres, Redis or
// the identity provider.
const TestModeEnv = "DEVCAMPUS_TEST_MODE"

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}
