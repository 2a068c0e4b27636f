// Package testing prepares the environment for packages whose tests load
// the application config. Import it for side effects.
package testing

import (
	"os"
	stdtesting "testing"

	_ "github.com/devcampus/devcampus/internal/testing/guard"
)

var defaults = map[string]string{
	"SESSION_SECRET": "test-session-secret",
	"CSRF_SECRET":    "test-csrf-secret",
}

func init() {
	for key, value := range defaults {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}

func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
