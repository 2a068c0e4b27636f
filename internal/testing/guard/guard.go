// Package guard switches the process into test mode when imported, so
// binaries under test skip their runtime side effects.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("DEVCAMPUS_TEST_MODE") == "" {
			_ = os.Setenv("DEVCAMPUS_TEST_MODE", "1")
		}
	})
}
