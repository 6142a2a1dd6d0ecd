package agent

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain guards against goroutine leaks from Loop.start's background run
// goroutine across every test in this package.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
