package streamio

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain guards against goroutine leaks from EventStream's internal
// cancellation watcher, the same leak-detection discipline the teacher
// applies to its own streaming machinery.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
