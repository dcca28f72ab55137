package transport_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain asserts that no goroutine outlives the package's tests —
// in particular Server's per-connection accept loop and per-frame
// dispatch goroutines, and Conn's readLoop, which must all exit once
// Close is called.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
