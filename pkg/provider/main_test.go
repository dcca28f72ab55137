package provider_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain asserts that no goroutine outlives the package's tests —
// in particular the transport.Server each test starts to host a
// Provider, which must shut down cleanly on t.Cleanup.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
