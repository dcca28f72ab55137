package pool

// Semaphore bounds how many callers may hold it concurrently, the
// shared-capacity counterpart to TaskQueue's per-owner serialization:
// TaskQueue orders work within one owner, Semaphore caps how many
// owners' work may run at once across the whole daemon (internal/config's
// Daemon.PoolSize knob).
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore returns a Semaphore with n concurrent slots. n must be
// positive; callers that want an unbounded semaphore should simply
// not construct one and guard the acquire/release calls instead.
func NewSemaphore(n int) *Semaphore {
	return &Semaphore{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free.
func (s *Semaphore) Acquire() {
	s.slots <- struct{}{}
}

// Release frees a slot acquired by Acquire.
func (s *Semaphore) Release() {
	<-s.slots
}
