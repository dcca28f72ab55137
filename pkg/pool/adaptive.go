package pool

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BatchSize selects either a fixed batch-size target or the
// Adaptive sentinel (spec.md §2 item 9/10, §4.4, §4.7).
type BatchSize uint64

// AdaptiveBatchSize is the sentinel requesting an EWMA-tracked soft
// limit instead of a fixed batch size.
const AdaptiveBatchSize BatchSize = 0

// Adaptive tracks a batch-size soft limit with an exponentially
// weighted moving average over observed feed/send service time: it
// rises quickly on sustained throughput (consumer draining fast,
// producer shipping cleanly) and falls back more gradually under
// back-pressure, per SPEC_FULL.md's supplemented-features note on the
// original implementation's adaptive path.
type Adaptive struct {
	mu          sync.Mutex
	soft        float64
	min, max    uint64
	riseFactor  float64
	fallFactor  float64
	slowService time.Duration
	limiter     *rate.Limiter
}

// NewAdaptive builds an Adaptive limit bounded to [min, max],
// starting at min. slowService is the service-time threshold above
// which an observation counts as back-pressure rather than healthy
// throughput.
func NewAdaptive(min, max uint64, slowService time.Duration) *Adaptive {
	if max < min {
		max = min
	}
	return &Adaptive{
		soft:        float64(min),
		min:         min,
		max:         max,
		riseFactor:  0.3,
		fallFactor:  0.1,
		slowService: slowService,
		limiter:     rate.NewLimiter(rate.Every(5*time.Millisecond), 1),
	}
}

// Observe records one feed/send cycle's service time. Adjustments
// are debounced through a rate.Limiter so a tight burst of
// observations cannot whipsaw the soft limit within a single
// scheduling quantum.
func (a *Adaptive) Observe(serviceTime time.Duration) {
	if !a.limiter.Allow() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if serviceTime <= a.slowService {
		a.soft += a.riseFactor * (float64(a.max) - a.soft)
	} else {
		a.soft -= a.fallFactor * (a.soft - float64(a.min))
	}
	if a.soft < float64(a.min) {
		a.soft = float64(a.min)
	}
	if a.soft > float64(a.max) {
		a.soft = float64(a.max)
	}
}

// Limit returns the current soft limit, rounded down, never below
// min.
func (a *Adaptive) Limit() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	v := uint64(a.soft)
	if v < a.min {
		v = a.min
	}
	return v
}

// Take returns the number of items to process this cycle given how
// many are available: the smaller of the current soft limit and
// available, per spec.md §4.4's adaptive feed rule.
func (a *Adaptive) Take(available uint64) uint64 {
	limit := a.Limit()
	if available < limit {
		return available
	}
	return limit
}
