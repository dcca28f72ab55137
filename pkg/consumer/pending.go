package consumer

import (
	"sync"

	"github.com/mochi-hpc/mofka-sub001/pkg/pool"
)

// pendingEntry pairs one pull()'s Promise with the Future returned to
// its caller.
type pendingEntry struct {
	promise *pool.Promise[Event]
	future  *pool.Future[Event]
}

func newPendingEntry() *pendingEntry {
	promise, future := pool.New[Event]()
	return &pendingEntry{promise: promise, future: future}
}

// pendingQueue is the credit-toggled FIFO of (Promise, Future) pairs
// described by spec.md §4.8, mirrored directly from the inline
// comment in original_source/include/mofka/MofkaConsumer.hpp's
// m_futures/m_futures_credit fields:
//
// if credit is true, every entry currently queued was created by a
// user pull() call that has not yet been matched to an arriving
// event; the next arrival takes the oldest one off the front and
// fulfils it. If credit is false, every entry was created by the
// consumer ahead of any pull() (arrivals outpacing demand); the next
// pull() takes the oldest one off the front, already fulfilled.
//
// Both deliver and pull flip credit whenever they drain the queue to
// empty, which is what keeps the two modes symmetric: a queue that
// was all user-side debt becomes all consumer-side credit (and vice
// versa) the instant it empties out from under the opposite
// operation.
type pendingQueue struct {
	mu     sync.Mutex
	queue  []*pendingEntry
	credit bool
}

func newPendingQueue() *pendingQueue {
	// credit starts true: a freshly subscribed consumer with no
	// arrivals yet behaves as if pull() is the side running ahead.
	return &pendingQueue{credit: true}
}

// deliver fulfils the next slot in the queue with event, per the
// credit discipline above.
func (q *pendingQueue) deliver(event Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.credit && len(q.queue) > 0 {
		entry := q.queue[0]
		q.queue = q.queue[1:]
		if len(q.queue) == 0 {
			q.credit = false
		}
		entry.promise.SetValue(event)
		return
	}

	pf := newPendingEntry()
	pf.promise.SetValue(event)
	q.queue = append(q.queue, pf)
	q.credit = false
}

// pull returns the next Future in the queue, per the credit
// discipline above.
func (q *pendingQueue) pull() *pendingEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.credit && len(q.queue) > 0 {
		entry := q.queue[0]
		q.queue = q.queue[1:]
		if len(q.queue) == 0 {
			q.credit = true
		}
		return entry
	}

	pf := newPendingEntry()
	q.queue = append(q.queue, pf)
	q.credit = true
	return pf
}

// drain resolves every still-pending entry with event, used once
// every attached partition has completed (spec.md §4.8
// partition-completion rule). Entries already fulfilled ignore the
// call, per Promise's single-fulfillment contract.
func (q *pendingQueue) drain(event Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, entry := range q.queue {
		entry.promise.SetValue(event)
	}
}
