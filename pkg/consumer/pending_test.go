package consumer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochi-hpc/mofka-sub001/pkg/eventid"
)

func TestPendingQueuePullThenDeliverIsOrdered(t *testing.T) {
	t.Parallel()

	q := newPendingQueue()
	f1 := q.pull().future
	f2 := q.pull().future

	assert.False(t, f1.Completed())
	assert.False(t, f2.Completed())

	q.deliver(Event{ID: eventid.EventID(0)})
	q.deliver(Event{ID: eventid.EventID(1)})

	ctx := context.Background()
	ev1, err := f1.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, eventid.EventID(0), ev1.ID)

	ev2, err := f2.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, eventid.EventID(1), ev2.ID)
}

func TestPendingQueueDeliverThenPullIsOrdered(t *testing.T) {
	t.Parallel()

	q := newPendingQueue()
	q.deliver(Event{ID: eventid.EventID(0)})
	q.deliver(Event{ID: eventid.EventID(1)})

	ctx := context.Background()
	ev1, err := q.pull().future.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, eventid.EventID(0), ev1.ID)

	ev2, err := q.pull().future.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, eventid.EventID(1), ev2.ID)
}

func TestPendingQueueTogglesAcrossModes(t *testing.T) {
	t.Parallel()

	q := newPendingQueue()
	ctx := context.Background()

	// Arrival outpaces demand: queue now holds one already-fulfilled
	// entry, credit false.
	q.deliver(Event{ID: eventid.EventID(0)})
	assert.False(t, q.credit)

	// Demand catches up and drains it.
	ev, err := q.pull().future.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, eventid.EventID(0), ev.ID)

	// Demand now outpaces arrival: credit flips true.
	f := q.pull().future
	assert.True(t, q.credit)
	assert.False(t, f.Completed())

	q.deliver(Event{ID: eventid.EventID(1)})
	ev, err = f.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, eventid.EventID(1), ev.ID)
}

func TestPendingQueueDrainResolvesOutstandingOnly(t *testing.T) {
	t.Parallel()

	q := newPendingQueue()
	waiting := q.pull().future

	q.drain(Event{ID: eventid.NoMoreEvents})

	ctx := context.Background()
	ev, err := waiting.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, eventid.NoMoreEvents, ev.ID)
}
