package pool_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochi-hpc/mofka-sub001/pkg/pool"
)

func TestFutureWaitReturnsValue(t *testing.T) {
	t.Parallel()

	p, f := pool.New[int]()
	go p.SetValue(42)

	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, f.Completed())
}

func TestFutureWaitReturnsError(t *testing.T) {
	t.Parallel()

	p, f := pool.New[int]()
	p.SetError(assert.AnError)

	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestFutureSecondCompleteIgnored(t *testing.T) {
	t.Parallel()

	p, f := pool.New[int]()
	p.SetValue(1)
	p.SetValue(2)

	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFutureWaitHonoursCancellation(t *testing.T) {
	t.Parallel()

	_, f := pool.New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, f.Completed())
}

func TestTaskQueuePreservesOrder(t *testing.T) {
	t.Parallel()

	q := pool.NewTaskQueue()
	defer q.Close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		q.Submit(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < 10; i++ {
		assert.Equal(t, i, order[i])
	}
}

func TestAdaptiveRisesOnFastService(t *testing.T) {
	t.Parallel()

	a := pool.NewAdaptive(16, 1024, 5*time.Millisecond)
	assert.Equal(t, uint64(16), a.Limit())

	// Healthy, fast service times should push the soft limit up.
	for i := 0; i < 20; i++ {
		a.Observe(time.Microsecond)
		time.Sleep(6 * time.Millisecond)
	}
	assert.Greater(t, a.Limit(), uint64(16))
}

func TestAdaptiveTakeCapsAtAvailable(t *testing.T) {
	t.Parallel()

	a := pool.NewAdaptive(16, 1024, 5*time.Millisecond)
	assert.Equal(t, uint64(5), a.Take(5))
	assert.Equal(t, uint64(16), a.Take(1000))
}
