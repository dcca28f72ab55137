package consumer_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mochi-hpc/mofka-sub001/pkg/consumer"
	"github.com/mochi-hpc/mofka-sub001/pkg/dataview"
	"github.com/mochi-hpc/mofka-sub001/pkg/driver"
	"github.com/mochi-hpc/mofka-sub001/pkg/eventid"
	"github.com/mochi-hpc/mofka-sub001/pkg/metadata"
	"github.com/mochi-hpc/mofka-sub001/pkg/pool"
	"github.com/mochi-hpc/mofka-sub001/pkg/producer"
	"github.com/mochi-hpc/mofka-sub001/pkg/provider"
	"github.com/mochi-hpc/mofka-sub001/pkg/transport"
)

// TestMain asserts that no goroutine outlives the package's tests —
// it covers both this file's (consumer_test) and pending_test.go's
// (consumer) tests, since both compile into one test binary and only
// one TestMain may exist for it. The goroutines under watch are each
// Consumer's per-partition callback server and the provider/transport
// servers startProvider spins up, all of which must exit once
// Unsubscribe/Close runs.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startProvider(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	p := provider.New(ln.Addr().String(), logrus.New())
	srv := transport.NewServer(ln, logrus.New())
	p.AttachHandlers(srv)
	t.Cleanup(func() { _ = srv.Close() })
	go func() { _ = srv.Serve() }()
	return ln.Addr().String()
}

func openTestTopic(t *testing.T, numPartitions int) (*driver.Driver, *driver.TopicHandle) {
	t.Helper()
	addr := startProvider(t)
	d, err := driver.Connect(addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	require.NoError(t, d.CreateTopic(ctx, "events",
		driver.PolicyChoice{Type: "default", Config: metadata.Empty()},
		driver.PolicyChoice{Type: "round-robin", Config: metadata.Empty()},
		driver.PolicyChoice{Type: "json", Config: metadata.Empty()},
	))
	for i := 0; i < numPartitions; i++ {
		_, err := d.AddPartition(ctx, "events", driver.AddPartitionOptions{Type: "memory"})
		require.NoError(t, err)
	}
	handle, err := d.OpenTopic(ctx, "events")
	require.NoError(t, err)
	return d, handle
}

func waitFuture(t *testing.T, f *pool.Future[consumer.Event]) consumer.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := f.Wait(ctx)
	require.NoError(t, err)
	return ev
}

func TestPullReceivesPushedEventsInOrder(t *testing.T) {
	t.Parallel()

	_, topic := openTestTopic(t, 1)

	prod, err := producer.New(topic, producer.Config{Name: "p1", BatchSize: pool.BatchSize(2), Ordering: producer.Strict})
	require.NoError(t, err)
	defer prod.Close(context.Background())

	cons, err := consumer.New(topic, consumer.Config{Name: "c1", BatchSize: pool.BatchSize(2)})
	require.NoError(t, err)
	defer cons.Unsubscribe(context.Background())

	ctx := context.Background()
	zero := 0
	for i := 0; i < 5; i++ {
		meta, err := metadata.FromMap(map[string]int{"i": i})
		require.NoError(t, err)
		_, err = prod.Push(ctx, meta, dataview.Empty(), &zero)
		require.NoError(t, err)
	}
	flushed, err := prod.Flush(ctx)
	require.NoError(t, err)
	_, err = flushed.Wait(ctx)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ev := waitFuture(t, cons.Pull())
		assert.Equal(t, eventid.EventID(i), ev.ID)
		var got struct {
			I int `json:"i"`
		}
		require.NoError(t, ev.Metadata.Unmarshal(&got))
		assert.Equal(t, i, got.I)
	}
}

func TestPullBeforeArrivalBlocksUntilPush(t *testing.T) {
	t.Parallel()

	_, topic := openTestTopic(t, 1)

	prod, err := producer.New(topic, producer.Config{Name: "p1", BatchSize: pool.BatchSize(1), Ordering: producer.Strict})
	require.NoError(t, err)
	defer prod.Close(context.Background())

	cons, err := consumer.New(topic, consumer.Config{Name: "c1", BatchSize: pool.BatchSize(1)})
	require.NoError(t, err)
	defer cons.Unsubscribe(context.Background())

	future := cons.Pull()
	assert.False(t, future.Completed())

	ctx := context.Background()
	meta, err := metadata.FromMap(map[string]int{"i": 42})
	require.NoError(t, err)
	_, err = prod.Push(ctx, meta, dataview.Empty(), nil)
	require.NoError(t, err)

	ev := waitFuture(t, future)
	assert.Equal(t, eventid.EventID(0), ev.ID)
}

func TestAckAdvancesCursorWithoutError(t *testing.T) {
	t.Parallel()

	_, topic := openTestTopic(t, 1)

	prod, err := producer.New(topic, producer.Config{Name: "p1", BatchSize: pool.BatchSize(1), Ordering: producer.Strict})
	require.NoError(t, err)
	defer prod.Close(context.Background())

	cons, err := consumer.New(topic, consumer.Config{Name: "c1", BatchSize: pool.BatchSize(1)})
	require.NoError(t, err)
	defer cons.Unsubscribe(context.Background())

	ctx := context.Background()
	meta, err := metadata.FromMap(map[string]int{"i": 1})
	require.NoError(t, err)
	_, err = prod.Push(ctx, meta, dataview.Empty(), nil)
	require.NoError(t, err)

	ev := waitFuture(t, cons.Pull())
	require.NoError(t, ev.Ack(ctx))
}

func TestNoMoreEventsAfterMarkComplete(t *testing.T) {
	t.Parallel()

	d, topic := openTestTopic(t, 1)

	cons, err := consumer.New(topic, consumer.Config{Name: "c1", BatchSize: pool.BatchSize(1)})
	require.NoError(t, err)
	defer cons.Unsubscribe(context.Background())

	ctx := context.Background()
	future := cons.Pull()
	require.NoError(t, d.MarkPartitionComplete(ctx, topic.Partitions()[0].UUID))

	ev := waitFuture(t, future)
	assert.Equal(t, eventid.NoMoreEvents, ev.ID)
}
