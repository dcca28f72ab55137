package producer_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochi-hpc/mofka-sub001/pkg/dataview"
	"github.com/mochi-hpc/mofka-sub001/pkg/driver"
	"github.com/mochi-hpc/mofka-sub001/pkg/eventid"
	"github.com/mochi-hpc/mofka-sub001/pkg/metadata"
	"github.com/mochi-hpc/mofka-sub001/pkg/pool"
	"github.com/mochi-hpc/mofka-sub001/pkg/producer"
	"github.com/mochi-hpc/mofka-sub001/pkg/provider"
	"github.com/mochi-hpc/mofka-sub001/pkg/transport"
)

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

func openTestTopic(t *testing.T, numPartitions int) *driver.TopicHandle {
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
	return handle
}

func TestPushResolvesDenseEventIDs(t *testing.T) {
	t.Parallel()

	topic := openTestTopic(t, 1)
	prod, err := producer.New(topic, producer.Config{
		Name:      "p1",
		BatchSize: pool.BatchSize(4),
		Ordering:  producer.Strict,
	})
	require.NoError(t, err)
	defer prod.Close(context.Background())

	ctx := context.Background()
	var futures []*pool.Future[eventid.EventID]
	for i := 0; i < 10; i++ {
		meta, err := metadata.FromMap(map[string]int{"i": i})
		require.NoError(t, err)
		f, err := prod.Push(ctx, meta, dataview.Empty(), nil)
		require.NoError(t, err)
		futures = append(futures, f)
	}

	flushed, err := prod.Flush(ctx)
	require.NoError(t, err)
	_, err = flushed.Wait(ctx)
	require.NoError(t, err)

	for i, f := range futures {
		v, err := f.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, eventid.EventID(i), v)
	}
}

func TestPushRejectsInvalidMetadataWithoutSending(t *testing.T) {
	t.Parallel()

	addr := startProvider(t)
	d, err := driver.Connect(addr)
	require.NoError(t, err)
	defer d.Close()

	ctx := context.Background()
	fieldPredicate, err := metadata.FromMap(map[string]interface{}{
		"field": "energy", "max": 100,
	})
	require.NoError(t, err)
	require.NoError(t, d.CreateTopic(ctx, "events",
		driver.PolicyChoice{Type: "field-predicate", Config: fieldPredicate},
		driver.PolicyChoice{Type: "round-robin", Config: metadata.Empty()},
		driver.PolicyChoice{Type: "json", Config: metadata.Empty()},
	))
	_, err = d.AddPartition(ctx, "events", driver.AddPartitionOptions{Type: "memory"})
	require.NoError(t, err)
	topic, err := d.OpenTopic(ctx, "events")
	require.NoError(t, err)

	prod, err := producer.New(topic, producer.Config{Name: "p1", BatchSize: pool.BatchSize(4), Ordering: producer.Strict})
	require.NoError(t, err)
	defer prod.Close(ctx)

	bad, err := metadata.FromMap(map[string]int{"energy": 150})
	require.NoError(t, err)
	f, err := prod.Push(ctx, bad, dataview.Empty(), nil)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err = f.Wait(waitCtx)
	require.Error(t, err)
}

func TestPushHonoursExplicitPartitionChoice(t *testing.T) {
	t.Parallel()

	topic := openTestTopic(t, 3)
	prod, err := producer.New(topic, producer.Config{Name: "p1", BatchSize: pool.BatchSize(1), Ordering: producer.Loose, MaxInFlight: 4})
	require.NoError(t, err)
	defer prod.Close(context.Background())

	ctx := context.Background()
	meta, err := metadata.FromMap(map[string]int{"i": 0})
	require.NoError(t, err)
	target := 2
	f, err := prod.Push(ctx, meta, dataview.Empty(), &target)
	require.NoError(t, err)

	v, err := f.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, eventid.EventID(0), v)
}
