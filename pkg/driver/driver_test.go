package driver_test

import (
	"context"
	"net"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochi-hpc/mofka-sub001/pkg/driver"
	"github.com/mochi-hpc/mofka-sub001/pkg/metadata"
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

func defaultValidator() driver.PolicyChoice {
	return driver.PolicyChoice{Type: "default", Config: metadata.Empty()}
}

func defaultSelector() driver.PolicyChoice {
	return driver.PolicyChoice{Type: "round-robin", Config: metadata.Empty()}
}

func defaultSerializer() driver.PolicyChoice {
	return driver.PolicyChoice{Type: "json", Config: metadata.Empty()}
}

func TestCreateTopicAddPartitionOpenTopic(t *testing.T) {
	t.Parallel()

	addr := startProvider(t)
	d, err := driver.Connect(addr)
	require.NoError(t, err)
	defer d.Close()

	ctx := context.Background()
	require.NoError(t, d.CreateTopic(ctx, "events", defaultValidator(), defaultSelector(), defaultSerializer()))

	uuid1, err := d.AddPartition(ctx, "events", driver.AddPartitionOptions{Type: "memory"})
	require.NoError(t, err)
	assert.NotEmpty(t, uuid1)

	uuid2, err := d.AddPartition(ctx, "events", driver.AddPartitionOptions{Type: "memory"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid1, uuid2)

	handle, err := d.OpenTopic(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, "events", handle.Name())
	require.Len(t, handle.Partitions(), 2)
	assert.NotNil(t, handle.Validator())
	assert.NotNil(t, handle.Selector())
	assert.NotNil(t, handle.Serializer())
}

func TestOpenTopicUnknownFails(t *testing.T) {
	t.Parallel()

	addr := startProvider(t)
	d, err := driver.Connect(addr)
	require.NoError(t, err)
	defer d.Close()

	_, err = d.OpenTopic(context.Background(), "missing")
	require.Error(t, err)
}

func TestCloseThenDestroyTopic(t *testing.T) {
	t.Parallel()

	addr := startProvider(t)
	d, err := driver.Connect(addr)
	require.NoError(t, err)
	defer d.Close()

	ctx := context.Background()
	require.NoError(t, d.CreateTopic(ctx, "events", defaultValidator(), defaultSelector(), defaultSerializer()))
	_, err = d.AddPartition(ctx, "events", driver.AddPartitionOptions{Type: "memory"})
	require.NoError(t, err)

	require.NoError(t, d.CloseTopic(ctx, "events"))
	_, err = d.OpenTopic(ctx, "events")
	require.Error(t, err)

	// recreate so DestroyTopic has something to tear down
	require.NoError(t, d.CreateTopic(ctx, "events", defaultValidator(), defaultSelector(), defaultSerializer()))
	require.NoError(t, d.DestroyTopic(ctx, "events"))
	_, err = d.OpenTopic(ctx, "events")
	require.Error(t, err)
}
