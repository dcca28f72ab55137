package provider_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochi-hpc/mofka-sub001/pkg/metadata"
	"github.com/mochi-hpc/mofka-sub001/pkg/provider"
	"github.com/mochi-hpc/mofka-sub001/pkg/transport"
)

func startProvider(t *testing.T) (*provider.Provider, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	p := provider.New(ln.Addr().String(), logrus.New())
	srv := transport.NewServer(ln, logrus.New())
	p.AttachHandlers(srv)
	t.Cleanup(func() { _ = srv.Close() })
	go func() { _ = srv.Serve() }()
	return p, ln.Addr().String()
}

func defaultPolicy() provider.PolicySpec {
	return provider.PolicySpec{Type: "default", Config: metadata.Empty()}
}

func TestTopicDirectoryLifecycle(t *testing.T) {
	t.Parallel()

	p, _ := startProvider(t)

	require.NoError(t, p.CreateTopic("t", defaultPolicy(), defaultPolicy(), defaultPolicy()))
	require.Error(t, p.CreateTopic("t", defaultPolicy(), defaultPolicy(), defaultPolicy()))

	uuid1, err := p.AddPartition("t", "memory", 0, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, uuid1)

	entry, err := p.OpenTopic("t")
	require.NoError(t, err)
	require.Len(t, entry.Partitions, 1)
	assert.Equal(t, uuid1, entry.Partitions[0].UUID)

	require.NoError(t, p.DestroyTopic("t"))
	_, err = p.OpenTopic("t")
	require.Error(t, err)
}

func TestAddPartitionUnknownTopic(t *testing.T) {
	t.Parallel()

	p, _ := startProvider(t)
	_, err := p.AddPartition("missing", "memory", 0, 0)
	require.Error(t, err)
}

// feedCollector is a tiny consumer-side transport.Server that records
// every feed batch callback it receives under TypeFeedBatch.
type feedCollector struct {
	mu      sync.Mutex
	batches []feedBatchPayload
	seen    chan struct{}
}

type feedBatchPayload struct {
	FirstID   uint64   `json:"first_id"`
	MetaSizes []uint64 `json:"meta_sizes"`
	MetaBytes []byte   `json:"meta_bytes"`
}

func startFeedCollector(t *testing.T) (*feedCollector, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	fc := &feedCollector{seen: make(chan struct{}, 64)}
	srv := transport.NewServer(ln, logrus.New())
	srv.Handle(provider.TypeFeedBatch, func(msg transport.Message) (transport.Message, error) {
		var payload feedBatchPayload
		if err := msg.Take(&payload); err != nil {
			return transport.Message{}, err
		}
		fc.mu.Lock()
		fc.batches = append(fc.batches, payload)
		fc.mu.Unlock()
		fc.seen <- struct{}{}
		return transport.Message{Type: provider.TypeFeedBatch}, nil
	})
	t.Cleanup(func() { _ = srv.Close() })
	go func() { _ = srv.Serve() }()
	return fc, ln.Addr().String()
}

func (fc *feedCollector) waitForBatch(t *testing.T) feedBatchPayload {
	t.Helper()
	select {
	case <-fc.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed batch callback")
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.batches[len(fc.batches)-1]
}

func TestEndToEndSendBatchAndFeedConsumer(t *testing.T) {
	t.Parallel()

	p, addr := startProvider(t)
	require.NoError(t, p.CreateTopic("t", defaultPolicy(), defaultPolicy(), defaultPolicy()))
	partUUID, err := p.AddPartition("t", "memory", 0, 0)
	require.NoError(t, err)

	conn, err := transport.Dial(addr)
	require.NoError(t, err)
	defer conn.Close()

	fc, callbackAddr := startFeedCollector(t)

	reqMsg, err := transport.Message{Type: provider.TypeRequestEvents}.WithPayload(struct {
		PartitionUUID string `json:"partition_uuid"`
		ConsumerName  string `json:"consumer_name"`
		CallbackAddr  string `json:"callback_addr"`
		BatchSize     uint64 `json:"batch_size"`
		Adaptive      bool   `json:"adaptive"`
	}{PartitionUUID: partUUID, ConsumerName: "c1", CallbackAddr: callbackAddr, BatchSize: 10})
	require.NoError(t, err)
	_, err = conn.Call(context.Background(), reqMsg)
	require.NoError(t, err)

	meta, err := metadata.FromMap(map[string]int{"i": 0})
	require.NoError(t, err)
	sendMsg, err := transport.Message{Type: provider.TypeSendBatch}.WithPayload(struct {
		PartitionUUID string   `json:"partition_uuid"`
		ProducerName  string   `json:"producer_name"`
		MetaSizes     []uint64 `json:"meta_sizes"`
		MetaBytes     []byte   `json:"meta_bytes"`
		DataSizes     []uint64 `json:"data_sizes"`
		DataBytes     []byte   `json:"data_bytes"`
	}{
		PartitionUUID: partUUID,
		ProducerName:  "p1",
		MetaSizes:     []uint64{uint64(len(meta.Bytes()))},
		MetaBytes:     meta.Bytes(),
		DataSizes:     []uint64{0},
	})
	require.NoError(t, err)
	reply, err := conn.Call(context.Background(), sendMsg)
	require.NoError(t, err)

	var sendReply struct {
		FirstID uint64 `json:"first_id"`
	}
	require.NoError(t, reply.Take(&sendReply))
	assert.Equal(t, uint64(0), sendReply.FirstID)

	batch := fc.waitForBatch(t)
	assert.Equal(t, uint64(0), batch.FirstID)
	assert.Equal(t, 1, len(batch.MetaSizes))
}
