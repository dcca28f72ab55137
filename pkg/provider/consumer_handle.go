package provider

import (
	"context"
	"sync/atomic"

	"github.com/mochi-hpc/mofka-sub001/pkg/partition"
	"github.com/mochi-hpc/mofka-sub001/pkg/pool"
	"github.com/mochi-hpc/mofka-sub001/pkg/transport"
)

// remoteConsumerHandle is the Provider's view of one attached remote
// consumer: it satisfies partition.ConsumerHandle by re-invoking the
// consumer's own transport.Server under TypeFeedBatch, the Go shape
// of spec.md §4.8's "recvBatchRPC identifies a local handler so the
// server can drive the client by re-invocation".
type remoteConsumerHandle struct {
	name string
	conn *transport.Conn

	stopped atomic.Bool
}

func newRemoteConsumerHandle(name, callbackAddr string) (*remoteConsumerHandle, error) {
	conn, err := transport.Dial(callbackAddr)
	if err != nil {
		return nil, err
	}
	return &remoteConsumerHandle{name: name, conn: conn}, nil
}

func (h *remoteConsumerHandle) Name() string     { return h.name }
func (h *remoteConsumerHandle) ShouldStop() bool { return h.stopped.Load() }
func (h *remoteConsumerHandle) stop()            { h.stopped.Store(true) }
func (h *remoteConsumerHandle) Close() error     { return h.conn.Close() }

// Feed implements partition.ConsumerHandle.
func (h *remoteConsumerHandle) Feed(ctx context.Context, batch partition.FeedBatch) error {
	req, err := transport.Message{Type: TypeFeedBatch}.WithPayload(feedBatchRequest{
		FirstID:   batch.FirstID,
		MetaSizes: batch.MetaSizes,
		MetaBytes: batch.MetaBytes,
		DescSizes: batch.DescSizes,
		DescBytes: batch.DescBytes,
	})
	if err != nil {
		return err
	}
	_, err = h.conn.Call(ctx, req)
	return err
}

// partitionBatchSize translates the wire (batchSize, adaptive) pair
// into a pool.BatchSize value.
func partitionBatchSize(batchSize uint64, adaptive bool) pool.BatchSize {
	if adaptive {
		return pool.AdaptiveBatchSize
	}
	return pool.BatchSize(batchSize)
}
