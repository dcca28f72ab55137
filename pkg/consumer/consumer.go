// Package consumer implements Mofka's Consumer: attaches to every
// partition of a topic, receives fed batches by re-invocation, and
// hands events to callers through a credit-toggled pending-futures
// queue (spec.md §4.8), grounded on
// original_source/include/mofka/MofkaConsumer.hpp and
// ConsumerHandle.hpp.
package consumer

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/mochi-hpc/mofka-sub001/internal/errext"
	"github.com/mochi-hpc/mofka-sub001/pkg/datadescriptor"
	"github.com/mochi-hpc/mofka-sub001/pkg/dataview"
	"github.com/mochi-hpc/mofka-sub001/pkg/driver"
	"github.com/mochi-hpc/mofka-sub001/pkg/eventid"
	"github.com/mochi-hpc/mofka-sub001/pkg/metadata"
	"github.com/mochi-hpc/mofka-sub001/pkg/policy"
	"github.com/mochi-hpc/mofka-sub001/pkg/pool"
	"github.com/mochi-hpc/mofka-sub001/pkg/provider"
	"github.com/mochi-hpc/mofka-sub001/pkg/transport"
)

// Config configures a Consumer.
type Config struct {
	Name          string
	BatchSize     pool.BatchSize
	DataSelector  DataSelector
	DataAllocator DataAllocator
}

// partitionConsumerState is one attached partition: the connection
// used to issue consumer_ack_event/consumer_remove_consumer/
// consumer_request_data, plus the locally hosted callback server the
// partition re-invokes under TypeFeedBatch.
type partitionConsumerState struct {
	uuid string

	providerConn *transport.Conn
	listener     net.Listener
	server       *transport.Server
}

// Consumer attaches to every partition of a topic and delivers
// events through Pull (spec.md §4.8).
type Consumer struct {
	name          string
	topic         *driver.TopicHandle
	dataSelector  DataSelector
	dataAllocator DataAllocator

	partitions []*partitionConsumerState
	pending    *pendingQueue

	completedPartitions atomic.Int32
	totalPartitions     int
}

// New subscribes to every partition of topic, dialing back one
// locally hosted callback server per partition and issuing
// consumer_request_events against it (spec.md §4.8 Subscribe).
func New(topic *driver.TopicHandle, cfg Config) (*Consumer, error) {
	selector := cfg.DataSelector
	if selector == nil {
		selector = DefaultDataSelector
	}
	allocator := cfg.DataAllocator
	if allocator == nil {
		allocator = DefaultDataAllocator
	}

	c := &Consumer{
		name:            cfg.Name,
		topic:           topic,
		dataSelector:    selector,
		dataAllocator:   allocator,
		pending:         newPendingQueue(),
		totalPartitions: len(topic.Partitions()),
	}

	for idx, info := range topic.Partitions() {
		ps, err := c.attach(idx, info, cfg.BatchSize)
		if err != nil {
			c.closePartitions()
			return nil, err
		}
		c.partitions = append(c.partitions, ps)
	}
	return c, nil
}

func (c *Consumer) attach(idx int, info provider.PartitionInfo, batchSize pool.BatchSize) (*partitionConsumerState, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, errext.Wrap(errext.Transport, err)
	}

	srv := transport.NewServer(ln, nil)
	srv.Handle(provider.TypeFeedBatch, func(msg transport.Message) (transport.Message, error) {
		return c.handleFeedBatch(idx, msg)
	})
	go func() { _ = srv.Serve() }()

	conn, err := transport.Dial(info.Address)
	if err != nil {
		_ = srv.Close()
		return nil, errext.Wrap(errext.Transport, err)
	}

	ps := &partitionConsumerState{uuid: info.UUID, providerConn: conn, listener: ln, server: srv}

	req, err := transport.Message{Type: provider.TypeRequestEvents}.WithPayload(requestEventsPayload{
		PartitionUUID: info.UUID,
		ConsumerName:  c.name,
		CallbackAddr:  ln.Addr().String(),
		BatchSize:     uint64(batchSize),
		Adaptive:      batchSize == pool.AdaptiveBatchSize,
	})
	if err != nil {
		_ = conn.Close()
		_ = srv.Close()
		return nil, err
	}
	if _, err := conn.Call(context.Background(), req); err != nil {
		_ = conn.Close()
		_ = srv.Close()
		return nil, err
	}
	return ps, nil
}

func (c *Consumer) closePartitions() {
	for _, ps := range c.partitions {
		_ = ps.providerConn.Close()
		_ = ps.server.Close()
	}
}

// Name returns the consumer's name.
func (c *Consumer) Name() string { return c.name }

// Pull returns the next Future in the pending-futures queue, under
// the credit discipline spec.md §4.8 describes.
func (c *Consumer) Pull() *pool.Future[Event] {
	return c.pending.pull().future
}

// Unsubscribe issues consumer_remove_consumer to every partition and
// tears down the feed pipeline (spec.md §4.8).
func (c *Consumer) Unsubscribe(ctx context.Context) error {
	var firstErr error
	for _, ps := range c.partitions {
		req, err := transport.Message{Type: provider.TypeRemoveConsumer}.WithPayload(removeConsumerPayload{
			PartitionUUID: ps.uuid,
			ConsumerName:  c.name,
		})
		if err == nil {
			_, err = ps.providerConn.Call(ctx, req)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closePartitions()
	return firstErr
}

// ack issues consumer_ack_event to the partition at idx.
func (c *Consumer) ack(ctx context.Context, idx int, id eventid.EventID) error {
	if idx < 0 || idx >= len(c.partitions) {
		return errext.New(errext.UnknownPartition, "ack: partition index %d out of range", idx)
	}
	ps := c.partitions[idx]
	req, err := transport.Message{Type: provider.TypeAckEvent}.WithPayload(ackEventPayload{
		PartitionUUID: ps.uuid,
		ConsumerName:  c.name,
		EventID:       id,
	})
	if err != nil {
		return err
	}
	_, err = ps.providerConn.Call(ctx, req)
	return err
}

// handleFeedBatch is the TypeFeedBatch handler a partition
// re-invokes to feed one batch of events (spec.md §4.8 "Receiving a
// feed batch").
func (c *Consumer) handleFeedBatch(idx int, msg transport.Message) (transport.Message, error) {
	var req feedBatchPayload
	if err := msg.Take(&req); err != nil {
		return transport.Message{}, errext.Wrap(errext.Protocol, err)
	}

	if req.FirstID == eventid.NoMoreEvents {
		c.onPartitionComplete()
		return transport.Message{Type: provider.TypeFeedBatch}, nil
	}

	metaOffsets := prefixSum(req.MetaSizes)
	descOffsets := prefixSum(req.DescSizes)

	for i := range req.MetaSizes {
		metaSlice := req.MetaBytes[metaOffsets[i] : metaOffsets[i]+req.MetaSizes[i]]
		archive := policy.NewReadArchive(metaSlice)
		meta, err := c.topic.Serializer().Deserialize(archive)
		if err != nil {
			return transport.Message{}, errext.Wrap(errext.Protocol, err)
		}

		descSlice := req.DescBytes[descOffsets[i] : descOffsets[i]+req.DescSizes[i]]
		descriptor, err := datadescriptor.Decode(descSlice)
		if err != nil {
			return transport.Message{}, errext.Wrap(errext.Protocol, err)
		}

		data, err := c.fetchData(idx, meta, descriptor)
		if err != nil {
			return transport.Message{}, err
		}

		c.pending.deliver(Event{
			ID:           req.FirstID + eventid.EventID(i),
			Metadata:     meta,
			Data:         data,
			consumer:     c,
			partitionIdx: idx,
		})
	}
	return transport.Message{Type: provider.TypeFeedBatch}, nil
}

// fetchData applies the DataSelector/DataAllocator pair and, unless
// the selector skipped this event, issues consumer_request_data
// against the owning partition (spec.md §4.8 steps 2c/2d).
func (c *Consumer) fetchData(idx int, meta metadata.Metadata, descriptor datadescriptor.DataDescriptor) (dataview.DataView, error) {
	selected := c.dataSelector(meta, descriptor)
	if selected.IsNull() {
		return dataview.Empty(), nil
	}

	dest, err := c.dataAllocator(meta, selected)
	if err != nil {
		return dataview.DataView{}, err
	}

	ps := c.partitions[idx]
	req, err := transport.Message{Type: provider.TypeRequestData}.WithPayload(requestDataPayload{
		PartitionUUID: ps.uuid,
		Descriptors:   [][]byte{selected.Encode()},
	})
	if err != nil {
		return dataview.DataView{}, err
	}
	reply, err := ps.providerConn.Call(context.Background(), req)
	if err != nil {
		return dataview.DataView{}, err
	}
	var out requestDataReply
	if err := reply.Take(&out); err != nil {
		return dataview.DataView{}, errext.Wrap(errext.Protocol, err)
	}
	if len(out.Errors) > 0 && out.Errors[0] != "" {
		return dataview.DataView{}, errext.New(errext.Protocol, "consumer_request_data: %s", out.Errors[0])
	}
	if len(out.Data) == 0 {
		return dataview.Empty(), nil
	}
	return fillDestination(dest, out.Data[0]), nil
}

// fillDestination copies fetched into dest's backing segments when
// the sizes line up (the zero-copy path the caller's DataAllocator
// is meant to serve); otherwise it falls back to a fresh DataView
// over the fetched bytes.
func fillDestination(dest dataview.DataView, fetched []byte) dataview.DataView {
	if dest.Size() != uint64(len(fetched)) {
		return dataview.New(fetched)
	}
	offset := 0
	for _, seg := range dest.Segments() {
		n := copy(seg.Bytes, fetched[offset:])
		offset += n
	}
	return dest
}

// prefixSum returns, for each index i, the sum of sizes[:i] — the
// offset of element i within a blob whose elements are concatenated
// in order (the same offset/size relationship partition.Memory's
// offsets vectors maintain for its own meta/desc vectors).
func prefixSum(sizes []uint64) []uint64 {
	offsets := make([]uint64, len(sizes))
	var total uint64
	for i, s := range sizes {
		offsets[i] = total
		total += s
	}
	return offsets
}

func (c *Consumer) onPartitionComplete() {
	if c.completedPartitions.Add(1) >= int32(c.totalPartitions) {
		c.pending.drain(Event{ID: eventid.NoMoreEvents})
	}
}
