// Package partition implements Mofka's PartitionManager: the
// per-partition state machine that accepts producer batches,
// maintains the event log and consumer cursors, feeds attached
// ConsumerHandles, and services data fetches (spec.md §4.4).
package partition

import (
	"context"

	"github.com/mochi-hpc/mofka-sub001/pkg/datadescriptor"
	"github.com/mochi-hpc/mofka-sub001/pkg/datastore"
	"github.com/mochi-hpc/mofka-sub001/pkg/eventid"
	"github.com/mochi-hpc/mofka-sub001/pkg/metadata"
	"github.com/mochi-hpc/mofka-sub001/pkg/pool"
)

// Batch is one ingress batch as it is assembled by a producer and
// shipped to ReceiveBatch (spec.md §6 batch bulk layout): parallel
// size/bytes blocks for metadata and data descriptors.
type Batch struct {
	MetaSizes []uint64
	MetaBytes []byte
	DescSizes []uint64
	DescBytes []byte
}

// NumEvents reports how many events this batch carries.
func (b Batch) NumEvents() int {
	return len(b.MetaSizes)
}

// FeedBatch is one egress batch as fed to a ConsumerHandle (spec.md
// §6 feed bulk layout: identical shape to the ingress Batch, plus the
// first EventID in the batch).
type FeedBatch struct {
	FirstID   eventid.EventID
	MetaSizes []uint64
	MetaBytes []byte
	DescSizes []uint64
	DescBytes []byte
}

// NumEvents reports how many events this feed batch carries.
func (b FeedBatch) NumEvents() int {
	return len(b.MetaSizes)
}

// ConsumerHandle is the server-side view of one attached consumer,
// implemented by pkg/provider on behalf of a remote consumer (or
// directly by an in-process consumer in tests).
type ConsumerHandle interface {
	// Name identifies the consumer for cursor bookkeeping.
	Name() string
	// ShouldStop reports whether feedConsumer should stop attaching
	// this handle (the consumer unsubscribed, or its connection died).
	ShouldStop() bool
	// Feed delivers one batch of events to the consumer. An error
	// here is treated as a transport failure for this attachment.
	Feed(ctx context.Context, batch FeedBatch) error
}

// Manager is the interface every PartitionManager backend
// implements (spec.md §4.4). Memory is the reference in-memory
// implementation.
type Manager interface {
	// ValidatorMetadata, SelectorMetadata, and SerializerMetadata
	// return the topic's immutable policy snapshots (spec.md §3).
	ValidatorMetadata() metadata.Metadata
	SelectorMetadata() metadata.Metadata
	SerializerMetadata() metadata.Metadata

	// ReceiveBatch ingests num events, reserving a contiguous EventID
	// range, and returns the first assigned EventID.
	ReceiveBatch(ctx context.Context, producerName string, batch Batch) (eventid.EventID, error)

	// StoreData ingests a producer's raw payload bytes into the
	// partition's DataStore ahead of ReceiveBatch, returning one
	// DataDescriptor per payload for the caller to encode into the
	// batch's descriptor vectors (spec.md §4.2's DataStore.store
	// contract, invoked from the producer_send_batch path rather than
	// at consumer fetch time).
	StoreData(ctx context.Context, sizes []uint64, data []byte) ([]datadescriptor.DataDescriptor, error)

	// FeedConsumer attaches handle and loops, feeding it batches as
	// events arrive, until handle.ShouldStop() or the partition is
	// destroyed. It blocks; callers run it on their own goroutine or
	// pkg/pool.TaskQueue.
	FeedConsumer(ctx context.Context, handle ConsumerHandle, batchSize pool.BatchSize) error

	// Acknowledge advances consumerName's cursor to eventID+1.
	// Monotonic: a request that would regress the cursor is ignored.
	Acknowledge(consumerName string, id eventid.EventID) error

	// GetData resolves descriptors against the partition's DataStore,
	// returning a per-descriptor result so partial success is
	// reportable.
	GetData(ctx context.Context, descriptors []datadescriptor.DataDescriptor) ([][]byte, []error)

	// WakeUp broadcasts the arrival condition, breaking any idle
	// FeedConsumer loops out of their wait.
	WakeUp()

	// MarkComplete declares that no further events will ever be
	// ingested; every attached (and future) ConsumerHandle receives
	// one final feed batch containing eventid.NoMoreEvents, without
	// tearing the partition down (SPEC_FULL.md supplemented feature).
	MarkComplete() error

	// Destroy drains and releases all state; subsequent calls to the
	// methods that report errors fail with errext.Closed (GetData
	// reports it per descriptor).
	Destroy() error
}

// Config configures a Memory PartitionManager.
type Config struct {
	Validator  metadata.Metadata
	Selector   metadata.Metadata
	Serializer metadata.Metadata
	Store      datastore.DataStore // nil selects an internal in-memory store
	// AdaptiveMin/AdaptiveMax bound the adaptive batch-size soft
	// limit used when a FeedConsumer call is given pool.AdaptiveBatchSize.
	AdaptiveMin, AdaptiveMax uint64
}
