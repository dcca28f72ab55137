// Package producer implements Mofka's Producer: per-partition batch
// assembly and shipment with Strict/Loose ordering (spec.md §4.7),
// grounded on original_source/include/mofka/MofkaProducer.hpp and
// include/mofka/Producer.hpp.
package producer

import (
	"context"
	"sync"
	"time"

	"github.com/mochi-hpc/mofka-sub001/internal/errext"
	"github.com/mochi-hpc/mofka-sub001/pkg/dataview"
	"github.com/mochi-hpc/mofka-sub001/pkg/driver"
	"github.com/mochi-hpc/mofka-sub001/pkg/eventid"
	"github.com/mochi-hpc/mofka-sub001/pkg/metadata"
	"github.com/mochi-hpc/mofka-sub001/pkg/policy"
	"github.com/mochi-hpc/mofka-sub001/pkg/pool"
	"github.com/mochi-hpc/mofka-sub001/pkg/provider"
	"github.com/mochi-hpc/mofka-sub001/pkg/transport"
)

// Ordering selects how strictly a Producer serializes batch shipment
// per partition (spec.md §4.7).
type Ordering int

const (
	// Strict allows only one batch per partition in flight at a
	// time; push invocation order within a partition then matches
	// EventID order.
	Strict Ordering = iota
	// Loose allows up to Config.MaxInFlight batches per partition in
	// flight; EventIDs remain dense and server-assigned, but user
	// futures may complete out of push order.
	Loose
)

// Flushed is the sentinel value a Flush future resolves to.
type Flushed struct{}

// Config configures a Producer.
type Config struct {
	Name        string
	BatchSize   pool.BatchSize
	MaxInFlight int // ignored under Strict, where it is always 1
	Ordering    Ordering
	AdaptiveMin uint64
	AdaptiveMax uint64
}

type partitionState struct {
	uuid    string
	address string
	conn    *transport.Conn

	mu    sync.Mutex
	batch *activeBatch

	sem chan struct{}
	wg  sync.WaitGroup
}

// Producer assembles and ships batches of pushed events against one
// TopicHandle's partitions (spec.md §4.7).
type Producer struct {
	name      string
	topic     *driver.TopicHandle
	batchSize pool.BatchSize
	ordering  Ordering
	adaptive  *pool.Adaptive
	taskQueue *pool.TaskQueue

	partitions []*partitionState
}

// New constructs a Producer bound to topic, dialing each partition's
// provider address.
func New(topic *driver.TopicHandle, cfg Config) (*Producer, error) {
	maxInFlight := cfg.MaxInFlight
	if cfg.Ordering == Strict || maxInFlight <= 0 {
		maxInFlight = 1
	}
	adaptiveMin, adaptiveMax := cfg.AdaptiveMin, cfg.AdaptiveMax
	if adaptiveMin == 0 {
		adaptiveMin = 16
	}
	if adaptiveMax == 0 {
		adaptiveMax = 8192
	}

	p := &Producer{
		name:      cfg.Name,
		topic:     topic,
		batchSize: cfg.BatchSize,
		ordering:  cfg.Ordering,
		adaptive:  pool.NewAdaptive(adaptiveMin, adaptiveMax, 5*time.Millisecond),
		taskQueue: pool.NewTaskQueue(),
	}

	for _, info := range topic.Partitions() {
		conn, err := transport.Dial(info.Address)
		if err != nil {
			p.closeConns()
			return nil, errext.Wrap(errext.Transport, err)
		}
		p.partitions = append(p.partitions, &partitionState{
			uuid:    info.UUID,
			address: info.Address,
			batch:   newActiveBatch(),
			conn:    conn,
			sem:     make(chan struct{}, maxInFlight),
		})
	}
	return p, nil
}

func (p *Producer) closeConns() {
	for _, ps := range p.partitions {
		if ps.conn != nil {
			_ = ps.conn.Close()
		}
	}
}

// Name returns the producer's name.
func (p *Producer) Name() string { return p.name }

// Close flushes and releases every partition connection.
func (p *Producer) Close(ctx context.Context) error {
	flushed, err := p.Flush(ctx)
	if err == nil {
		_, err = flushed.Wait(ctx)
	}
	p.taskQueue.Close()
	p.closeConns()
	return err
}

// Push validates and routes one event to its target partition's
// active batch, sealing and scheduling shipment if the batch has
// reached its threshold (spec.md §4.7).
func (p *Producer) Push(ctx context.Context, meta metadata.Metadata, data dataview.DataView, partition *int) (*pool.Future[eventid.EventID], error) {
	validator := p.topic.Validator()
	if err := validator.Validate(meta, data); err != nil {
		promise, future := pool.New[eventid.EventID]()
		promise.SetError(errext.Wrap(errext.InvalidMetadata, err))
		return future, nil
	}

	idx, err := p.topic.Selector().SelectPartitionFor(meta, partition)
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(p.partitions) {
		return nil, errext.New(errext.UnknownPartition, "selector chose out-of-range partition %d", idx)
	}

	archive := policy.NewWriteArchive()
	if err := p.topic.Serializer().Serialize(archive, meta); err != nil {
		return nil, err
	}
	metaBytes := archive.Bytes()
	dataBytes := data.Bytes()

	ps := p.partitions[idx]
	promise, future := pool.New[eventid.EventID]()

	ps.mu.Lock()
	ps.batch.append(metaBytes, dataBytes, promise)
	var toSend *activeBatch
	if uint64(ps.batch.count()) >= p.threshold() {
		toSend = ps.batch
		ps.batch = newActiveBatch()
	}
	ps.mu.Unlock()

	if toSend != nil {
		p.scheduleSend(ctx, idx, ps, toSend)
	}
	return future, nil
}

func (p *Producer) threshold() uint64 {
	if p.batchSize == pool.AdaptiveBatchSize {
		return p.adaptive.Limit()
	}
	return uint64(p.batchSize)
}

func (p *Producer) scheduleSend(ctx context.Context, idx int, ps *partitionState, batch *activeBatch) {
	ps.wg.Add(1)
	send := func() {
		defer ps.wg.Done()
		p.sendBatch(ctx, ps, batch)
	}
	if p.ordering == Loose {
		go send()
		return
	}
	p.taskQueue.Submit(send)
}

type sendBatchRequest struct {
	PartitionUUID string   `json:"partition_uuid"`
	ProducerName  string   `json:"producer_name"`
	MetaSizes     []uint64 `json:"meta_sizes"`
	MetaBytes     []byte   `json:"meta_bytes"`
	DataSizes     []uint64 `json:"data_sizes"`
	DataBytes     []byte   `json:"data_bytes"`
}

type sendBatchReply struct {
	FirstID eventid.EventID `json:"first_id"`
}

// sendBatch ships one sealed batch, honouring the ordering semaphore
// (capacity 1 under Strict, Config.MaxInFlight under Loose) and
// resolving every promise in the batch with its assigned EventID.
func (p *Producer) sendBatch(ctx context.Context, ps *partitionState, batch *activeBatch) {
	ps.sem <- struct{}{}
	defer func() { <-ps.sem }()

	started := time.Now()
	msg, err := transport.Message{Type: provider.TypeSendBatch}.WithPayload(sendBatchRequest{
		PartitionUUID: ps.uuid,
		ProducerName:  p.name,
		MetaSizes:     batch.metaSizes,
		MetaBytes:     batch.metaBytes,
		DataSizes:     batch.dataSizes,
		DataBytes:     batch.dataBytes,
	})
	if err != nil {
		batch.fail(err)
		return
	}
	reply, err := ps.conn.Call(ctx, msg)
	if err != nil {
		batch.fail(err)
		return
	}
	var out sendBatchReply
	if err := reply.Take(&out); err != nil {
		batch.fail(err)
		return
	}
	p.adaptive.Observe(time.Since(started))
	batch.resolve(out.FirstID)
}

// Flush seals every partition's partially filled batch and returns a
// Future that completes once every outstanding batch — sealed here
// or already in flight — has been acknowledged (spec.md §4.7).
func (p *Producer) Flush(ctx context.Context) (*pool.Future[Flushed], error) {
	promise, future := pool.New[Flushed]()

	var pending []*partitionState
	for idx, ps := range p.partitions {
		ps.mu.Lock()
		var toSend *activeBatch
		if ps.batch.count() > 0 {
			toSend = ps.batch
			ps.batch = newActiveBatch()
		}
		ps.mu.Unlock()
		if toSend != nil {
			p.scheduleSend(ctx, idx, ps, toSend)
		}
		pending = append(pending, ps)
	}

	go func() {
		for _, ps := range pending {
			ps.wg.Wait()
		}
		promise.SetValue(Flushed{})
	}()
	return future, nil
}
