package partition

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mochi-hpc/mofka-sub001/internal/errext"
	"github.com/mochi-hpc/mofka-sub001/pkg/datadescriptor"
	"github.com/mochi-hpc/mofka-sub001/pkg/datastore"
	"github.com/mochi-hpc/mofka-sub001/pkg/eventid"
	"github.com/mochi-hpc/mofka-sub001/pkg/metadata"
	"github.com/mochi-hpc/mofka-sub001/pkg/pool"
)

// defaultSlowServiceTime is the feed-service-time threshold above
// which an Adaptive observation counts as back-pressure rather than
// healthy throughput (SPEC_FULL.md supplemented-features note).
const defaultSlowServiceTime = 2 * time.Millisecond

// Memory is the reference in-memory PartitionManager:
// parallel metadata/descriptor vectors, a consumer cursor map, and
// an arrival condition variable, directly mirroring
// original_source/src/MemoryPartitionManager.hpp.
type Memory struct {
	validatorMeta  metadata.Metadata
	selectorMeta   metadata.Metadata
	serializerMeta metadata.Metadata
	store          datastore.DataStore
	adaptive       *pool.Adaptive
	log            logrus.FieldLogger

	logMu sync.Mutex
	cond  *sync.Cond

	metaSizes   []uint64
	metaOffsets []uint64
	metaBytes   []byte

	descSizes   []uint64
	descOffsets []uint64
	descBytes   []byte

	completed bool

	cursorMu sync.Mutex
	cursors  map[string]eventid.EventID

	destroyed atomic.Bool
}

// NewMemory constructs a Memory PartitionManager from cfg.
func NewMemory(cfg Config, log logrus.FieldLogger) *Memory {
	store := cfg.Store
	if store == nil {
		store = datastore.NewMemory(datastore.MemoryConfig{})
	}
	adaptiveMin, adaptiveMax := cfg.AdaptiveMin, cfg.AdaptiveMax
	if adaptiveMin == 0 {
		adaptiveMin = 16
	}
	if adaptiveMax == 0 {
		adaptiveMax = 8192
	}
	m := &Memory{
		validatorMeta:  cfg.Validator,
		selectorMeta:   cfg.Selector,
		serializerMeta: cfg.Serializer,
		store:          store,
		adaptive:       pool.NewAdaptive(adaptiveMin, adaptiveMax, defaultSlowServiceTime),
		log:            log,
		cursors:        make(map[string]eventid.EventID),
	}
	m.cond = sync.NewCond(&m.logMu)
	return m
}

func (m *Memory) ValidatorMetadata() metadata.Metadata  { return m.validatorMeta }
func (m *Memory) SelectorMetadata() metadata.Metadata   { return m.selectorMeta }
func (m *Memory) SerializerMetadata() metadata.Metadata { return m.serializerMeta }

// ReceiveBatch implements Manager.
func (m *Memory) ReceiveBatch(_ context.Context, producerName string, batch Batch) (eventid.EventID, error) {
	if m.destroyed.Load() {
		return 0, errext.New(errext.Closed, "partition destroyed")
	}

	var metaSum, descSum uint64
	for _, s := range batch.MetaSizes {
		metaSum += s
	}
	for _, s := range batch.DescSizes {
		descSum += s
	}
	if metaSum != uint64(len(batch.MetaBytes)) {
		return 0, errext.New(errext.Protocol, "receiveBatch from %s: metadata sizes sum to %d, bulk has %d bytes", producerName, metaSum, len(batch.MetaBytes))
	}
	if descSum != uint64(len(batch.DescBytes)) {
		return 0, errext.New(errext.Protocol, "receiveBatch from %s: descriptor sizes sum to %d, bulk has %d bytes", producerName, descSum, len(batch.DescBytes))
	}

	m.logMu.Lock()
	defer m.logMu.Unlock()

	if m.destroyed.Load() {
		return 0, errext.New(errext.Closed, "partition destroyed")
	}
	if m.completed {
		return 0, errext.New(errext.Closed, "partition marked complete")
	}

	firstID := eventid.EventID(len(m.metaSizes))

	metaStart := uint64(len(m.metaBytes))
	m.metaBytes = growAppendBytes(m.metaBytes, batch.MetaBytes)
	off := metaStart
	for _, s := range batch.MetaSizes {
		m.metaOffsets = append(m.metaOffsets, off)
		off += s
	}
	m.metaSizes = append(m.metaSizes, batch.MetaSizes...)

	descStart := uint64(len(m.descBytes))
	m.descBytes = growAppendBytes(m.descBytes, batch.DescBytes)
	off = descStart
	for _, s := range batch.DescSizes {
		m.descOffsets = append(m.descOffsets, off)
		off += s
	}
	m.descSizes = append(m.descSizes, batch.DescSizes...)

	m.cond.Broadcast()
	return firstID, nil
}

// FeedConsumer implements Manager. It blocks until handle.ShouldStop(),
// ctx is cancelled, the partition is destroyed, or (after MarkComplete)
// one final NoMoreEvents batch has been delivered.
func (m *Memory) FeedConsumer(ctx context.Context, handle ConsumerHandle, batchSize pool.BatchSize) error {
	if m.destroyed.Load() {
		return errext.New(errext.Closed, "partition destroyed")
	}

	name := handle.Name()
	m.cursorMu.Lock()
	cursor, ok := m.cursors[name]
	if !ok {
		m.cursors[name] = 0
		cursor = 0
	}
	m.cursorMu.Unlock()

	stopCh := make(chan struct{})
	defer close(stopCh)
	go func() {
		select {
		case <-ctx.Done():
			m.logMu.Lock()
			m.cond.Broadcast()
			m.logMu.Unlock()
		case <-stopCh:
		}
	}()

	for {
		m.logMu.Lock()
		for uint64(len(m.metaSizes)) <= uint64(cursor) && !handle.ShouldStop() && ctx.Err() == nil && !m.destroyed.Load() && !m.completed {
			m.cond.Wait()
		}

		switch {
		case m.destroyed.Load():
			m.logMu.Unlock()
			return errext.New(errext.Closed, "partition destroyed")
		case handle.ShouldStop():
			m.logMu.Unlock()
			return nil
		case ctx.Err() != nil:
			m.logMu.Unlock()
			return ctx.Err()
		}

		available := uint64(len(m.metaSizes)) - uint64(cursor)
		if available == 0 {
			// Only reachable once m.completed is true: deliver the
			// sentinel and stop feeding this handle (SPEC_FULL.md
			// supplemented feature).
			m.logMu.Unlock()
			return handle.Feed(ctx, FeedBatch{FirstID: eventid.NoMoreEvents})
		}

		var take uint64
		if batchSize == pool.AdaptiveBatchSize {
			take = m.adaptive.Take(available)
		} else {
			take = uint64(batchSize)
			if take > available {
				take = available
			}
		}
		c := uint64(cursor)
		metaSizes := append([]uint64(nil), m.metaSizes[c:c+take]...)
		descSizes := append([]uint64(nil), m.descSizes[c:c+take]...)
		metaStart := m.metaOffsets[c]
		var metaSpan uint64
		for _, s := range metaSizes {
			metaSpan += s
		}
		metaBytes := append([]byte(nil), m.metaBytes[metaStart:metaStart+metaSpan]...)

		descStart := m.descOffsets[c]
		var descSpan uint64
		for _, s := range descSizes {
			descSpan += s
		}
		descBytes := append([]byte(nil), m.descBytes[descStart:descStart+descSpan]...)

		firstID := eventid.EventID(c)
		m.logMu.Unlock()

		started := time.Now()
		err := handle.Feed(ctx, FeedBatch{
			FirstID:   firstID,
			MetaSizes: metaSizes,
			MetaBytes: metaBytes,
			DescSizes: descSizes,
			DescBytes: descBytes,
		})
		m.adaptive.Observe(time.Now().Sub(started))
		if err != nil {
			return err
		}
		cursor = eventid.EventID(c + take)
	}
}

// Acknowledge implements Manager.
func (m *Memory) Acknowledge(consumerName string, id eventid.EventID) error {
	if m.destroyed.Load() {
		return errext.New(errext.Closed, "partition destroyed")
	}
	m.cursorMu.Lock()
	defer m.cursorMu.Unlock()
	next := id + 1
	if cur, ok := m.cursors[consumerName]; !ok || next > cur {
		m.cursors[consumerName] = next
	}
	return nil
}

// StoreData implements Manager, delegating to the partition's
// DataStore.
func (m *Memory) StoreData(ctx context.Context, sizes []uint64, data []byte) ([]datadescriptor.DataDescriptor, error) {
	if m.destroyed.Load() {
		return nil, errext.New(errext.Closed, "partition destroyed")
	}
	return m.store.Store(ctx, sizes, data)
}

// GetData implements Manager, delegating to the partition's DataStore.
func (m *Memory) GetData(ctx context.Context, descriptors []datadescriptor.DataDescriptor) ([][]byte, []error) {
	if m.destroyed.Load() {
		errs := make([]error, len(descriptors))
		for i := range errs {
			errs[i] = errext.New(errext.Closed, "partition destroyed")
		}
		return make([][]byte, len(descriptors)), errs
	}
	return m.store.Load(ctx, descriptors)
}

// WakeUp implements Manager.
func (m *Memory) WakeUp() {
	m.logMu.Lock()
	m.cond.Broadcast()
	m.logMu.Unlock()
}

// MarkComplete implements Manager.
func (m *Memory) MarkComplete() error {
	if m.destroyed.Load() {
		return errext.New(errext.Closed, "partition destroyed")
	}
	m.logMu.Lock()
	m.completed = true
	m.cond.Broadcast()
	m.logMu.Unlock()
	return nil
}

// Destroy implements Manager.
func (m *Memory) Destroy() error {
	if !m.destroyed.CompareAndSwap(false, true) {
		return errext.New(errext.Closed, "partition already destroyed")
	}
	m.logMu.Lock()
	m.metaSizes, m.metaOffsets, m.metaBytes = nil, nil, nil
	m.descSizes, m.descOffsets, m.descBytes = nil, nil, nil
	m.cond.Broadcast()
	m.logMu.Unlock()

	m.cursorMu.Lock()
	m.cursors = nil
	m.cursorMu.Unlock()

	return m.store.Destroy()
}

// growAppendBytes doubles capacity geometrically rather than relying
// on append's built-in growth heuristic, matching spec.md §4.4's
// "grow ... with geometric reallocation".
func growAppendBytes(buf, more []byte) []byte {
	needed := len(buf) + len(more)
	if cap(buf) < needed {
		newCap := cap(buf)
		if newCap == 0 {
			newCap = 4096
		}
		for newCap < needed {
			newCap *= 2
		}
		grown := make([]byte, len(buf), newCap)
		copy(grown, buf)
		buf = grown
	}
	return append(buf, more...)
}
