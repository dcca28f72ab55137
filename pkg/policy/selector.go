package policy

import (
	"fmt"
	"hash/fnv"
	"sync/atomic"

	"github.com/mochi-hpc/mofka-sub001/internal/errext"
	"github.com/mochi-hpc/mofka-sub001/pkg/metadata"
)

func init() {
	RegisterPartitionSelector("round-robin", newRoundRobinSelector)
	RegisterPartitionSelector("field-hash", newFieldHashSelector)
}

// roundRobinSelector cycles through partitions in order, honouring
// an explicit requested index when the caller supplies one.
type roundRobinSelector struct {
	config  metadata.Metadata
	count   int32
	counter int64
}

func newRoundRobinSelector(config metadata.Metadata) (PartitionSelector, error) {
	return &roundRobinSelector{config: config}, nil
}

func (s *roundRobinSelector) SetPartitions(count int) error {
	if count <= 0 {
		return errext.New(errext.InvalidMetadata, "partition selector: count must be positive, got %d", count)
	}
	atomic.StoreInt32(&s.count, int32(count))
	return nil
}

func (s *roundRobinSelector) SelectPartitionFor(_ metadata.Metadata, requested *int) (int, error) {
	count := int(atomic.LoadInt32(&s.count))
	if count == 0 {
		return 0, errext.New(errext.InvalidMetadata, "partition selector: SetPartitions was never called")
	}
	if requested != nil {
		if *requested < 0 || *requested >= count {
			return 0, errext.New(errext.InvalidMetadata, "requested partition %d out of range [0,%d)", *requested, count)
		}
		return *requested, nil
	}
	n := atomic.AddInt64(&s.counter, 1) - 1
	return int(n % int64(count)), nil
}

func (s *roundRobinSelector) Metadata() metadata.Metadata {
	return s.config
}

// fieldHashConfig names the metadata field whose string value is
// hashed to choose a partition, the way a Kafka key-based partitioner
// hashes a record key.
type fieldHashConfig struct {
	Field string `json:"field"`
}

type fieldHashSelector struct {
	config metadata.Metadata
	field  string
	count  int32
}

func newFieldHashSelector(config metadata.Metadata) (PartitionSelector, error) {
	var parsed fieldHashConfig
	if err := config.Unmarshal(&parsed); err != nil {
		return nil, errext.Wrap(errext.InvalidMetadata, fmt.Errorf("field-hash selector config: %w", err))
	}
	if parsed.Field == "" {
		return nil, errext.New(errext.InvalidMetadata, "field-hash selector requires a non-empty \"field\"")
	}
	return &fieldHashSelector{config: config, field: parsed.Field}, nil
}

func (s *fieldHashSelector) SetPartitions(count int) error {
	if count <= 0 {
		return errext.New(errext.InvalidMetadata, "partition selector: count must be positive, got %d", count)
	}
	atomic.StoreInt32(&s.count, int32(count))
	return nil
}

func (s *fieldHashSelector) SelectPartitionFor(meta metadata.Metadata, requested *int) (int, error) {
	count := int(atomic.LoadInt32(&s.count))
	if count == 0 {
		return 0, errext.New(errext.InvalidMetadata, "partition selector: SetPartitions was never called")
	}
	if requested != nil {
		if *requested < 0 || *requested >= count {
			return 0, errext.New(errext.InvalidMetadata, "requested partition %d out of range [0,%d)", *requested, count)
		}
		return *requested, nil
	}
	key := meta.Get(s.field).String()
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(count)), nil
}

func (s *fieldHashSelector) Metadata() metadata.Metadata {
	return s.config
}
