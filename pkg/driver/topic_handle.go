package driver

import (
	"github.com/mochi-hpc/mofka-sub001/pkg/policy"
	"github.com/mochi-hpc/mofka-sub001/pkg/provider"
)

// TopicHandle is the client-side view of an open topic: its ordered
// partition list plus the three policy instances reconstructed from
// the directory's PolicySpecs, ready to hand to a Producer or
// Consumer (spec.md §4.6/§4.3).
type TopicHandle struct {
	driver     *Driver
	name       string
	partitions []provider.PartitionInfo

	validator  policy.Validator
	selector   policy.PartitionSelector
	serializer policy.Serializer
}

// Name returns the topic's name.
func (h *TopicHandle) Name() string { return h.name }

// Partitions returns the topic's ordered partition list.
func (h *TopicHandle) Partitions() []provider.PartitionInfo {
	out := make([]provider.PartitionInfo, len(h.partitions))
	copy(out, h.partitions)
	return out
}

// Validator returns the topic's reconstructed Validator instance.
func (h *TopicHandle) Validator() policy.Validator { return h.validator }

// Selector returns the topic's reconstructed PartitionSelector
// instance, already primed with SetPartitions(len(Partitions())).
func (h *TopicHandle) Selector() policy.PartitionSelector { return h.selector }

// Serializer returns the topic's reconstructed Serializer instance.
func (h *TopicHandle) Serializer() policy.Serializer { return h.serializer }

// Driver returns the Driver this handle was opened through, so a
// Producer/Consumer can dial each partition's provider address.
func (h *TopicHandle) Driver() *Driver { return h.driver }
