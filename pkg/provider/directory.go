package provider

import (
	"github.com/mochi-hpc/mofka-sub001/pkg/metadata"
)

// PartitionInfo identifies one partition within a topic's ordered
// partition list (spec.md §3 Topic catalogue entry).
type PartitionInfo struct {
	UUID       string `json:"uuid"`
	Address    string `json:"address"`
	ProviderID uint16 `json:"provider_id"`
}

// PolicySpec names a policy-plug-in registration key plus the
// snapshot config its factory was constructed from, exactly spec.md
// §6's catalogue shape `{ type: string, config: json }` (the
// "type"/"config" split distinguishes the registered factory key from
// the Metadata each policy factory itself returns, which carries only
// config — see e.g. original_source's EnergyValidator::metadata()
// returning `{"energy_max": ...}` with no type field of its own).
type PolicySpec struct {
	Type   string            `json:"type"`
	Config metadata.Metadata `json:"config"`
}

// TopicEntry is one row of the server-side topic directory: the
// topic's three immutable policy specs plus its ordered partition
// list, mirroring spec.md §6's topic catalogue entry.
type TopicEntry struct {
	Name       string          `json:"name"`
	Validator  PolicySpec      `json:"validator"`
	Selector   PolicySpec      `json:"selector"`
	Serializer PolicySpec      `json:"serializer"`
	Partitions []PartitionInfo `json:"partitions"`
}

func cloneEntry(e *TopicEntry) *TopicEntry {
	partitions := make([]PartitionInfo, len(e.Partitions))
	copy(partitions, e.Partitions)
	return &TopicEntry{
		Name:       e.Name,
		Validator:  e.Validator,
		Selector:   e.Selector,
		Serializer: e.Serializer,
		Partitions: partitions,
	}
}
