package consumer

import "github.com/mochi-hpc/mofka-sub001/pkg/eventid"

// The payload shapes below mirror pkg/provider's unexported RPC
// request/reply structs field-for-field; Consumer talks to a
// Provider purely over the wire, so it cannot reuse those unexported
// types directly (the same constraint pkg/driver and pkg/producer
// already work under).

type requestEventsPayload struct {
	PartitionUUID string `json:"partition_uuid"`
	ConsumerName  string `json:"consumer_name"`
	CallbackAddr  string `json:"callback_addr"`
	BatchSize     uint64 `json:"batch_size"`
	Adaptive      bool   `json:"adaptive"`
}

type ackEventPayload struct {
	PartitionUUID string          `json:"partition_uuid"`
	ConsumerName  string          `json:"consumer_name"`
	EventID       eventid.EventID `json:"event_id"`
}

type removeConsumerPayload struct {
	PartitionUUID string `json:"partition_uuid"`
	ConsumerName  string `json:"consumer_name"`
}

type requestDataPayload struct {
	PartitionUUID string   `json:"partition_uuid"`
	Descriptors   [][]byte `json:"descriptors"`
}

type requestDataReply struct {
	Data   [][]byte `json:"data"`
	Errors []string `json:"errors"`
}

// feedBatchPayload is what a partition's re-invocation call under
// TypeFeedBatch carries, mirroring provider.feedBatchRequest.
type feedBatchPayload struct {
	FirstID   eventid.EventID `json:"first_id"`
	MetaSizes []uint64        `json:"meta_sizes"`
	MetaBytes []byte          `json:"meta_bytes"`
	DescSizes []uint64        `json:"desc_sizes"`
	DescBytes []byte          `json:"desc_bytes"`
}
