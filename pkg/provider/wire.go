package provider

import (
	"github.com/mochi-hpc/mofka-sub001/pkg/eventid"
)

// RPC message types dispatched through pkg/transport, one row per
// spec.md §4.5's Provider RPC table plus the server-to-consumer
// feed-batch callback spec.md §4.8 describes as "re-invocation".
const (
	TypeCreateTopic    = "create_topic"
	TypeAddPartition   = "add_partition"
	TypeOpenTopic      = "open_topic"
	TypeCloseTopic     = "close_topic"
	TypeDestroyTopic   = "destroy_topic"
	TypeSendBatch      = "producer_send_batch"
	TypeRequestEvents  = "consumer_request_events"
	TypeAckEvent       = "consumer_ack_event"
	TypeRemoveConsumer = "consumer_remove_consumer"
	TypeRequestData    = "consumer_request_data"
	TypeFeedBatch      = "consumer_feed_batch"
	TypeMarkComplete   = "mark_partition_complete"
)

type createTopicRequest struct {
	Name       string     `json:"name"`
	Validator  PolicySpec `json:"validator"`
	Selector   PolicySpec `json:"selector"`
	Serializer PolicySpec `json:"serializer"`
}

type addPartitionRequest struct {
	Topic       string `json:"topic"`
	Type        string `json:"type"`
	AdaptiveMin uint64 `json:"adaptive_min"`
	AdaptiveMax uint64 `json:"adaptive_max"`
}

type addPartitionReply struct {
	UUID string `json:"uuid"`
}

type topicNameRequest struct {
	Name string `json:"name"`
}

type sendBatchRequest struct {
	PartitionUUID string   `json:"partition_uuid"`
	ProducerName  string   `json:"producer_name"`
	MetaSizes     []uint64 `json:"meta_sizes"`
	MetaBytes     []byte   `json:"meta_bytes"`
	// DataSizes/DataBytes are the raw payload bytes, stored into the
	// partition's DataStore server-side to derive one DataDescriptor
	// per event (spec.md §4.2); the wire never carries pre-encoded
	// descriptor bytes from producer to server.
	DataSizes []uint64 `json:"data_sizes"`
	DataBytes []byte   `json:"data_bytes"`
}

type sendBatchReply struct {
	FirstID eventid.EventID `json:"first_id"`
}

type requestEventsRequest struct {
	PartitionUUID string `json:"partition_uuid"`
	ConsumerName  string `json:"consumer_name"`
	CallbackAddr  string `json:"callback_addr"`
	BatchSize     uint64 `json:"batch_size"`
	Adaptive      bool   `json:"adaptive"`
}

type ackEventRequest struct {
	PartitionUUID string          `json:"partition_uuid"`
	ConsumerName  string          `json:"consumer_name"`
	EventID       eventid.EventID `json:"event_id"`
}

type removeConsumerRequest struct {
	PartitionUUID string `json:"partition_uuid"`
	ConsumerName  string `json:"consumer_name"`
}

type requestDataRequest struct {
	PartitionUUID string   `json:"partition_uuid"`
	Descriptors   [][]byte `json:"descriptors"`
}

type requestDataReply struct {
	Data   [][]byte `json:"data"`
	Errors []string `json:"errors"`
}

type markCompleteRequest struct {
	PartitionUUID string `json:"partition_uuid"`
}

// feedBatchRequest is what the Provider sends to a consumer's own
// transport.Server under TypeFeedBatch, the wire shape of
// partition.FeedBatch (spec.md §6 feed bulk layout).
type feedBatchRequest struct {
	FirstID   eventid.EventID `json:"first_id"`
	MetaSizes []uint64        `json:"meta_sizes"`
	MetaBytes []byte          `json:"meta_bytes"`
	DescSizes []uint64        `json:"desc_sizes"`
	DescBytes []byte          `json:"desc_bytes"`
}
