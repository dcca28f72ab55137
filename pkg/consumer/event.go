package consumer

import (
	"context"

	"github.com/mochi-hpc/mofka-sub001/pkg/datadescriptor"
	"github.com/mochi-hpc/mofka-sub001/pkg/dataview"
	"github.com/mochi-hpc/mofka-sub001/pkg/eventid"
	"github.com/mochi-hpc/mofka-sub001/pkg/metadata"
)

// Event is one delivered event: its assigned EventID, deserialized
// metadata, and materialized payload (spec.md §4.8 step 2e).
type Event struct {
	ID       eventid.EventID
	Metadata metadata.Metadata
	Data     dataview.DataView

	consumer     *Consumer
	partitionIdx int
}

// Ack advances the owning partition's cursor for this consumer past
// ID, per spec.md §4.4's acknowledge contract. The NoMoreEvents
// sentinel event (delivered once every partition has completed) has
// no owning partition and Ack on it is a no-op.
func (e Event) Ack(ctx context.Context) error {
	if e.consumer == nil {
		return nil
	}
	return e.consumer.ack(ctx, e.partitionIdx, e.ID)
}

// DataSelector narrows or skips a descriptor before it is fetched.
// Returning datadescriptor.Null() skips the data fetch for this event
// entirely (spec.md §4.8 step 2c).
type DataSelector func(meta metadata.Metadata, descriptor datadescriptor.DataDescriptor) datadescriptor.DataDescriptor

// DataAllocator produces the destination DataView a fetched payload
// is copied into (spec.md §4.8 step 2d).
type DataAllocator func(meta metadata.Metadata, descriptor datadescriptor.DataDescriptor) (dataview.DataView, error)

// DefaultDataSelector selects every descriptor unchanged.
func DefaultDataSelector(_ metadata.Metadata, descriptor datadescriptor.DataDescriptor) datadescriptor.DataDescriptor {
	return descriptor
}

// DefaultDataAllocator allocates one contiguous buffer sized to the
// descriptor.
func DefaultDataAllocator(_ metadata.Metadata, descriptor datadescriptor.DataDescriptor) (dataview.DataView, error) {
	return dataview.New(make([]byte, descriptor.Size())), nil
}
