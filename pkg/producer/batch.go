package producer

import (
	"github.com/mochi-hpc/mofka-sub001/pkg/eventid"
	"github.com/mochi-hpc/mofka-sub001/pkg/pool"
)

// activeBatch accumulates pushed events for one partition until it
// seals: parallel metadata/data vectors plus one pending promise per
// event, mirroring the partition-side Batch shape (spec.md §4.7 step
// 3/4).
type activeBatch struct {
	metaSizes []uint64
	metaBytes []byte
	dataSizes []uint64
	dataBytes []byte
	promises  []*pool.Promise[eventid.EventID]
}

func newActiveBatch() *activeBatch {
	return &activeBatch{}
}

func (b *activeBatch) count() int {
	return len(b.promises)
}

func (b *activeBatch) append(meta, data []byte, promise *pool.Promise[eventid.EventID]) {
	b.metaSizes = append(b.metaSizes, uint64(len(meta)))
	b.metaBytes = append(b.metaBytes, meta...)
	b.dataSizes = append(b.dataSizes, uint64(len(data)))
	b.dataBytes = append(b.dataBytes, data...)
	b.promises = append(b.promises, promise)
}

// resolve fulfils every promise in the batch with firstID+i.
func (b *activeBatch) resolve(firstID eventid.EventID) {
	for i, p := range b.promises {
		p.SetValue(firstID + eventid.EventID(i))
	}
}

// fail fulfils every promise in the batch with err.
func (b *activeBatch) fail(err error) {
	for _, p := range b.promises {
		p.SetError(err)
	}
}
