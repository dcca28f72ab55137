// Package datastore implements Mofka's DataStore contract
// (spec.md §4.2): an optional pluggable sink owning raw payload bytes
// and returning DataDescriptors, plus the reference in-memory
// implementation.
package datastore

import (
	"context"

	"github.com/mochi-hpc/mofka-sub001/internal/errext"
	"github.com/mochi-hpc/mofka-sub001/pkg/datadescriptor"
)

// DataStore is the contract every pluggable payload store
// implements. The view chain carried by a DataDescriptor (Sub,
// Strided, Unstructured) is evaluated only here — it travels through
// the rest of the system unchanged (spec.md §4.1).
type DataStore interface {
	// Store ingests count payloads whose sizes and concatenated
	// bytes have already been pulled off the sender's bulk handles by
	// the caller (spec.md §4.2: "pulls ... via one-sided bulk
	// transfer"; the bulk pull itself is pkg/transport's concern, so
	// this contract takes the pulled bytes directly), and returns one
	// DataDescriptor per event.
	Store(ctx context.Context, sizes []uint64, data []byte) ([]datadescriptor.DataDescriptor, error)
	// Load resolves each descriptor (applying its view chain) and
	// returns the corresponding bytes, or a per-descriptor error so
	// partial success is reportable (spec.md §4.4 getData).
	Load(ctx context.Context, descriptors []datadescriptor.DataDescriptor) ([][]byte, []error)
	// Destroy clears storage. Idempotent.
	Destroy() error
}

// ApplyTransforms materializes the view chain of a descriptor over
// the raw stored bytes underlying it, in order. Every built-in
// DataStore implementation should route Load through this helper so
// the view algebra (spec.md §8) behaves identically regardless of
// backend.
func ApplyTransforms(raw []byte, transforms []datadescriptor.Transform) ([]byte, error) {
	view := raw
	for _, t := range transforms {
		switch t.Kind {
		case datadescriptor.KindSub:
			// A Sub transform's resulting size is carried by the
			// descriptor, not the transform; the caller (Load) slices
			// to the descriptor's final Size after the loop. Here we
			// only need to shift the window's start.
			if t.Offset > uint64(len(view)) {
				return nil, errext.New(errext.Protocol, "sub-view offset %d exceeds available %d bytes", t.Offset, len(view))
			}
			view = view[t.Offset:]
		case datadescriptor.KindStrided:
			stride := t.BlockSize + t.GapSize
			out := make([]byte, 0, t.NumBlocks*t.BlockSize)
			for i := uint64(0); i < t.NumBlocks; i++ {
				start := t.Offset + i*stride
				end := start + t.BlockSize
				if end > uint64(len(view)) {
					return nil, errext.New(errext.Protocol, "strided block [%d,%d) exceeds available %d bytes", start, end, len(view))
				}
				out = append(out, view[start:end]...)
			}
			view = out
		case datadescriptor.KindUnstructured:
			var total uint64
			for _, s := range t.Segments {
				total += s.Size
			}
			out := make([]byte, 0, total)
			for _, s := range t.Segments {
				end := s.Offset + s.Size
				if end > uint64(len(view)) {
					return nil, errext.New(errext.Protocol, "unstructured segment [%d,%d) exceeds available %d bytes", s.Offset, end, len(view))
				}
				out = append(out, view[s.Offset:end]...)
			}
			view = out
		}
	}
	return view, nil
}
