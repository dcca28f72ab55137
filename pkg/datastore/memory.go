package datastore

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/s2"

	"github.com/mochi-hpc/mofka-sub001/internal/errext"
	"github.com/mochi-hpc/mofka-sub001/pkg/datadescriptor"
)

// MemoryConfig configures the in-memory DataStore.
type MemoryConfig struct {
	// Compress enables s2 block compression of stored payloads. The
	// default (false) stores raw bytes exactly as spec.md §4.2
	// describes; this is an additive option, not a change to the
	// default path.
	Compress bool
	// InitialCapacity seeds the backing buffer's capacity to avoid
	// early reallocations.
	InitialCapacity int
}

// Memory is the reference in-memory DataStore: sizes and data are
// kept in parallel growable buffers that double capacity on growth,
// per spec.md §4.2 and original_source/src/MemoryDataStore.hpp.
type Memory struct {
	mu        sync.Mutex
	cfg       MemoryConfig
	data      []byte
	sizes     []uint64 // per-record *stored* (possibly compressed) size
	logical   []uint64 // per-record logical (uncompressed) size
	destroyed bool
}

// NewMemory builds an empty in-memory DataStore.
func NewMemory(cfg MemoryConfig) *Memory {
	capacity := cfg.InitialCapacity
	if capacity <= 0 {
		capacity = 4096
	}
	return &Memory{
		cfg:  cfg,
		data: make([]byte, 0, capacity),
	}
}

// Store appends count payloads described by sizes/data to the store
// and returns one DataDescriptor per payload, whose opaque location
// encodes the record's index in this store.
func (m *Memory) Store(_ context.Context, sizes []uint64, data []byte) ([]datadescriptor.DataDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return nil, errext.New(errext.Closed, "data store destroyed")
	}

	var want uint64
	for _, s := range sizes {
		want += s
	}
	if want != uint64(len(data)) {
		return nil, errext.New(errext.Protocol, "data store: declared sizes sum to %d, payload is %d bytes", want, len(data))
	}

	descriptors := make([]datadescriptor.DataDescriptor, 0, len(sizes))
	offset := uint64(0)
	for _, size := range sizes {
		raw := data[offset : offset+size]
		offset += size

		recordIndex := uint64(len(m.sizes))
		stored := raw
		if m.cfg.Compress && size > 0 {
			stored = s2.Encode(nil, raw)
		}
		m.data = growAppend(m.data, stored)
		m.sizes = append(m.sizes, uint64(len(stored)))
		m.logical = append(m.logical, size)

		loc := encodeLocation(recordIndex)
		descriptors = append(descriptors, datadescriptor.NewLocation(loc, size))
	}
	return descriptors, nil
}

// Load resolves each descriptor against the underlying buffer,
// applying its view chain, and returns per-descriptor bytes or
// errors. A failure on one descriptor does not short-circuit the
// rest (spec.md §4.4: "a per-descriptor result vector so partial
// success is reportable").
func (m *Memory) Load(_ context.Context, descriptors []datadescriptor.DataDescriptor) ([][]byte, []error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([][]byte, len(descriptors))
	errs := make([]error, len(descriptors))

	if m.destroyed {
		for i := range descriptors {
			errs[i] = errext.New(errext.Closed, "data store destroyed")
		}
		return results, errs
	}

	for i, d := range descriptors {
		if d.IsNull() {
			results[i] = nil
			continue
		}
		idx, err := decodeLocation(d.Location())
		if err != nil {
			errs[i] = err
			continue
		}
		if idx >= uint64(len(m.sizes)) {
			errs[i] = errext.New(errext.Protocol, "data store: record index %d out of range", idx)
			continue
		}
		raw, err := m.recordBytes(idx)
		if err != nil {
			errs[i] = err
			continue
		}
		view, err := ApplyTransforms(raw, d.Transforms())
		if err != nil {
			errs[i] = err
			continue
		}
		size := d.Size()
		if uint64(len(view)) < size {
			errs[i] = errext.New(errext.Protocol, "data store: resolved view shorter than descriptor size")
			continue
		}
		results[i] = view[:size]
	}
	return results, errs
}

// Destroy clears the store; idempotent.
func (m *Memory) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	m.sizes = nil
	m.logical = nil
	m.destroyed = true
	return nil
}

func (m *Memory) recordBytes(idx uint64) ([]byte, error) {
	var start uint64
	for i := uint64(0); i < idx; i++ {
		start += m.sizes[i]
	}
	stored := m.data[start : start+m.sizes[idx]]
	if !m.cfg.Compress {
		return stored, nil
	}
	decoded, err := s2.Decode(nil, stored)
	if err != nil {
		return nil, errext.Wrap(errext.Protocol, fmt.Errorf("s2 decode: %w", err))
	}
	return decoded, nil
}

// growAppend doubles capacity geometrically rather than relying on
// Go's built-in append growth heuristics, matching spec.md §4.2's
// explicit "doubles capacity on growth" contract.
func growAppend(buf []byte, more []byte) []byte {
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

func encodeLocation(recordIndex uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, recordIndex)
	return buf
}

func decodeLocation(loc []byte) (uint64, error) {
	if len(loc) != 8 {
		return 0, errext.New(errext.Protocol, "data store: malformed location (want 8 bytes, have %d)", len(loc))
	}
	return binary.LittleEndian.Uint64(loc), nil
}
