// Package datadescriptor implements Mofka's DataDescriptor: an
// opaque, serializable location token produced by a partition's
// DataStore when it ingests payload bytes, later presented back to
// fetch, slice, or discard that payload. The descriptor itself never
// interprets its location or view chain — only the DataStore holding
// the underlying bytes does (spec.md §4.1).
package datadescriptor

import (
	"encoding/binary"
	"fmt"
)

// TransformKind identifies one link in a DataDescriptor's view chain.
type TransformKind int

const (
	// KindSub narrows the view to a contiguous sub-range.
	KindSub TransformKind = iota
	// KindStrided narrows the view to numBlocks blocks of blockSize
	// bytes each, separated by gapSize bytes, starting at offset.
	KindStrided
	// KindUnstructured narrows the view to an arbitrary ordered list
	// of (offset, size) segments.
	KindUnstructured
)

// Segment is one (offset, size) pair within an Unstructured transform.
type Segment struct {
	Offset uint64
	Size   uint64
}

// Transform is one link in a DataDescriptor's view chain. Only the
// fields commented with its Kind are meaningful.
type Transform struct {
	Kind TransformKind

	// KindSub / KindStrided
	Offset uint64

	// KindStrided
	NumBlocks uint64
	BlockSize uint64
	GapSize   uint64

	// KindUnstructured
	Segments []Segment
}

func sizeOfTransform(t Transform) uint64 {
	switch t.Kind {
	case KindStrided:
		return t.NumBlocks * t.BlockSize
	case KindUnstructured:
		var total uint64
		for _, s := range t.Segments {
			total += s.Size
		}
		return total
	default: // KindSub carries its size in the descriptor, not the transform
		return 0
	}
}

// DataDescriptor is an opaque location plus logical size plus an
// optional chain of view transforms. The zero value is the Null
// descriptor (size 0, meaning "skip this payload").
type DataDescriptor struct {
	location   []byte
	size       uint64
	transforms []Transform
}

// Null returns the sentinel descriptor of size 0, meaning "no
// payload for this event".
func Null() DataDescriptor {
	return DataDescriptor{}
}

// IsNull reports whether d is the Null sentinel.
func (d DataDescriptor) IsNull() bool {
	return len(d.location) == 0 && d.size == 0 && len(d.transforms) == 0
}

// NewLocation builds a base descriptor directly over an opaque
// location and total size; this is what a DataStore.Store call
// returns per ingested event, before any consumer-side view is
// applied.
func NewLocation(location []byte, size uint64) DataDescriptor {
	loc := make([]byte, len(location))
	copy(loc, location)
	return DataDescriptor{location: loc, size: size}
}

// Location returns the descriptor's opaque location bytes. Only the
// DataStore that produced it should interpret them.
func (d DataDescriptor) Location() []byte {
	return d.location
}

// Size returns the descriptor's logical size: the number of bytes a
// Load of this exact descriptor would produce.
func (d DataDescriptor) Size() uint64 {
	return d.size
}

// Transforms returns the descriptor's view chain, outermost-last
// (the order in which they must be applied to the raw bytes at
// Location to materialize this view).
func (d DataDescriptor) Transforms() []Transform {
	return d.transforms
}

// SubView returns a new descriptor describing the sub-range
// [offset, offset+size) of d. Requires offset+size <= d.Size().
//
// Consecutive Sub transforms compose by addition rather than
// nesting, so that SubView(a,b).SubView(c,e) == SubView(a+c, e) when
// c+e <= b, per spec.md §8.
func (d DataDescriptor) SubView(offset, size uint64) (DataDescriptor, error) {
	if offset+size > d.size {
		return DataDescriptor{}, fmt.Errorf("datadescriptor: sub-view [%d,%d) exceeds size %d", offset, offset+size, d.size)
	}
	if offset == 0 && size == d.size {
		// d.SubView(0, N) == d (spec.md §8).
		return d.clone(), nil
	}
	out := d.clone()
	if n := len(out.transforms); n > 0 && out.transforms[n-1].Kind == KindSub {
		out.transforms[n-1].Offset += offset
	} else {
		out.transforms = append(out.transforms, Transform{Kind: KindSub, Offset: offset})
	}
	out.size = size
	return out, nil
}

// StridedView returns a new descriptor describing numBlocks blocks
// of blockSize bytes, separated by gapSize bytes, starting at offset
// within d. The resulting size is numBlocks*blockSize.
func (d DataDescriptor) StridedView(offset, numBlocks, blockSize, gapSize uint64) (DataDescriptor, error) {
	stride := blockSize + gapSize
	var span uint64
	if numBlocks > 0 {
		span = offset + (numBlocks-1)*stride + blockSize
	} else {
		span = offset
	}
	if span > d.size {
		return DataDescriptor{}, fmt.Errorf("datadescriptor: strided view spans %d bytes, exceeds size %d", span, d.size)
	}
	out := d.clone()
	out.transforms = append(out.transforms, Transform{
		Kind: KindStrided, Offset: offset, NumBlocks: numBlocks, BlockSize: blockSize, GapSize: gapSize,
	})
	out.size = numBlocks * blockSize
	return out, nil
}

// UnstructuredView returns a new descriptor describing an arbitrary
// ordered list of (offset, size) segments within d. The resulting
// size is the sum of segment sizes.
func (d DataDescriptor) UnstructuredView(segments []Segment) (DataDescriptor, error) {
	var total uint64
	for _, s := range segments {
		if s.Offset+s.Size > d.size {
			return DataDescriptor{}, fmt.Errorf("datadescriptor: segment [%d,%d) exceeds size %d", s.Offset, s.Offset+s.Size, d.size)
		}
		total += s.Size
	}
	out := d.clone()
	cp := make([]Segment, len(segments))
	copy(cp, segments)
	out.transforms = append(out.transforms, Transform{Kind: KindUnstructured, Segments: cp})
	out.size = total
	return out, nil
}

func (d DataDescriptor) clone() DataDescriptor {
	out := DataDescriptor{size: d.size}
	out.location = make([]byte, len(d.location))
	copy(out.location, d.location)
	out.transforms = make([]Transform, len(d.transforms))
	copy(out.transforms, d.transforms)
	return out
}

// Equal reports whether two descriptors refer to the same location
// and carry an identical view chain and size.
func (d DataDescriptor) Equal(other DataDescriptor) bool {
	if d.size != other.size || len(d.location) != len(other.location) || len(d.transforms) != len(other.transforms) {
		return false
	}
	for i := range d.location {
		if d.location[i] != other.location[i] {
			return false
		}
	}
	for i := range d.transforms {
		a, b := d.transforms[i], other.transforms[i]
		if a.Kind != b.Kind || a.Offset != b.Offset || a.NumBlocks != b.NumBlocks ||
			a.BlockSize != b.BlockSize || a.GapSize != b.GapSize || len(a.Segments) != len(b.Segments) {
			return false
		}
		for j := range a.Segments {
			if a.Segments[j] != b.Segments[j] {
				return false
			}
		}
	}
	return true
}

// Encode serializes the descriptor to an opaque byte string suitable
// for wire transfer (spec.md §6 "descriptors serialized as
// length-prefixed opaque bytes").
func (d DataDescriptor) Encode() []byte {
	buf := make([]byte, 0, 32)
	buf = appendUvarint(buf, uint64(len(d.location)))
	buf = append(buf, d.location...)
	buf = appendUvarint(buf, d.size)
	buf = appendUvarint(buf, uint64(len(d.transforms)))
	for _, t := range d.transforms {
		buf = append(buf, byte(t.Kind))
		switch t.Kind {
		case KindSub:
			buf = appendUvarint(buf, t.Offset)
		case KindStrided:
			buf = appendUvarint(buf, t.Offset)
			buf = appendUvarint(buf, t.NumBlocks)
			buf = appendUvarint(buf, t.BlockSize)
			buf = appendUvarint(buf, t.GapSize)
		case KindUnstructured:
			buf = appendUvarint(buf, uint64(len(t.Segments)))
			for _, s := range t.Segments {
				buf = appendUvarint(buf, s.Offset)
				buf = appendUvarint(buf, s.Size)
			}
		}
	}
	return buf
}

// Decode deserializes a descriptor previously produced by Encode.
func Decode(buf []byte) (DataDescriptor, error) {
	r := &reader{buf: buf}
	locLen, err := r.uvarint()
	if err != nil {
		return DataDescriptor{}, err
	}
	loc, err := r.take(int(locLen))
	if err != nil {
		return DataDescriptor{}, err
	}
	size, err := r.uvarint()
	if err != nil {
		return DataDescriptor{}, err
	}
	n, err := r.uvarint()
	if err != nil {
		return DataDescriptor{}, err
	}
	transforms := make([]Transform, 0, n)
	for i := uint64(0); i < n; i++ {
		kindByte, err := r.byteVal()
		if err != nil {
			return DataDescriptor{}, err
		}
		t := Transform{Kind: TransformKind(kindByte)}
		switch t.Kind {
		case KindSub:
			if t.Offset, err = r.uvarint(); err != nil {
				return DataDescriptor{}, err
			}
		case KindStrided:
			if t.Offset, err = r.uvarint(); err != nil {
				return DataDescriptor{}, err
			}
			if t.NumBlocks, err = r.uvarint(); err != nil {
				return DataDescriptor{}, err
			}
			if t.BlockSize, err = r.uvarint(); err != nil {
				return DataDescriptor{}, err
			}
			if t.GapSize, err = r.uvarint(); err != nil {
				return DataDescriptor{}, err
			}
		case KindUnstructured:
			segCount, err := r.uvarint()
			if err != nil {
				return DataDescriptor{}, err
			}
			segs := make([]Segment, 0, segCount)
			for j := uint64(0); j < segCount; j++ {
				off, err := r.uvarint()
				if err != nil {
					return DataDescriptor{}, err
				}
				sz, err := r.uvarint()
				if err != nil {
					return DataDescriptor{}, err
				}
				segs = append(segs, Segment{Offset: off, Size: sz})
			}
			t.Segments = segs
		default:
			return DataDescriptor{}, fmt.Errorf("datadescriptor: unknown transform kind %d", kindByte)
		}
		transforms = append(transforms, t)
	}
	return DataDescriptor{location: loc, size: size, transforms: transforms}, nil
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("datadescriptor: truncated varint")
	}
	r.pos += n
	return v, nil
}

func (r *reader) byteVal() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("datadescriptor: truncated byte")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("datadescriptor: truncated bytes")
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	cp := make([]byte, len(out))
	copy(cp, out)
	return cp, nil
}
