// Package metadata implements Mofka's Metadata value type: an
// immutable JSON document carried with every event.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Metadata is an immutable JSON document. The zero value is the
// empty object "{}".
type Metadata struct {
	raw []byte
}

// New wraps raw JSON bytes as Metadata, validating that it parses as
// a JSON value. The bytes are copied so later mutation of the
// caller's slice cannot violate immutability.
func New(raw []byte) (Metadata, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if !json.Valid(raw) {
		return Metadata{}, fmt.Errorf("metadata: not valid JSON")
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return Metadata{raw: cp}, nil
}

// FromMap builds Metadata by marshaling an arbitrary Go value as
// JSON.
func FromMap(v interface{}) (Metadata, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Metadata{}, fmt.Errorf("metadata: marshal: %w", err)
	}
	return Metadata{raw: raw}, nil
}

// Empty returns the canonical empty-object Metadata.
func Empty() Metadata {
	return Metadata{raw: []byte("{}")}
}

// Bytes returns the underlying JSON document. Callers must not
// mutate the returned slice.
func (m Metadata) Bytes() []byte {
	if m.raw == nil {
		return []byte("{}")
	}
	return m.raw
}

// String returns the JSON document as a string.
func (m Metadata) String() string {
	return string(m.Bytes())
}

// Get reads a single field by gjson path, without a full unmarshal.
// This is the primitive the built-in field-predicate Validator and
// PartitionSelector are built on.
func (m Metadata) Get(path string) gjson.Result {
	return gjson.GetBytes(m.Bytes(), path)
}

// Unmarshal decodes the document into v, the usual encoding/json way,
// for callers that want a typed view of the whole document.
func (m Metadata) Unmarshal(v interface{}) error {
	return json.Unmarshal(m.Bytes(), v)
}

// Equal reports whether two Metadata values are byte-identical after
// JSON-compacting both (whitespace does not affect equality; key
// order does, since compacting does not reorder keys).
func (m Metadata) Equal(other Metadata) bool {
	a, errA := compact(m.Bytes())
	b, errB := compact(other.Bytes())
	if errA != nil || errB != nil {
		return bytes.Equal(m.Bytes(), other.Bytes())
	}
	return bytes.Equal(a, b)
}

func compact(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON lets Metadata participate transparently in a larger
// JSON document (e.g. the topic catalogue entry in spec.md §6).
func (m Metadata) MarshalJSON() ([]byte, error) {
	return m.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.raw = cp
	return nil
}
