// Package policy implements Mofka's three pluggable policy trait
// objects — Validator, PartitionSelector, Serializer — and the
// process-wide, name-keyed registries that let a topic reconstruct
// the same policy instance on every server that opens it
// (spec.md §4.3, §6).
package policy

import (
	"fmt"
	"sync"

	"github.com/mochi-hpc/mofka-sub001/internal/errext"
	"github.com/mochi-hpc/mofka-sub001/pkg/dataview"
	"github.com/mochi-hpc/mofka-sub001/pkg/metadata"
)

// Validator rejects malformed events. It is a pure function: called
// once per event on the producer path, before batching.
type Validator interface {
	// Validate returns a non-nil error (InvalidMetadata) when the
	// event should be rejected.
	Validate(meta metadata.Metadata, data dataview.DataView) error
	// Metadata returns a snapshot sufficient to reconstruct this
	// validator from its factory.
	Metadata() metadata.Metadata
}

// PartitionSelector maps metadata to a partition index.
type PartitionSelector interface {
	// SetPartitions informs the selector how many partitions the
	// topic currently has; called once at TopicHandle construction.
	SetPartitions(count int) error
	// SelectPartitionFor chooses a partition index for an event. If
	// requested is non-nil, it must be honoured or SelectPartitionFor
	// must fail (out-of-range).
	SelectPartitionFor(meta metadata.Metadata, requested *int) (int, error)
	// Metadata returns a snapshot sufficient to reconstruct this
	// selector from its factory.
	Metadata() metadata.Metadata
}

// Serializer converts Metadata to and from bytes, symmetrically.
type Serializer interface {
	// Serialize appends the encoded form of meta to the archive.
	Serialize(archive *Archive, meta metadata.Metadata) error
	// Deserialize decodes a Metadata from the archive.
	Deserialize(archive *Archive) (metadata.Metadata, error)
	// Metadata returns a snapshot sufficient to reconstruct this
	// serializer from its factory.
	Metadata() metadata.Metadata
}

// Archive is the abstract byte stream a Serializer reads from or
// writes to, standing in for the original implementation's archive
// concept with a plain growable buffer.
type Archive struct {
	buf []byte
	pos int
}

// NewWriteArchive returns an Archive ready to be written into.
func NewWriteArchive() *Archive {
	return &Archive{}
}

// NewReadArchive returns an Archive that reads back previously
// written bytes.
func NewReadArchive(data []byte) *Archive {
	return &Archive{buf: data}
}

// Write appends p to the archive.
func (a *Archive) Write(p []byte) (int, error) {
	a.buf = append(a.buf, p...)
	return len(p), nil
}

// Read consumes up to len(p) bytes from the archive.
func (a *Archive) Read(p []byte) (int, error) {
	n := copy(p, a.buf[a.pos:])
	a.pos += n
	if n == 0 && len(p) > 0 {
		return 0, fmt.Errorf("archive: eof")
	}
	return n, nil
}

// Bytes returns everything written to the archive so far.
func (a *Archive) Bytes() []byte {
	return a.buf
}

// Remaining returns the unread tail of the archive.
func (a *Archive) Remaining() []byte {
	return a.buf[a.pos:]
}

// ValidatorFactory constructs a Validator from its config Metadata.
type ValidatorFactory func(config metadata.Metadata) (Validator, error)

// PartitionSelectorFactory constructs a PartitionSelector from its
// config Metadata.
type PartitionSelectorFactory func(config metadata.Metadata) (PartitionSelector, error)

// SerializerFactory constructs a Serializer from its config Metadata.
type SerializerFactory func(config metadata.Metadata) (Serializer, error)

// registry is the process-wide, mutex-guarded factory table backing
// all three policy kinds, mirroring k6's client.RegisterCommand /
// worker.RegisterProcessor global-registry idiom.
type registry struct {
	mu         sync.Mutex
	validators map[string]ValidatorFactory
	selectors  map[string]PartitionSelectorFactory
	serializer map[string]SerializerFactory
}

var global = &registry{
	validators: make(map[string]ValidatorFactory),
	selectors:  make(map[string]PartitionSelectorFactory),
	serializer: make(map[string]SerializerFactory),
}

// RegisterValidator installs a ValidatorFactory under key. Intended
// to be called from an init() function, the way a "key:lib" plug-in
// self-registers on load.
func RegisterValidator(key string, factory ValidatorFactory) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.validators[key] = factory
}

// RegisterPartitionSelector installs a PartitionSelectorFactory under key.
func RegisterPartitionSelector(key string, factory PartitionSelectorFactory) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.selectors[key] = factory
}

// RegisterSerializer installs a SerializerFactory under key.
func RegisterSerializer(key string, factory SerializerFactory) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.serializer[key] = factory
}

// NewValidator resolves name (possibly "key:lib") against the
// registry and instantiates a Validator with config.
func NewValidator(name string, config metadata.Metadata) (Validator, error) {
	key, err := resolve(name, func(k string) bool {
		global.mu.Lock()
		defer global.mu.Unlock()
		_, ok := global.validators[k]
		return ok
	})
	if err != nil {
		return nil, err
	}
	global.mu.Lock()
	factory, ok := global.validators[key]
	global.mu.Unlock()
	if !ok {
		return nil, errext.New(errext.UnknownPlugin, "no validator registered under %q", key)
	}
	return factory(config)
}

// NewPartitionSelector resolves name against the registry and
// instantiates a PartitionSelector with config.
func NewPartitionSelector(name string, config metadata.Metadata) (PartitionSelector, error) {
	key, err := resolve(name, func(k string) bool {
		global.mu.Lock()
		defer global.mu.Unlock()
		_, ok := global.selectors[k]
		return ok
	})
	if err != nil {
		return nil, err
	}
	global.mu.Lock()
	factory, ok := global.selectors[key]
	global.mu.Unlock()
	if !ok {
		return nil, errext.New(errext.UnknownPlugin, "no partition selector registered under %q", key)
	}
	return factory(config)
}

// NewSerializer resolves name against the registry and instantiates
// a Serializer with config.
func NewSerializer(name string, config metadata.Metadata) (Serializer, error) {
	key, err := resolve(name, func(k string) bool {
		global.mu.Lock()
		defer global.mu.Unlock()
		_, ok := global.serializer[k]
		return ok
	})
	if err != nil {
		return nil, err
	}
	global.mu.Lock()
	factory, ok := global.serializer[key]
	global.mu.Unlock()
	if !ok {
		return nil, errext.New(errext.UnknownPlugin, "no serializer registered under %q", key)
	}
	return factory(config)
}
