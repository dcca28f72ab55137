package policy

import (
	"encoding/binary"
	"fmt"

	"github.com/mochi-hpc/mofka-sub001/internal/errext"
	"github.com/mochi-hpc/mofka-sub001/pkg/metadata"
)

func init() {
	RegisterSerializer("json", newJSONSerializer)
}

// jsonSerializer writes a length-prefixed copy of the Metadata's raw
// JSON bytes into the archive; deserializing is the exact inverse,
// so serialize/deserialize round-trips are byte-exact as required by
// spec.md §8.
type jsonSerializer struct {
	config metadata.Metadata
}

func newJSONSerializer(config metadata.Metadata) (Serializer, error) {
	return jsonSerializer{config: config}, nil
}

func (s jsonSerializer) Serialize(archive *Archive, meta metadata.Metadata) error {
	raw := meta.Bytes()
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(raw)))
	if _, err := archive.Write(lenBuf[:n]); err != nil {
		return errext.Wrap(errext.Protocol, err)
	}
	if _, err := archive.Write(raw); err != nil {
		return errext.Wrap(errext.Protocol, err)
	}
	return nil
}

func (s jsonSerializer) Deserialize(archive *Archive) (metadata.Metadata, error) {
	remaining := archive.Remaining()
	size, n := binary.Uvarint(remaining)
	if n <= 0 {
		return metadata.Metadata{}, errext.New(errext.Protocol, "serializer: truncated length prefix")
	}
	body := remaining[n:]
	if uint64(len(body)) < size {
		return metadata.Metadata{}, errext.New(errext.Protocol, "serializer: truncated body, want %d have %d", size, len(body))
	}
	consumed := make([]byte, n+int(size))
	if _, err := archive.Read(consumed); err != nil {
		return metadata.Metadata{}, errext.Wrap(errext.Protocol, err)
	}
	meta, err := metadata.New(body[:size])
	if err != nil {
		return metadata.Metadata{}, errext.Wrap(errext.InvalidMetadata, fmt.Errorf("serializer: %w", err))
	}
	return meta, nil
}

func (s jsonSerializer) Metadata() metadata.Metadata {
	return s.config
}
