// Package driver implements Mofka's Driver/ServiceHandle: the
// client-side directory that resolves topic names to partition sets
// and hands out TopicHandles (spec.md §4.6); Producers and Consumers
// are constructed by pkg/producer and pkg/consumer from a
// TopicHandle, not by the Driver itself. Grounded
// on original_source/include/mofka/Client.hpp and Admin.hpp. The
// original's SSG-based multi-member service discovery is out of
// scope (spec.md §1 names "the external service-discovery file
// format" as an external collaborator); this Driver instead connects
// to one Provider address directly, the way a test or a small
// deployment would.
package driver

import (
	"context"

	"github.com/mochi-hpc/mofka-sub001/internal/errext"
	"github.com/mochi-hpc/mofka-sub001/pkg/metadata"
	"github.com/mochi-hpc/mofka-sub001/pkg/policy"
	"github.com/mochi-hpc/mofka-sub001/pkg/provider"
	"github.com/mochi-hpc/mofka-sub001/pkg/transport"
)

// Driver is a connection to one Mofka Provider address.
type Driver struct {
	address string
	conn    *transport.Conn
}

// Connect dials address and returns a Driver bound to it.
func Connect(address string) (*Driver, error) {
	conn, err := transport.Dial(address)
	if err != nil {
		return nil, errext.Wrap(errext.Transport, err)
	}
	return &Driver{address: address, conn: conn}, nil
}

// Close releases the underlying connection.
func (d *Driver) Close() error {
	return d.conn.Close()
}

// PolicyChoice names the registered policy key plus its config
// Metadata for one of a topic's Validator/PartitionSelector/
// Serializer slots at creation time (spec.md §4.6 createTopic).
type PolicyChoice struct {
	Type   string
	Config metadata.Metadata
}

func (c PolicyChoice) spec() provider.PolicySpec {
	return provider.PolicySpec{Type: c.Type, Config: c.Config}
}

// CreateTopic registers name in the target Provider's directory with
// the three policy choices and no partitions yet.
func (d *Driver) CreateTopic(ctx context.Context, name string, validator, selector, serializer PolicyChoice) error {
	req := struct {
		Name       string              `json:"name"`
		Validator  provider.PolicySpec `json:"validator"`
		Selector   provider.PolicySpec `json:"selector"`
		Serializer provider.PolicySpec `json:"serializer"`
	}{name, validator.spec(), selector.spec(), serializer.spec()}

	msg, err := transport.Message{Type: provider.TypeCreateTopic}.WithPayload(req)
	if err != nil {
		return err
	}
	_, err = d.conn.Call(ctx, msg)
	return err
}

// AddPartitionOptions configures one addPartition call.
type AddPartitionOptions struct {
	Type        string // partition backend, e.g. "memory"
	AdaptiveMin uint64
	AdaptiveMax uint64
}

// AddPartition asks the Provider to instantiate a PartitionManager
// for topic and returns its freshly assigned UUID (spec.md §4.6).
func (d *Driver) AddPartition(ctx context.Context, topic string, opts AddPartitionOptions) (string, error) {
	partType := opts.Type
	if partType == "" {
		partType = "memory"
	}
	req := struct {
		Topic       string `json:"topic"`
		Type        string `json:"type"`
		AdaptiveMin uint64 `json:"adaptive_min"`
		AdaptiveMax uint64 `json:"adaptive_max"`
	}{topic, partType, opts.AdaptiveMin, opts.AdaptiveMax}

	msg, err := transport.Message{Type: provider.TypeAddPartition}.WithPayload(req)
	if err != nil {
		return "", err
	}
	reply, err := d.conn.Call(ctx, msg)
	if err != nil {
		return "", err
	}
	var out struct {
		UUID string `json:"uuid"`
	}
	if err := reply.Take(&out); err != nil {
		return "", err
	}
	return out.UUID, nil
}

// OpenTopic snapshots topic's partition list and policy specs and
// instantiates a local Validator/PartitionSelector/Serializer from
// them (spec.md §4.6), returning a ready-to-use TopicHandle.
func (d *Driver) OpenTopic(ctx context.Context, name string) (*TopicHandle, error) {
	req := struct {
		Name string `json:"name"`
	}{name}
	msg, err := transport.Message{Type: provider.TypeOpenTopic}.WithPayload(req)
	if err != nil {
		return nil, err
	}
	reply, err := d.conn.Call(ctx, msg)
	if err != nil {
		return nil, err
	}
	var entry provider.TopicEntry
	if err := reply.Take(&entry); err != nil {
		return nil, err
	}

	validator, err := policy.NewValidator(entry.Validator.Type, entry.Validator.Config)
	if err != nil {
		return nil, err
	}
	selector, err := policy.NewPartitionSelector(entry.Selector.Type, entry.Selector.Config)
	if err != nil {
		return nil, err
	}
	if err := selector.SetPartitions(len(entry.Partitions)); err != nil {
		return nil, err
	}
	serializer, err := policy.NewSerializer(entry.Serializer.Type, entry.Serializer.Config)
	if err != nil {
		return nil, err
	}

	return &TopicHandle{
		driver:     d,
		name:       entry.Name,
		partitions: entry.Partitions,
		validator:  validator,
		selector:   selector,
		serializer: serializer,
	}, nil
}

// MarkPartitionComplete declares that partitionUUID will never
// ingest another event; every attached and future consumer on it
// receives one final NoMoreEvents feed batch (SPEC_FULL.md's
// supplemented markAsComplete feature).
func (d *Driver) MarkPartitionComplete(ctx context.Context, partitionUUID string) error {
	req := struct {
		PartitionUUID string `json:"partition_uuid"`
	}{partitionUUID}
	msg, err := transport.Message{Type: provider.TypeMarkComplete}.WithPayload(req)
	if err != nil {
		return err
	}
	_, err = d.conn.Call(ctx, msg)
	return err
}

// CloseTopic removes name from the directory without destroying its
// partitions.
func (d *Driver) CloseTopic(ctx context.Context, name string) error {
	req := struct {
		Name string `json:"name"`
	}{name}
	msg, err := transport.Message{Type: provider.TypeCloseTopic}.WithPayload(req)
	if err != nil {
		return err
	}
	_, err = d.conn.Call(ctx, msg)
	return err
}

// DestroyTopic destroys every partition owned by name and removes it
// from the directory.
func (d *Driver) DestroyTopic(ctx context.Context, name string) error {
	req := struct {
		Name string `json:"name"`
	}{name}
	msg, err := transport.Message{Type: provider.TypeDestroyTopic}.WithPayload(req)
	if err != nil {
		return err
	}
	_, err = d.conn.Call(ctx, msg)
	return err
}
