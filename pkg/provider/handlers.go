package provider

import (
	"context"

	"github.com/mochi-hpc/mofka-sub001/internal/errext"
	"github.com/mochi-hpc/mofka-sub001/pkg/datadescriptor"
	"github.com/mochi-hpc/mofka-sub001/pkg/partition"
	"github.com/mochi-hpc/mofka-sub001/pkg/transport"
)

// AttachHandlers registers every Provider RPC on server, making p
// reachable over the wire. Callers construct a transport.Server
// around their own net.Listener and pass it here before calling
// Server.Serve.
func (p *Provider) AttachHandlers(server *transport.Server) {
	server.Handle(TypeCreateTopic, p.handleCreateTopic)
	server.Handle(TypeAddPartition, p.handleAddPartition)
	server.Handle(TypeOpenTopic, p.handleOpenTopic)
	server.Handle(TypeCloseTopic, p.handleCloseTopic)
	server.Handle(TypeDestroyTopic, p.handleDestroyTopic)
	server.Handle(TypeSendBatch, p.handleSendBatch)
	server.Handle(TypeRequestEvents, p.handleRequestEvents)
	server.Handle(TypeAckEvent, p.handleAckEvent)
	server.Handle(TypeRemoveConsumer, p.handleRemoveConsumer)
	server.Handle(TypeRequestData, p.handleRequestData)
	server.Handle(TypeMarkComplete, p.handleMarkComplete)
}

func (p *Provider) handleCreateTopic(msg transport.Message) (transport.Message, error) {
	var req createTopicRequest
	if err := msg.Take(&req); err != nil {
		return transport.Message{}, errext.Wrap(errext.Protocol, err)
	}
	if err := p.CreateTopic(req.Name, req.Validator, req.Selector, req.Serializer); err != nil {
		return transport.Message{}, err
	}
	return transport.Message{Type: TypeCreateTopic}, nil
}

func (p *Provider) handleAddPartition(msg transport.Message) (transport.Message, error) {
	var req addPartitionRequest
	if err := msg.Take(&req); err != nil {
		return transport.Message{}, errext.Wrap(errext.Protocol, err)
	}
	partUUID, err := p.AddPartition(req.Topic, req.Type, req.AdaptiveMin, req.AdaptiveMax)
	if err != nil {
		return transport.Message{}, err
	}
	return transport.Message{Type: TypeAddPartition}.WithPayload(addPartitionReply{UUID: partUUID})
}

func (p *Provider) handleOpenTopic(msg transport.Message) (transport.Message, error) {
	var req topicNameRequest
	if err := msg.Take(&req); err != nil {
		return transport.Message{}, errext.Wrap(errext.Protocol, err)
	}
	entry, err := p.OpenTopic(req.Name)
	if err != nil {
		return transport.Message{}, err
	}
	return transport.Message{Type: TypeOpenTopic}.WithPayload(entry)
}

func (p *Provider) handleCloseTopic(msg transport.Message) (transport.Message, error) {
	var req topicNameRequest
	if err := msg.Take(&req); err != nil {
		return transport.Message{}, errext.Wrap(errext.Protocol, err)
	}
	if err := p.CloseTopic(req.Name); err != nil {
		return transport.Message{}, err
	}
	return transport.Message{Type: TypeCloseTopic}, nil
}

func (p *Provider) handleDestroyTopic(msg transport.Message) (transport.Message, error) {
	var req topicNameRequest
	if err := msg.Take(&req); err != nil {
		return transport.Message{}, errext.Wrap(errext.Protocol, err)
	}
	if err := p.DestroyTopic(req.Name); err != nil {
		return transport.Message{}, err
	}
	return transport.Message{Type: TypeDestroyTopic}, nil
}

func (p *Provider) handleSendBatch(msg transport.Message) (transport.Message, error) {
	var req sendBatchRequest
	if err := msg.Take(&req); err != nil {
		return transport.Message{}, errext.Wrap(errext.Protocol, err)
	}
	firstID, err := p.SendBatch(context.Background(), req.PartitionUUID, req.ProducerName, partition.Batch{
		MetaSizes: req.MetaSizes,
		MetaBytes: req.MetaBytes,
	}, req.DataSizes, req.DataBytes)
	if err != nil {
		return transport.Message{}, err
	}
	return transport.Message{Type: TypeSendBatch}.WithPayload(sendBatchReply{FirstID: firstID})
}

func (p *Provider) handleRequestEvents(msg transport.Message) (transport.Message, error) {
	var req requestEventsRequest
	if err := msg.Take(&req); err != nil {
		return transport.Message{}, errext.Wrap(errext.Protocol, err)
	}
	if err := p.RequestEvents(context.Background(), req.PartitionUUID, req.ConsumerName, req.CallbackAddr, req.BatchSize, req.Adaptive); err != nil {
		return transport.Message{}, err
	}
	return transport.Message{Type: TypeRequestEvents}, nil
}

func (p *Provider) handleAckEvent(msg transport.Message) (transport.Message, error) {
	var req ackEventRequest
	if err := msg.Take(&req); err != nil {
		return transport.Message{}, errext.Wrap(errext.Protocol, err)
	}
	if err := p.AckEvent(req.PartitionUUID, req.ConsumerName, req.EventID); err != nil {
		return transport.Message{}, err
	}
	return transport.Message{Type: TypeAckEvent}, nil
}

func (p *Provider) handleRemoveConsumer(msg transport.Message) (transport.Message, error) {
	var req removeConsumerRequest
	if err := msg.Take(&req); err != nil {
		return transport.Message{}, errext.Wrap(errext.Protocol, err)
	}
	if err := p.RemoveConsumer(req.PartitionUUID, req.ConsumerName); err != nil {
		return transport.Message{}, err
	}
	return transport.Message{Type: TypeRemoveConsumer}, nil
}

func (p *Provider) handleMarkComplete(msg transport.Message) (transport.Message, error) {
	var req markCompleteRequest
	if err := msg.Take(&req); err != nil {
		return transport.Message{}, errext.Wrap(errext.Protocol, err)
	}
	if err := p.MarkPartitionComplete(req.PartitionUUID); err != nil {
		return transport.Message{}, err
	}
	return transport.Message{Type: TypeMarkComplete}, nil
}

func (p *Provider) handleRequestData(msg transport.Message) (transport.Message, error) {
	var req requestDataRequest
	if err := msg.Take(&req); err != nil {
		return transport.Message{}, errext.Wrap(errext.Protocol, err)
	}
	descriptors := make([]datadescriptor.DataDescriptor, len(req.Descriptors))
	for i, raw := range req.Descriptors {
		d, err := datadescriptor.Decode(raw)
		if err != nil {
			return transport.Message{}, errext.Wrap(errext.Protocol, err)
		}
		descriptors[i] = d
	}
	data, errs := p.RequestData(context.Background(), req.PartitionUUID, descriptors)
	reply := requestDataReply{Data: data, Errors: make([]string, len(errs))}
	for i, e := range errs {
		if e != nil {
			reply.Errors[i] = e.Error()
		}
	}
	return transport.Message{Type: TypeRequestData}.WithPayload(reply)
}
