// Package transport implements Mofka's wire protocol: a small
// framed request/response RPC built on net.Conn, replacing the
// original implementation's Mercury/thallium engine (no protoc is
// available to regenerate gRPC stubs, so this sticks to what the
// examples pack already shows for raw TCP service loops — see
// DESIGN.md). Every request and response is a Message, mirroring
// comm.Message's topic/type/payload envelope from the teacher repo.
package transport

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mochi-hpc/mofka-sub001/internal/errext"
)

// Message is one RPC envelope: a dispatch Type plus an opaque JSON
// Payload, the same shape as the teacher's comm.Message minus the
// pub/sub Topic field (a transport.Conn always addresses exactly one
// provider).
type Message struct {
	Type    string `json:"type"`
	Payload []byte `json:"payload,omitempty"`
}

// WithPayload marshals src as JSON and returns a copy of msg carrying
// it, the same builder idiom as comm.Message.WithPayload.
func (msg Message) WithPayload(src interface{}) (Message, error) {
	payload, err := json.Marshal(src)
	if err != nil {
		return msg, fmt.Errorf("transport: marshal payload: %w", err)
	}
	msg.Payload = payload
	return msg, nil
}

// Take unmarshals msg's Payload into dst.
func (msg Message) Take(dst interface{}) error {
	if len(msg.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(msg.Payload, dst)
}

// errorReply is the Payload of an error-reply frame.
type errorReply struct {
	Kind    errext.Kind `json:"kind,omitempty"`
	Message string      `json:"message"`
}

// WithError encodes err's message, and its errext.Kind if it carries
// one, as msg's Payload, used for the server's error-reply frames.
func (msg Message) WithError(err error) Message {
	msg.Payload, _ = json.Marshal(errorReply{Kind: errext.KindOf(err), Message: err.Error()})
	return msg
}

// TakeError decodes an error-reply Payload back into an error,
// restoring its errext.Kind when the reply carried one.
func (msg Message) TakeError() error {
	var reply errorReply
	if err := msg.Take(&reply); err != nil {
		return fmt.Errorf("transport: decode error reply: %w", err)
	}
	if reply.Kind != "" {
		return errext.New(reply.Kind, "%s", reply.Message)
	}
	return fmt.Errorf("%s", reply.Message)
}

// errorType marks a reply frame as carrying a TakeError-decodable
// failure rather than a normal Payload.
const errorType = "__error__"

// frame is one request or response on the wire: a sequence number to
// pair concurrent calls on the same connection with their replies,
// plus the Message itself.
type frame struct {
	Seq     uint64  `json:"seq"`
	Message Message `json:"message"`
}

const maxFrameSize = 64 << 20 // 64MiB, generous for a metadata/descriptor batch

// writeFrame writes one length-prefixed JSON-encoded frame to w.
func writeFrame(w io.Writer, f frame) error {
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("transport: encode frame: %w", err)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// readFrame reads one length-prefixed JSON-encoded frame from r.
func readFrame(r io.Reader) (frame, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return frame{}, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		return frame{}, fmt.Errorf("transport: frame of %d bytes exceeds %d byte limit", size, maxFrameSize)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return frame{}, err
	}
	var f frame
	if err := json.Unmarshal(body, &f); err != nil {
		return frame{}, fmt.Errorf("transport: decode frame: %w", err)
	}
	return f, nil
}
