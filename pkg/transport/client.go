package transport

import (
	"context"
	"net"
	"sync"

	"github.com/mochi-hpc/mofka-sub001/internal/errext"
)

// Conn is a client-side connection to one transport.Server, allowing
// multiple concurrent Call invocations to be pipelined over a single
// net.Conn and matched back to their replies by sequence number —
// the client-side half of Mofka's original ProviderHandle RPC surface
// (original_source/include/mofka/ProviderHandle.hpp).
type Conn struct {
	conn net.Conn

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[uint64]chan frame
	nextSeq   uint64

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to addr and starts the background reply-reader.
func Dial(addr string) (*Conn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newConn(conn), nil
}

func newConn(netConn net.Conn) *Conn {
	c := &Conn{
		conn:    netConn,
		pending: make(map[uint64]chan frame),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Conn) readLoop() {
	for {
		f, err := readFrame(c.conn)
		if err != nil {
			c.failAllPending()
			return
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[f.Seq]
		if ok {
			delete(c.pending, f.Seq)
		}
		c.pendingMu.Unlock()
		if ok {
			ch <- f
		}
	}
}

func (c *Conn) failAllPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for seq, ch := range c.pending {
		close(ch)
		delete(c.pending, seq)
	}
}

// Call sends req and blocks for the matching reply, honouring ctx
// cancellation.
func (c *Conn) Call(ctx context.Context, req Message) (Message, error) {
	select {
	case <-c.closed:
		return Message{}, errext.New(errext.Closed, "transport: connection closed")
	default:
	}

	c.pendingMu.Lock()
	seq := c.nextSeq
	c.nextSeq++
	replyCh := make(chan frame, 1)
	c.pending[seq] = replyCh
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	err := writeFrame(c.conn, frame{Seq: seq, Message: req})
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, seq)
		c.pendingMu.Unlock()
		return Message{}, errext.Wrap(errext.Transport, err)
	}

	select {
	case f, ok := <-replyCh:
		if !ok {
			return Message{}, errext.New(errext.Transport, "transport: connection closed while awaiting reply")
		}
		if f.Message.Type == errorType {
			return Message{}, f.Message.TakeError()
		}
		return f.Message, nil
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, seq)
		c.pendingMu.Unlock()
		return Message{}, ctx.Err()
	}
}

// Close shuts down the connection, failing any in-flight Call.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
